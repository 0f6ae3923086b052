package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

// StatusRepository reads the admin-configurable status catalog.
type StatusRepository interface {
	Get(ctx context.Context, value string) (*domain.StatusRow, error)
	ListOrdered(ctx context.Context) ([]domain.StatusRow, error)
}

type statusRepository struct {
	pool *pgxpool.Pool
}

// NewStatusRepository instantiates repository.
func NewStatusRepository(pool *pgxpool.Pool) StatusRepository {
	return &statusRepository{pool: pool}
}

func (r *statusRepository) Get(ctx context.Context, value string) (*domain.StatusRow, error) {
	const query = `
        SELECT value, label, progress_percent, is_final, display_order
        FROM status_catalog WHERE value=$1`
	var row domain.StatusRow
	if err := r.pool.QueryRow(ctx, query, value).Scan(
		&row.Value,
		&row.Label,
		&row.ProgressPercent,
		&row.IsFinal,
		&row.DisplayOrder,
	); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) ListOrdered(ctx context.Context) ([]domain.StatusRow, error) {
	const query = `
        SELECT value, label, progress_percent, is_final, display_order
        FROM status_catalog ORDER BY display_order ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatusRows(rows)
}

func scanStatusRows(rows pgx.Rows) ([]domain.StatusRow, error) {
	var result []domain.StatusRow
	for rows.Next() {
		var row domain.StatusRow
		if err := rows.Scan(
			&row.Value,
			&row.Label,
			&row.ProgressPercent,
			&row.IsFinal,
			&row.DisplayOrder,
		); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
