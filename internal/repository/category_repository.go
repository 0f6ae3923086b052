package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

// CategoryRepository reads the category master-data projection.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository instantiates repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT id, name, domain, sla_hours, ack_hours FROM categories WHERE id=$1`
	var c domain.Category
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Domain,
		&c.SLAHours,
		&c.AckHours,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
