package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

// AssignmentRepository reads the admin routing projection.
type AssignmentRepository interface {
	ListAll(ctx context.Context) ([]domain.AdminAssignment, error)
	ListByAdmin(ctx context.Context, adminID string) ([]domain.AdminAssignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

func (r *assignmentRepository) ListAll(ctx context.Context) ([]domain.AdminAssignment, error) {
	const query = `SELECT admin_id, domain, COALESCE(scope, '') FROM admin_assignments`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminAssignment
	for rows.Next() {
		var a domain.AdminAssignment
		if err := rows.Scan(&a.AdminID, &a.Domain, &a.Scope); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *assignmentRepository) ListByAdmin(ctx context.Context, adminID string) ([]domain.AdminAssignment, error) {
	const query = `SELECT admin_id, domain, COALESCE(scope, '') FROM admin_assignments WHERE admin_id=$1`
	rows, err := r.pool.Query(ctx, query, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminAssignment
	for rows.Next() {
		var a domain.AdminAssignment
		if err := rows.Scan(&a.AdminID, &a.Domain, &a.Scope); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
