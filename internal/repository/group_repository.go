package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

// GroupRepository encapsulates ticket-group persistence.
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketGroup, error)
	Create(ctx context.Context, group *domain.TicketGroup) error
	SetTAT(ctx context.Context, tx pgx.Tx, id string, tat string) error
	SetArchived(ctx context.Context, id string, archived bool) error
}

type groupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository instantiates repository.
func NewGroupRepository(pool *pgxpool.Pool) GroupRepository {
	return &groupRepository{pool: pool}
}

func (r *groupRepository) q(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*domain.TicketGroup, error) {
	const query = `
        SELECT id, name, committee_id, tat, is_archived, created_at, updated_at
        FROM ticket_groups WHERE id=$1`
	var g domain.TicketGroup
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&g.ID,
		&g.Name,
		&g.CommitteeID,
		&g.TAT,
		&g.IsArchived,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) Create(ctx context.Context, group *domain.TicketGroup) error {
	const query = `
        INSERT INTO ticket_groups (name, committee_id, tat)
        VALUES ($1,$2,$3)
        RETURNING id, is_archived, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		group.Name,
		group.CommitteeID,
		group.TAT,
	).Scan(&group.ID, &group.IsArchived, &group.CreatedAt, &group.UpdatedAt)
}

func (r *groupRepository) SetTAT(ctx context.Context, tx pgx.Tx, id string, tat string) error {
	const query = `UPDATE ticket_groups SET tat=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.q(tx).Exec(ctx, query, id, tat)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *groupRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	const query = `UPDATE ticket_groups SET is_archived=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, archived)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
