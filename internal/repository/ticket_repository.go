package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

const ticketColumns = `id, title, description, category_id, domain, location, creator_id,
        assignee_id, status, escalation_level, ack_due_at, resolution_due_at, tat,
        last_reminded_on, group_id, committee_id, metadata, extension_log, version,
        created_at, updated_at, closed_at`

// TicketRepository encapsulates ticket persistence.
//
// Mutation methods take a pgx.Tx so the caller can commit them atomically
// with the outbox event they produce. UpdateVersioned is conditional on the
// version the caller read; a lost race returns ErrVersionConflict.
type TicketRepository interface {
	Create(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error
	UpdateVersioned(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListActive(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
	ListByGroup(ctx context.Context, groupID string) ([]domain.Ticket, error)
	ListDueForReminder(ctx context.Context, from, to, today time.Time, limit int) ([]domain.Ticket, error)
	MarkReminded(ctx context.Context, tx pgx.Tx, id string, today time.Time) (bool, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) q(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *ticketRepository) Create(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, category_id, domain, location, creator_id,
            assignee_id, status, escalation_level, ack_due_at, resolution_due_at, tat,
            group_id, committee_id, metadata, extension_log)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, version, created_at, updated_at`
	metadata, extensions, err := encodeTicketJSON(ticket)
	if err != nil {
		return err
	}
	return r.q(tx).QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.Domain,
		ticket.Location,
		ticket.CreatorID,
		ticket.AssigneeID,
		ticket.Status,
		ticket.EscalationLevel,
		ticket.AckDueAt,
		ticket.ResolutionDueAt,
		ticket.TAT,
		ticket.GroupID,
		ticket.CommitteeID,
		metadata,
		extensions,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) UpdateVersioned(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, status=$2, escalation_level=$3, ack_due_at=$4,
            resolution_due_at=$5, tat=$6, group_id=$7, committee_id=$8, metadata=$9,
            extension_log=$10, closed_at=$11, version=version+1, updated_at=NOW()
        WHERE id=$12 AND version=$13`
	metadata, extensions, err := encodeTicketJSON(ticket)
	if err != nil {
		return err
	}
	cmd, err := r.q(tx).Exec(ctx, query,
		ticket.AssigneeID,
		ticket.Status,
		ticket.EscalationLevel,
		ticket.AckDueAt,
		ticket.ResolutionDueAt,
		ticket.TAT,
		ticket.GroupID,
		ticket.CommitteeID,
		metadata,
		extensions,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a vanished row from a stale version.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) ListActive(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + prefixedTicketColumns("t") + `
        FROM tickets t
        JOIN status_catalog s ON s.value = t.status
        WHERE s.is_final = FALSE
        ORDER BY t.resolution_due_at ASC
        LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByGroup(ctx context.Context, groupID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE group_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListDueForReminder(ctx context.Context, from, to, today time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + prefixedTicketColumns("t") + `
        FROM tickets t
        JOIN status_catalog s ON s.value = t.status
        WHERE s.is_final = FALSE
          AND t.resolution_due_at >= $1 AND t.resolution_due_at < $2
          AND (t.last_reminded_on IS NULL OR t.last_reminded_on < $3::date)
        ORDER BY t.resolution_due_at ASC
        LIMIT $4`
	rows, err := r.pool.Query(ctx, query, from, to, today, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) MarkReminded(ctx context.Context, tx pgx.Tx, id string, today time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET last_reminded_on=$2::date, updated_at=NOW()
        WHERE id=$1 AND (last_reminded_on IS NULL OR last_reminded_on < $2::date)`
	cmd, err := r.q(tx).Exec(ctx, query, id, today)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func prefixedTicketColumns(alias string) string {
	return alias + `.id, ` + alias + `.title, ` + alias + `.description, ` + alias + `.category_id, ` +
		alias + `.domain, ` + alias + `.location, ` + alias + `.creator_id, ` + alias + `.assignee_id, ` +
		alias + `.status, ` + alias + `.escalation_level, ` + alias + `.ack_due_at, ` +
		alias + `.resolution_due_at, ` + alias + `.tat, ` + alias + `.last_reminded_on, ` +
		alias + `.group_id, ` + alias + `.committee_id, ` + alias + `.metadata, ` +
		alias + `.extension_log, ` + alias + `.version, ` + alias + `.created_at, ` +
		alias + `.updated_at, ` + alias + `.closed_at`
}

func encodeTicketJSON(ticket *domain.Ticket) ([]byte, []byte, error) {
	metadata := ticket.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, nil, err
	}
	extensions := ticket.ExtensionLog
	if extensions == nil {
		extensions = []domain.ExtensionRecord{}
	}
	extensionJSON, err := json.Marshal(extensions)
	if err != nil {
		return nil, nil, err
	}
	return metadataJSON, extensionJSON, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var metadataRaw, extensionRaw []byte
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.Domain,
		&ticket.Location,
		&ticket.CreatorID,
		&ticket.AssigneeID,
		&ticket.Status,
		&ticket.EscalationLevel,
		&ticket.AckDueAt,
		&ticket.ResolutionDueAt,
		&ticket.TAT,
		&ticket.LastRemindedOn,
		&ticket.GroupID,
		&ticket.CommitteeID,
		&metadataRaw,
		&extensionRaw,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	decodeTicketJSON(&ticket, metadataRaw, extensionRaw)
	return &ticket, nil
}

// decodeTicketJSON tolerates malformed historical rows: unparsable metadata
// or extension logs read as absent rather than failing the whole read path.
func decodeTicketJSON(ticket *domain.Ticket, metadataRaw, extensionRaw []byte) {
	ticket.Metadata = map[string]any{}
	if len(metadataRaw) > 0 {
		var metadata map[string]any
		if err := json.Unmarshal(metadataRaw, &metadata); err == nil {
			ticket.Metadata = metadata
		}
	}
	ticket.ExtensionLog = nil
	if len(extensionRaw) > 0 {
		var extensions []domain.ExtensionRecord
		if err := json.Unmarshal(extensionRaw, &extensions); err == nil {
			ticket.ExtensionLog = extensions
		}
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
