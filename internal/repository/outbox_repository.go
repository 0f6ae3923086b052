package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

const outboxColumns = `id, event_type, payload, attempts, claimed_by, claimed_at,
        processed_at, dead_lettered_at, last_error, created_at`

// OutboxRepository persists notification intents.
//
// Claim and ClaimBatch take an exclusive lease on events before they are
// handed to a sender, so two concurrent dispatchers never process the same
// event. A lease older than leaseSeconds counts as abandoned and the event
// becomes claimable again. Claiming increments attempts; events at or past
// maxAttempts are skipped and eventually dead-lettered by MarkFailed.
type OutboxRepository interface {
	Append(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error
	GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error)
	Claim(ctx context.Context, id, claimant string, leaseSeconds float64, maxAttempts int) (*domain.OutboxEvent, error)
	ClaimBatch(ctx context.Context, claimant string, leaseSeconds float64, limit, maxAttempts int) ([]domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id, claimant string) error
	MarkFailed(ctx context.Context, id, claimant, errMsg string, maxAttempts int) error
	ListDeadLettered(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
}

type outboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository instantiates repository.
func NewOutboxRepository(pool *pgxpool.Pool) OutboxRepository {
	return &outboxRepository{pool: pool}
}

func (r *outboxRepository) q(tx pgx.Tx) Querier {
	if tx != nil {
		return tx
	}
	return r.pool
}

func (r *outboxRepository) Append(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	const query = `
        INSERT INTO outbox_events (event_type, payload)
        VALUES ($1,$2)
        RETURNING id, attempts, created_at`
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.q(tx).QueryRow(ctx, query, event.EventType, payloadJSON).
		Scan(&event.ID, &event.Attempts, &event.CreatedAt)
}

func (r *outboxRepository) GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id=$1`
	return scanOutboxEvent(r.pool.QueryRow(ctx, query, id))
}

func (r *outboxRepository) Claim(ctx context.Context, id, claimant string, leaseSeconds float64, maxAttempts int) (*domain.OutboxEvent, error) {
	query := `
        UPDATE outbox_events
        SET claimed_by=$2, claimed_at=NOW(), attempts=attempts+1
        WHERE id=$1
          AND processed_at IS NULL
          AND dead_lettered_at IS NULL
          AND attempts < $4
          AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $3))
        RETURNING ` + outboxColumns
	return scanOutboxEvent(r.pool.QueryRow(ctx, query, id, claimant, leaseSeconds, maxAttempts))
}

func (r *outboxRepository) ClaimBatch(ctx context.Context, claimant string, leaseSeconds float64, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 25
	}
	var events []domain.OutboxEvent

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const selectQuery = `
            SELECT id FROM outbox_events
            WHERE processed_at IS NULL
              AND dead_lettered_at IS NULL
              AND attempts < $1
              AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $2))
            ORDER BY created_at ASC
            LIMIT $3
            FOR UPDATE SKIP LOCKED`
		rows, err := tx.Query(ctx, selectQuery, maxAttempts, leaseSeconds, limit)
		if err != nil {
			return err
		}
		ids := []string{}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		updateQuery := `
            UPDATE outbox_events
            SET claimed_by=$1, claimed_at=NOW(), attempts=attempts+1
            WHERE id = ANY($2)
            RETURNING ` + outboxColumns
		claimed, err := tx.Query(ctx, updateQuery, claimant, ids)
		if err != nil {
			return err
		}
		defer claimed.Close()
		for claimed.Next() {
			event, err := scanOutboxEvent(claimed)
			if err != nil {
				return err
			}
			events = append(events, *event)
		}
		return claimed.Err()
	})

	return events, err
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id, claimant string) error {
	const query = `
        UPDATE outbox_events SET processed_at=NOW(), last_error=NULL
        WHERE id=$1 AND claimed_by=$2 AND processed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, claimant)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id, claimant, errMsg string, maxAttempts int) error {
	const query = `
        UPDATE outbox_events
        SET last_error=$3, claimed_by=NULL, claimed_at=NULL,
            dead_lettered_at = CASE WHEN attempts >= $4 THEN NOW() ELSE dead_lettered_at END
        WHERE id=$1 AND claimed_by=$2 AND processed_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, claimant, errMsg, maxAttempts)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *outboxRepository) ListDeadLettered(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + outboxColumns + `
        FROM outbox_events
        WHERE dead_lettered_at IS NOT NULL
        ORDER BY dead_lettered_at DESC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OutboxEvent
	for rows.Next() {
		event, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func scanOutboxEvent(row pgx.Row) (*domain.OutboxEvent, error) {
	var event domain.OutboxEvent
	var payloadRaw []byte
	if err := row.Scan(
		&event.ID,
		&event.EventType,
		&payloadRaw,
		&event.Attempts,
		&event.ClaimedBy,
		&event.ClaimedAt,
		&event.ProcessedAt,
		&event.DeadLetteredAt,
		&event.LastError,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	event.Payload = map[string]any{}
	if len(payloadRaw) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(payloadRaw, &payload); err == nil {
			event.Payload = payload
		}
	}
	return &event, nil
}
