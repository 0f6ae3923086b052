package outbox

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/config"
	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/notify"
	"github.com/campusdesk/ticket-engine/internal/observability"
	"github.com/campusdesk/ticket-engine/internal/repository"
)

// Dispatcher delivers outbox events to the notification collaborators.
//
// Two paths feed it: DispatchAsync fires right after the enqueueing
// transaction commits (with one bounded delayed retry to ride out
// read-after-write lag), and Run is the durable periodic sweep that picks
// up whatever the immediate path missed. Both go through the repository's
// claim lease, so an event is processed by at most one dispatcher at a
// time; delivery overall stays at-least-once and senders must tolerate
// duplicates.
type Dispatcher struct {
	repo       repository.OutboxRepository
	chat       notify.ChatSender
	email      notify.EmailSender
	logger     *zap.Logger
	metrics    *observability.Metrics
	instanceID string

	lease        time.Duration
	maxAttempts  int
	retryDelay   time.Duration
	pollInterval time.Duration
	batchSize    int
}

// Dependencies bundles collaborators for the dispatcher.
type Dependencies struct {
	Repo    repository.OutboxRepository
	Chat    notify.ChatSender
	Email   notify.EmailSender
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewDispatcher constructs a dispatcher with config-driven tuning.
func NewDispatcher(deps Dependencies, cfg config.OutboxConfig) *Dispatcher {
	host, _ := os.Hostname()
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Dispatcher{
		repo:         deps.Repo,
		chat:         deps.Chat,
		email:        deps.Email,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		instanceID:   host + "-" + uuid.NewString()[:8],
		lease:        cfg.ClaimLease(),
		maxAttempts:  cfg.MaxAttempts,
		retryDelay:   cfg.ImmediateRetryDelay(),
		pollInterval: cfg.SweepInterval(),
		batchSize:    cfg.SweepBatchSize,
	}
}

// DispatchAsync attempts immediate delivery of a just-committed event.
// Failures are logged and left to the sweep; the caller's request is never
// failed by this path.
func (d *Dispatcher) DispatchAsync(eventID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.DispatchByID(ctx, eventID); err != nil {
			d.logger.Warn("immediate outbox dispatch failed; sweep will retry",
				zap.String("event_id", eventID), zap.Error(err))
		}
	}()
}

// DispatchByID claims and processes a single event. A claim miss gets one
// delayed retry before giving up to the sweep: the event row may not be
// visible yet right after commit on a lagging read path.
func (d *Dispatcher) DispatchByID(ctx context.Context, eventID string) error {
	event, err := d.repo.Claim(ctx, eventID, d.instanceID, d.lease.Seconds(), d.maxAttempts)
	if errors.Is(err, pgx.ErrNoRows) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retryDelay):
		}
		event, err = d.repo.Claim(ctx, eventID, d.instanceID, d.lease.Seconds(), d.maxAttempts)
	}
	if err != nil {
		return err
	}
	return d.process(ctx, *event)
}

// Run is the durable sweep loop: claim a batch of unprocessed events and
// dispatch them, until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.sweepOnce(ctx)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweepOnce(ctx)
		}
	}
}

func (d *Dispatcher) sweepOnce(ctx context.Context) {
	events, err := d.repo.ClaimBatch(ctx, d.instanceID, d.lease.Seconds(), d.batchSize, d.maxAttempts)
	if err != nil {
		d.logger.Error("outbox sweep claim failed", zap.Error(err))
		return
	}
	for _, event := range events {
		if err := d.process(ctx, event); err != nil {
			d.logger.Warn("outbox event dispatch failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.EventType)),
				zap.Int("attempts", event.Attempts),
				zap.Error(err))
		}
	}
}

// process invokes the senders for a claimed event and records the outcome.
func (d *Dispatcher) process(ctx context.Context, event domain.OutboxEvent) error {
	if err := d.deliver(ctx, event); err != nil {
		d.metrics.RecordOutboxResult(string(event.EventType), "failed")
		if markErr := d.repo.MarkFailed(ctx, event.ID, d.instanceID, err.Error(), d.maxAttempts); markErr != nil {
			d.logger.Error("failed to record outbox failure",
				zap.String("event_id", event.ID), zap.Error(markErr))
		}
		if event.Attempts >= d.maxAttempts {
			d.logger.Error("outbox event dead-lettered",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.EventType)),
				zap.Int("attempts", event.Attempts))
			d.metrics.RecordOutboxResult(string(event.EventType), "dead_lettered")
		}
		return err
	}

	if err := d.repo.MarkProcessed(ctx, event.ID, d.instanceID); err != nil {
		// Lease expired mid-flight and someone else owns the event now;
		// the duplicate delivery is covered by the senders' contract.
		d.logger.Warn("could not mark outbox event processed",
			zap.String("event_id", event.ID), zap.Error(err))
		return err
	}
	d.metrics.RecordOutboxResult(string(event.EventType), "processed")
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.OutboxEvent) error {
	if err := d.chat.PostToThread(ctx, event); err != nil {
		return err
	}
	if wantsEmail(event.EventType) {
		if err := d.email.SendMail(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func wantsEmail(eventType domain.OutboxEventType) bool {
	switch eventType {
	case domain.EventTicketCreated, domain.EventReminderDue, domain.EventTicketEscalated:
		return true
	default:
		return false
	}
}
