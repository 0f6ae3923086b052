package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/observability"
	"github.com/campusdesk/ticket-engine/internal/repository"
	"github.com/campusdesk/ticket-engine/internal/sla"
)

// errAlreadyReminded aborts the per-ticket transaction when another sweep
// run stamped the ticket first today.
var errAlreadyReminded = errors.New("already reminded today")

// SweepService sends due-today reminders for active tickets.
//
// The sweep is idempotent at calendar-day granularity: the reminder stamp
// is a conditional update on last_reminded_on, committed atomically with
// the reminder's outbox event, so running the sweep any number of times in
// one day sends at most one reminder per ticket. The sweep never touches
// escalation_level.
type SweepService struct {
	tx        repository.TxRunner
	tickets   repository.TicketRepository
	outbox    repository.OutboxRepository
	notifier  Notifier
	logger    *zap.Logger
	metrics   *observability.Metrics
	location  *time.Location
	batchSize int
	now       func() time.Time
}

// SweepDependencies bundles collaborators for the sweep service.
type SweepDependencies struct {
	Tx         repository.TxRunner
	TicketRepo repository.TicketRepository
	OutboxRepo repository.OutboxRepository
	Notifier   Notifier
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Location   *time.Location
	BatchSize  int
	Now        func() time.Time
}

// NewSweepService constructs the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	svc := &SweepService{
		tx:        deps.Tx,
		tickets:   deps.TicketRepo,
		outbox:    deps.OutboxRepo,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		location:  deps.Location,
		batchSize: deps.BatchSize,
		now:       deps.Now,
	}
	if svc.location == nil {
		svc.location = time.Local
	}
	if svc.batchSize <= 0 {
		svc.batchSize = 200
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// Run performs one sweep and returns the number of reminders sent.
func (s *SweepService) Run(ctx context.Context) (int, error) {
	now := s.now()
	dayStart := sla.StartOfDay(now, s.location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	due, err := s.tickets.ListDueForReminder(ctx, dayStart, dayEnd, dayStart, s.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ticket := range due {
		eventID, err := s.remind(ctx, ticket, dayStart)
		if err != nil {
			if errors.Is(err, errAlreadyReminded) {
				continue
			}
			s.logger.Warn("reminder failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		sent++
		if s.notifier != nil {
			s.notifier.DispatchAsync(eventID)
		}
	}

	s.metrics.RecordRemindersSent(sent)
	s.logger.Info("reminder sweep complete",
		zap.Int("eligible", len(due)), zap.Int("sent", sent))
	return sent, nil
}

// remind stamps the ticket and enqueues the reminder event in one
// transaction; the stamp is the idempotency key.
func (s *SweepService) remind(ctx context.Context, ticket domain.Ticket, today time.Time) (string, error) {
	var eventID string
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		ok, err := s.tickets.MarkReminded(ctx, tx, ticket.ID, today)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadyReminded
		}
		event := &domain.OutboxEvent{
			EventType: domain.EventReminderDue,
			Payload: map[string]any{
				"ticket_id": ticket.ID,
				"due_at":    ticket.ResolutionDueAt,
				"status":    ticket.Status,
			},
		}
		if err := s.outbox.Append(ctx, tx, event); err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	return eventID, err
}

// RunLoop invokes the sweep on a fixed interval until ctx is canceled.
// The HTTP endpoint stays available for external cron regardless.
func (s *SweepService) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("reminder sweep failed", zap.Error(err))
			}
		}
	}
}
