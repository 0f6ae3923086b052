package outbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/ticket-engine/internal/config"
	"github.com/campusdesk/ticket-engine/internal/domain"
)

// memOutboxRepo mirrors the claim-lease semantics of the SQL repository.
type memOutboxRepo struct {
	order  []string
	events map[string]*domain.OutboxEvent
	nextID int
}

func newMemOutboxRepo() *memOutboxRepo {
	return &memOutboxRepo{events: map[string]*domain.OutboxEvent{}}
}

func (m *memOutboxRepo) add(eventType domain.OutboxEventType) *domain.OutboxEvent {
	m.nextID++
	event := &domain.OutboxEvent{
		ID:        fmt.Sprintf("event-%d", m.nextID),
		EventType: eventType,
		Payload:   map[string]any{"ticket_id": "ticket-1"},
		CreatedAt: time.Now(),
	}
	m.events[event.ID] = event
	m.order = append(m.order, event.ID)
	return event
}

func (m *memOutboxRepo) claimable(event *domain.OutboxEvent, leaseSeconds float64, maxAttempts int) bool {
	if event.ProcessedAt != nil || event.DeadLetteredAt != nil {
		return false
	}
	if event.Attempts >= maxAttempts {
		return false
	}
	if event.ClaimedAt != nil && time.Since(*event.ClaimedAt) < time.Duration(leaseSeconds*float64(time.Second)) {
		return false
	}
	return true
}

func (m *memOutboxRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	m.nextID++
	event.ID = fmt.Sprintf("event-%d", m.nextID)
	m.events[event.ID] = event
	m.order = append(m.order, event.ID)
	return nil
}

func (m *memOutboxRepo) GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error) {
	event, ok := m.events[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (m *memOutboxRepo) Claim(ctx context.Context, id, claimant string, leaseSeconds float64, maxAttempts int) (*domain.OutboxEvent, error) {
	event, ok := m.events[id]
	if !ok || !m.claimable(event, leaseSeconds, maxAttempts) {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	event.ClaimedBy = &claimant
	event.ClaimedAt = &now
	event.Attempts++
	copied := *event
	return &copied, nil
}

func (m *memOutboxRepo) ClaimBatch(ctx context.Context, claimant string, leaseSeconds float64, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, id := range m.order {
		if len(out) == limit {
			break
		}
		if claimed, err := m.Claim(ctx, id, claimant, leaseSeconds, maxAttempts); err == nil {
			out = append(out, *claimed)
		}
	}
	return out, nil
}

func (m *memOutboxRepo) MarkProcessed(ctx context.Context, id, claimant string) error {
	event, ok := m.events[id]
	if !ok || event.ProcessedAt != nil || event.ClaimedBy == nil || *event.ClaimedBy != claimant {
		return errors.New("claim lost")
	}
	now := time.Now()
	event.ProcessedAt = &now
	return nil
}

func (m *memOutboxRepo) MarkFailed(ctx context.Context, id, claimant, errMsg string, maxAttempts int) error {
	event, ok := m.events[id]
	if !ok {
		return pgx.ErrNoRows
	}
	event.LastError = &errMsg
	event.ClaimedBy = nil
	event.ClaimedAt = nil
	if event.Attempts >= maxAttempts {
		now := time.Now()
		event.DeadLetteredAt = &now
	}
	return nil
}

func (m *memOutboxRepo) ListDeadLettered(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	var out []domain.OutboxEvent
	for _, id := range m.order {
		event := m.events[id]
		if event.DeadLetteredAt != nil {
			out = append(out, *event)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubChat struct {
	failures int
	calls    int
}

func (s *stubChat) PostToThread(ctx context.Context, event domain.OutboxEvent) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("webhook unreachable")
	}
	return nil
}

type stubEmail struct {
	calls int
}

func (s *stubEmail) SendMail(ctx context.Context, event domain.OutboxEvent) error {
	s.calls++
	return nil
}

func testConfig(maxAttempts int) config.OutboxConfig {
	return config.OutboxConfig{
		ClaimLeaseSeconds:     120,
		MaxAttempts:           maxAttempts,
		ImmediateRetryDelayMs: 1,
		SweepIntervalSeconds:  1,
		SweepBatchSize:        10,
	}
}

func newDispatcherFixture(repo *memOutboxRepo, chat *stubChat, email *stubEmail, maxAttempts int) *Dispatcher {
	return NewDispatcher(Dependencies{
		Repo:  repo,
		Chat:  chat,
		Email: email,
	}, testConfig(maxAttempts))
}

func TestDispatchByIDProcessesOnce(t *testing.T) {
	repo := newMemOutboxRepo()
	chat := &stubChat{}
	email := &stubEmail{}
	dispatcher := newDispatcherFixture(repo, chat, email, 5)

	event := repo.add(domain.EventTicketCreated)
	require.NoError(t, dispatcher.DispatchByID(context.Background(), event.ID))

	stored := repo.events[event.ID]
	require.NotNil(t, stored.ProcessedAt)
	require.Equal(t, 1, stored.Attempts)
	require.Equal(t, 1, chat.calls)
	require.Equal(t, 1, email.calls)

	// A processed event is no longer claimable.
	err := dispatcher.DispatchByID(context.Background(), event.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.Equal(t, 1, chat.calls)
}

func TestEmailOnlyForSelectedEventTypes(t *testing.T) {
	repo := newMemOutboxRepo()
	chat := &stubChat{}
	email := &stubEmail{}
	dispatcher := newDispatcherFixture(repo, chat, email, 5)

	comment := repo.add(domain.EventTicketCommented)
	require.NoError(t, dispatcher.DispatchByID(context.Background(), comment.ID))
	require.Equal(t, 1, chat.calls)
	require.Zero(t, email.calls)

	reminder := repo.add(domain.EventReminderDue)
	require.NoError(t, dispatcher.DispatchByID(context.Background(), reminder.ID))
	require.Equal(t, 2, chat.calls)
	require.Equal(t, 1, email.calls)
}

func TestFailedDeliveryStaysRetryable(t *testing.T) {
	repo := newMemOutboxRepo()
	chat := &stubChat{failures: 1}
	dispatcher := newDispatcherFixture(repo, chat, &stubEmail{}, 5)

	event := repo.add(domain.EventStatusChanged)
	err := dispatcher.DispatchByID(context.Background(), event.ID)
	require.Error(t, err)

	stored := repo.events[event.ID]
	require.Nil(t, stored.ProcessedAt)
	require.Nil(t, stored.DeadLetteredAt)
	require.NotNil(t, stored.LastError)
	require.Equal(t, 1, stored.Attempts)

	// The sweep picks the released event up and succeeds.
	dispatcher.sweepOnce(context.Background())
	stored = repo.events[event.ID]
	require.NotNil(t, stored.ProcessedAt)
	require.Equal(t, 2, stored.Attempts)
}

func TestDeadLetterAfterMaxAttempts(t *testing.T) {
	repo := newMemOutboxRepo()
	chat := &stubChat{failures: 100}
	dispatcher := newDispatcherFixture(repo, chat, &stubEmail{}, 2)

	event := repo.add(domain.EventTicketEscalated)
	require.Error(t, dispatcher.DispatchByID(context.Background(), event.ID))

	dispatcher.sweepOnce(context.Background())
	stored := repo.events[event.ID]
	require.Equal(t, 2, stored.Attempts)
	require.NotNil(t, stored.DeadLetteredAt)
	require.Nil(t, stored.ProcessedAt)

	// Exhausted events are invisible to further claims.
	dispatcher.sweepOnce(context.Background())
	require.Equal(t, 2, stored.Attempts)

	dead, err := repo.ListDeadLettered(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	require.Equal(t, event.ID, dead[0].ID)
}

func TestClaimIsExclusiveWithinLease(t *testing.T) {
	repo := newMemOutboxRepo()
	event := repo.add(domain.EventTicketCreated)

	_, err := repo.Claim(context.Background(), event.ID, "node-a", 120, 5)
	require.NoError(t, err)

	_, err = repo.Claim(context.Background(), event.ID, "node-b", 120, 5)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestDispatchByIDMissingEvent(t *testing.T) {
	repo := newMemOutboxRepo()
	dispatcher := newDispatcherFixture(repo, &stubChat{}, &stubEmail{}, 5)

	err := dispatcher.DispatchByID(context.Background(), "event-nope")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}
