package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/repository"
)

// fakeTx runs the transactional closure directly; repositories under test
// accept a nil pgx.Tx.
type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeTicketRepo struct {
	order   []string
	tickets map[string]*domain.Ticket
	// ghosts stay visible to group scans but fail point reads, modeling a
	// row deleted between the scan and the per-ticket step.
	ghosts map[string]*domain.Ticket
	finals map[string]bool
	nextID int
}

func newFakeTicketRepo(finalStatuses ...string) *fakeTicketRepo {
	finals := map[string]bool{}
	for _, s := range finalStatuses {
		finals[s] = true
	}
	return &fakeTicketRepo{
		tickets: map[string]*domain.Ticket{},
		ghosts:  map[string]*domain.Ticket{},
		finals:  finals,
	}
}

func (f *fakeTicketRepo) put(ticket *domain.Ticket) *domain.Ticket {
	if ticket.ID == "" {
		f.nextID++
		ticket.ID = fmt.Sprintf("ticket-%d", f.nextID)
	}
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	copied := *ticket
	if _, seen := f.tickets[ticket.ID]; !seen {
		f.order = append(f.order, ticket.ID)
	}
	f.tickets[ticket.ID] = &copied
	return ticket
}

func (f *fakeTicketRepo) delete(id string) {
	if stored, ok := f.tickets[id]; ok {
		f.ghosts[id] = stored
	}
	delete(f.tickets, id)
}

func (f *fakeTicketRepo) Create(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.Version = 1
	f.put(ticket)
	return nil
}

func (f *fakeTicketRepo) UpdateVersioned(ctx context.Context, tx pgx.Tx, ticket *domain.Ticket) error {
	stored, ok := f.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	copied := *ticket
	f.tickets[ticket.ID] = &copied
	return nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	stored, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeTicketRepo) ListActive(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range f.order {
		stored, ok := f.tickets[id]
		if !ok || f.finals[stored.Status] {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByGroup(ctx context.Context, groupID string) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range f.order {
		stored, ok := f.tickets[id]
		if !ok {
			stored, ok = f.ghosts[id]
		}
		if !ok || stored.GroupID == nil || *stored.GroupID != groupID {
			continue
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (f *fakeTicketRepo) ListDueForReminder(ctx context.Context, from, to, today time.Time, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, id := range f.order {
		stored, ok := f.tickets[id]
		if !ok || f.finals[stored.Status] {
			continue
		}
		if stored.ResolutionDueAt.Before(from) || !stored.ResolutionDueAt.Before(to) {
			continue
		}
		if stored.LastRemindedOn != nil && !stored.LastRemindedOn.Before(today) {
			continue
		}
		out = append(out, *stored)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) MarkReminded(ctx context.Context, tx pgx.Tx, id string, today time.Time) (bool, error) {
	stored, ok := f.tickets[id]
	if !ok {
		return false, nil
	}
	if stored.LastRemindedOn != nil && !stored.LastRemindedOn.Before(today) {
		return false, nil
	}
	stamp := today
	stored.LastRemindedOn = &stamp
	return true, nil
}

type fakeOutboxRepo struct {
	appended []*domain.OutboxEvent
	nextID   int
}

func (f *fakeOutboxRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.OutboxEvent) error {
	f.nextID++
	event.ID = fmt.Sprintf("event-%d", f.nextID)
	event.CreatedAt = time.Now()
	f.appended = append(f.appended, event)
	return nil
}

func (f *fakeOutboxRepo) GetByID(ctx context.Context, id string) (*domain.OutboxEvent, error) {
	for _, event := range f.appended {
		if event.ID == id {
			return event, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOutboxRepo) Claim(ctx context.Context, id, claimant string, leaseSeconds float64, maxAttempts int) (*domain.OutboxEvent, error) {
	return nil, pgx.ErrNoRows
}

func (f *fakeOutboxRepo) ClaimBatch(ctx context.Context, claimant string, leaseSeconds float64, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) MarkProcessed(ctx context.Context, id, claimant string) error { return nil }

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id, claimant, errMsg string, maxAttempts int) error {
	return nil
}

func (f *fakeOutboxRepo) ListDeadLettered(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) eventTypes() []domain.OutboxEventType {
	out := make([]domain.OutboxEventType, 0, len(f.appended))
	for _, event := range f.appended {
		out = append(out, event.EventType)
	}
	return out
}

// fakeCatalog serves the standard six-row campus catalog.
type fakeCatalog struct {
	rows map[string]domain.StatusRow
}

func newFakeCatalog() *fakeCatalog {
	rows := map[string]domain.StatusRow{
		"OPEN":        {Value: "OPEN", DisplayOrder: 1},
		"IN_PROGRESS": {Value: "IN_PROGRESS", ProgressPercent: 25, DisplayOrder: 2},
		"RESOLVED":    {Value: "RESOLVED", ProgressPercent: 100, IsFinal: true, DisplayOrder: 3},
		"CLOSED":      {Value: "CLOSED", ProgressPercent: 100, IsFinal: true, DisplayOrder: 4},
	}
	return &fakeCatalog{rows: rows}
}

func (f *fakeCatalog) Get(ctx context.Context, value string) (*domain.StatusRow, error) {
	row, ok := f.rows[value]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &row, nil
}

func (f *fakeCatalog) IsFinal(ctx context.Context, value string) (bool, error) {
	row, err := f.Get(ctx, value)
	if err != nil {
		return false, err
	}
	return row.IsFinal, nil
}

func (f *fakeCatalog) InitialStatus(ctx context.Context) (string, error) { return "OPEN", nil }

func (f *fakeCatalog) DefaultActiveTarget(ctx context.Context) (string, error) {
	return "IN_PROGRESS", nil
}

func (f *fakeCatalog) DefaultCloseTarget(ctx context.Context) (string, error) {
	return "RESOLVED", nil
}

type fakeNotifier struct {
	dispatched []string
}

func (f *fakeNotifier) DispatchAsync(eventID string) {
	f.dispatched = append(f.dispatched, eventID)
}

type fakeCategoryRepo struct {
	categories map[string]*domain.Category
}

func (f *fakeCategoryRepo) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *category
	return &copied, nil
}

type fakeAssignmentRepo struct {
	rows []domain.AdminAssignment
}

func (f *fakeAssignmentRepo) ListAll(ctx context.Context) ([]domain.AdminAssignment, error) {
	return f.rows, nil
}

func (f *fakeAssignmentRepo) ListByAdmin(ctx context.Context, adminID string) ([]domain.AdminAssignment, error) {
	var out []domain.AdminAssignment
	for _, row := range f.rows {
		if row.AdminID == adminID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeGroupRepo struct {
	groups map[string]*domain.TicketGroup
	nextID int
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: map[string]*domain.TicketGroup{}}
}

func (f *fakeGroupRepo) put(group *domain.TicketGroup) *domain.TicketGroup {
	if group.ID == "" {
		f.nextID++
		group.ID = fmt.Sprintf("group-%d", f.nextID)
	}
	copied := *group
	f.groups[group.ID] = &copied
	return group
}

func (f *fakeGroupRepo) GetByID(ctx context.Context, id string) (*domain.TicketGroup, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *group
	return &copied, nil
}

func (f *fakeGroupRepo) Create(ctx context.Context, group *domain.TicketGroup) error {
	now := time.Now()
	group.CreatedAt = now
	group.UpdatedAt = now
	f.put(group)
	return nil
}

func (f *fakeGroupRepo) SetTAT(ctx context.Context, tx pgx.Tx, id string, tat string) error {
	group, ok := f.groups[id]
	if !ok {
		return pgx.ErrNoRows
	}
	group.TAT = &tat
	return nil
}

func (f *fakeGroupRepo) SetArchived(ctx context.Context, id string, archived bool) error {
	group, ok := f.groups[id]
	if !ok {
		return pgx.ErrNoRows
	}
	group.IsArchived = archived
	return nil
}

func adminActor() *domain.Admin {
	return &domain.Admin{ID: "admin-1", Name: "Asha", Role: domain.RoleAdmin, Active: true}
}
