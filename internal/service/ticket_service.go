package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/observability"
	"github.com/campusdesk/ticket-engine/internal/repository"
	"github.com/campusdesk/ticket-engine/internal/routing"
	"github.com/campusdesk/ticket-engine/internal/sla"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// Notifier triggers immediate post-commit dispatch of an outbox event.
type Notifier interface {
	DispatchAsync(eventID string)
}

// TicketService coordinates ticket intake, lifecycle and escalation.
type TicketService struct {
	tx          repository.TxRunner
	tickets     repository.TicketRepository
	categories  repository.CategoryRepository
	assignments repository.AssignmentRepository
	outbox      repository.OutboxRepository
	catalog     sla.Lookup
	notifier    Notifier
	logger      *zap.Logger
	metrics     *observability.Metrics
	location    *time.Location
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tx             repository.TxRunner
	TicketRepo     repository.TicketRepository
	CategoryRepo   repository.CategoryRepository
	AssignmentRepo repository.AssignmentRepository
	OutboxRepo     repository.OutboxRepository
	Catalog        sla.Lookup
	Notifier       Notifier
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Location       *time.Location
	Now            func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	CategoryID  string
	Location    string
	TAT         *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tx:          deps.Tx,
		tickets:     deps.TicketRepo,
		categories:  deps.CategoryRepo,
		assignments: deps.AssignmentRepo,
		outbox:      deps.OutboxRepo,
		catalog:     deps.Catalog,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		location:    deps.Location,
		now:         deps.Now,
	}
	if svc.location == nil {
		svc.location = time.Local
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// CreateTicket creates a ticket with SLA due dates derived from its
// category, or from an explicit TAT when supplied. The notification intent
// commits in the same transaction as the ticket row.
func (s *TicketService) CreateTicket(ctx context.Context, creatorID string, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.CategoryID) == "" {
		return nil, apperrors.NewValidationError("title and category_id required", nil)
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"category_id": input.CategoryID})
		}
		return nil, apperrors.MapError(err)
	}

	initial, err := s.catalog.InitialStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		CategoryID:      category.ID,
		Domain:          category.Domain,
		Location:        strings.TrimSpace(input.Location),
		CreatorID:       creatorID,
		Status:          initial,
		AckDueAt:        sla.DueAt(now, category.AckHours),
		ResolutionDueAt: sla.DueAt(now, category.SLAHours),
		Metadata:        map[string]any{},
	}

	if input.TAT != nil {
		duration, err := sla.ParseTAT(*input.TAT)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"tat": *input.TAT})
		}
		tat := strings.TrimSpace(*input.TAT)
		ticket.TAT = &tat
		ticket.ResolutionDueAt = now.Add(duration)
	}

	candidates := s.resolveCandidates(ctx, ticket)

	var eventID string
	err = s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.Create(ctx, tx, ticket); err != nil {
			return err
		}
		event := &domain.OutboxEvent{
			EventType: domain.EventTicketCreated,
			Payload: map[string]any{
				"ticket_id":        ticket.ID,
				"category_id":      ticket.CategoryID,
				"domain":           ticket.Domain,
				"location":         ticket.Location,
				"status":           ticket.Status,
				"candidate_admins": candidates,
			},
		}
		if err := s.outbox.Append(ctx, tx, event); err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.dispatch(eventID)
	return ticket, nil
}

// resolveCandidates ranks the admins who should be notified about a new
// ticket: pickers before viewers, per the assignment resolver. A directory
// read failure degrades to an unaddressed event rather than failing intake.
func (s *TicketService) resolveCandidates(ctx context.Context, ticket *domain.Ticket) []string {
	pool, err := s.assignments.ListAll(ctx)
	if err != nil {
		s.logger.Warn("listing assignments for candidate routing", zap.Error(err))
		return nil
	}
	view := routing.TicketView{
		Domain:     ticket.Domain,
		Location:   ticket.Location,
		AssigneeID: ticket.AssigneeID,
	}
	resolved := routing.Resolve(view, pool)
	candidates := make([]string, 0, len(resolved))
	for _, c := range resolved {
		candidates = append(candidates, c.AdminID)
	}
	return candidates
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// QueueForAdmin lists active tickets the admin should see, ranked by the
// assignment resolver.
func (s *TicketService) QueueForAdmin(ctx context.Context, admin *domain.Admin, limit, offset int) ([]domain.Ticket, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	own, err := s.assignments.ListByAdmin(ctx, admin.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := s.tickets.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	visible := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		view := routing.TicketView{
			Domain:     ticket.Domain,
			Location:   ticket.Location,
			AssigneeID: ticket.AssigneeID,
		}
		if routing.VisibilityFor(view, admin.ID, own) != routing.VisibilityNone {
			visible = append(visible, ticket)
		}
	}
	return visible, nil
}

// UpdateStatus moves a ticket to a new catalog status. Finality is decided
// by the catalog row, never by the status text.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.Admin, ticketID, newStatus, comment string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	row, err := s.catalog.Get(ctx, newStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("unknown status value", map[string]any{"status": newStatus})
		}
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = row.Value
	if row.IsFinal {
		now := s.now()
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}

	eventID, err := s.mutate(ctx, ticket, domain.EventStatusChanged, map[string]any{
		"ticket_id":  ticket.ID,
		"old_status": oldStatus,
		"new_status": ticket.Status,
		"comment":    comment,
		"actor_id":   actor.ID,
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(eventID)
	return ticket, nil
}

// AddComment appends a free-form comment to the ticket metadata record.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.Admin, ticketID, body string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	appendComment(ticket, actor.ID, body, s.now())

	eventID, err := s.mutate(ctx, ticket, domain.EventTicketCommented, map[string]any{
		"ticket_id": ticket.ID,
		"actor_id":  actor.ID,
		"preview":   preview(body, 120),
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(eventID)
	return ticket, nil
}

// SetTAT sets or extends the turnaround time, appending an immutable
// record to the extension log instead of overwriting history.
func (s *TicketService) SetTAT(ctx context.Context, actor *domain.Admin, ticketID, tat string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	duration, err := sla.ParseTAT(tat)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), map[string]any{"tat": tat})
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newTAT := strings.TrimSpace(tat)
	newDue := now.Add(duration)
	ticket.ExtensionLog = append(ticket.ExtensionLog, domain.ExtensionRecord{
		PreviousTAT:   ticket.TAT,
		PreviousDueAt: ticket.ResolutionDueAt,
		NewTAT:        newTAT,
		NewDueAt:      newDue,
		ActorID:       actor.ID,
		RecordedAt:    now,
	})
	ticket.TAT = &newTAT
	ticket.ResolutionDueAt = newDue

	eventID, err := s.mutate(ctx, ticket, domain.EventTATExtended, map[string]any{
		"ticket_id": ticket.ID,
		"actor_id":  actor.ID,
		"tat":       newTAT,
		"due_at":    newDue,
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(eventID)
	return ticket, nil
}

// Escalate increments the ticket's escalation level by exactly one. Only
// this explicit action ever raises the level; the reminder sweep never does.
func (s *TicketService) Escalate(ctx context.Context, actor *domain.Admin, ticketID string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.EscalationLevel++
	eventID, err := s.mutate(ctx, ticket, domain.EventTicketEscalated, map[string]any{
		"ticket_id": ticket.ID,
		"actor_id":  actor.ID,
		"level":     ticket.EscalationLevel,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordEscalation()
	s.dispatch(eventID)
	return ticket, nil
}

// Assign sets the ticket's explicit assignee.
func (s *TicketService) Assign(ctx context.Context, actor *domain.Admin, ticketID, assigneeID string) (*domain.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(assigneeID) == "" {
		return nil, apperrors.NewValidationError("assignee_id required", nil)
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.AssigneeID = &assigneeID
	eventID, err := s.mutate(ctx, ticket, domain.EventTicketAssigned, map[string]any{
		"ticket_id":   ticket.ID,
		"actor_id":    actor.ID,
		"assignee_id": assigneeID,
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(eventID)
	return ticket, nil
}

// mutate runs a versioned ticket update plus its outbox event in one
// transaction, mapping concurrency races to conflicts.
func (s *TicketService) mutate(ctx context.Context, ticket *domain.Ticket, eventType domain.OutboxEventType, payload map[string]any) (string, error) {
	var eventID string
	err := s.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.UpdateVersioned(ctx, tx, ticket); err != nil {
			return err
		}
		event := &domain.OutboxEvent{EventType: eventType, Payload: payload}
		if err := s.outbox.Append(ctx, tx, event); err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return "", apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		case errors.Is(err, pgx.ErrNoRows):
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		default:
			return "", apperrors.MapError(err)
		}
	}
	return eventID, nil
}

func (s *TicketService) dispatch(eventID string) {
	if s.notifier == nil || eventID == "" {
		return
	}
	s.notifier.DispatchAsync(eventID)
}

func requireAdmin(actor *domain.Admin) error {
	if actor == nil {
		return apperrors.NewUnauthorized("admin required")
	}
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden("insufficient role")
	}
	return nil
}

func appendComment(ticket *domain.Ticket, authorID, body string, at time.Time) {
	if ticket.Metadata == nil {
		ticket.Metadata = map[string]any{}
	}
	comments, _ := ticket.Metadata["comments"].([]any)
	comments = append(comments, map[string]any{
		"author_id":  authorID,
		"body":       strings.TrimSpace(body),
		"created_at": at,
	})
	ticket.Metadata["comments"] = comments
}

// preview truncates on rune boundaries so the payload stays valid UTF-8.
func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
