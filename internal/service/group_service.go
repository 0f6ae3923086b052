package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/repository"
	"github.com/campusdesk/ticket-engine/internal/sla"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// Bulk actions supported by the coordinator. The set is a registry so new
// actions slot in without touching the batch loop.
const (
	BulkActionComment = "comment"
	BulkActionClose   = "close"
)

// BulkActionInput describes one group-wide action.
type BulkActionInput struct {
	Action       string
	Comment      string
	TargetStatus string
}

// BulkItemResult reports one ticket's outcome within a batch.
type BulkItemResult struct {
	TicketID string `json:"ticket_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// BulkResult summarizes a group bulk action.
type BulkResult struct {
	Total         int              `json:"total"`
	Successful    int              `json:"successful"`
	Failed        int              `json:"failed"`
	Items         []BulkItemResult `json:"items"`
	GroupArchived bool             `json:"group_archived"`
	Success       bool             `json:"success"`
}

// GroupService applies actions across all tickets of a group and keeps the
// group's archive flag consistent with member finality.
type GroupService struct {
	tx       repository.TxRunner
	tickets  repository.TicketRepository
	groups   repository.GroupRepository
	outbox   repository.OutboxRepository
	catalog  sla.Lookup
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// GroupDependencies bundles collaborators for the group service.
type GroupDependencies struct {
	Tx         repository.TxRunner
	TicketRepo repository.TicketRepository
	GroupRepo  repository.GroupRepository
	OutboxRepo repository.OutboxRepository
	Catalog    sla.Lookup
	Notifier   Notifier
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewGroupService constructs the service.
func NewGroupService(deps GroupDependencies) *GroupService {
	svc := &GroupService{
		tx:       deps.Tx,
		tickets:  deps.TicketRepo,
		groups:   deps.GroupRepo,
		outbox:   deps.OutboxRepo,
		catalog:  deps.Catalog,
		notifier: deps.Notifier,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// GroupCreateInput describes a new group.
type GroupCreateInput struct {
	Name        string
	CommitteeID *string
	TAT         *string
}

// CreateGroup registers a new ticket group. A group-level turnaround, when
// given, must parse; it is applied to members as they are added.
func (g *GroupService) CreateGroup(ctx context.Context, actor *domain.Admin, input GroupCreateInput) (*domain.TicketGroup, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	if input.TAT != nil {
		if _, err := sla.ParseTAT(*input.TAT); err != nil {
			return nil, apperrors.NewValidationError("invalid tat", map[string]any{"tat": *input.TAT})
		}
	}

	group := &domain.TicketGroup{
		Name:        strings.TrimSpace(input.Name),
		CommitteeID: input.CommitteeID,
		TAT:         input.TAT,
	}
	if err := g.groups.Create(ctx, group); err != nil {
		return nil, apperrors.MapError(err)
	}
	g.logger.Info("group created", zap.String("group_id", group.ID), zap.String("name", group.Name))
	return group, nil
}

// GetGroup fetches one group.
func (g *GroupService) GetGroup(ctx context.Context, groupID string) (*domain.TicketGroup, error) {
	return g.getGroup(ctx, groupID)
}

// BulkAct applies the action to every member ticket. Members are processed
// sequentially; a failed member records a failure entry and never aborts
// its siblings. After a close action the group's archive flag is recomputed.
func (g *GroupService) BulkAct(ctx context.Context, actor *domain.Admin, groupID string, input BulkActionInput) (*BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	switch input.Action {
	case BulkActionComment:
		if strings.TrimSpace(input.Comment) == "" {
			return nil, apperrors.NewValidationError("comment body required for comment action", nil)
		}
	case BulkActionClose:
	default:
		return nil, apperrors.NewValidationError("unsupported action", map[string]any{"action": input.Action})
	}

	group, err := g.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members, err := g.tickets.ListByGroup(ctx, group.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(members) == 0 {
		return nil, apperrors.NewValidationError("group has no tickets", map[string]any{"group_id": group.ID})
	}

	closeTarget := ""
	if input.Action == BulkActionClose {
		closeTarget, err = g.resolveCloseTarget(ctx, input.TargetStatus)
		if err != nil {
			return nil, err
		}
	}

	result := &BulkResult{Total: len(members)}
	for _, member := range members {
		item := g.actOnTicket(ctx, actor, member.ID, input, closeTarget)
		result.Items = append(result.Items, item)
		if item.OK {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	if input.Action == BulkActionClose {
		archived, err := g.recomputeArchive(ctx, group)
		if err != nil {
			g.logger.Warn("group archive recompute failed",
				zap.String("group_id", group.ID), zap.Error(err))
		} else {
			result.GroupArchived = archived
		}
	}

	result.Success = result.Failed == 0
	g.appendGroupEvent(ctx, group.ID, input.Action, result)
	return result, nil
}

// actOnTicket re-verifies existence immediately before mutating: a member
// can be deleted between the group scan and this step.
func (g *GroupService) actOnTicket(ctx context.Context, actor *domain.Admin, ticketID string, input BulkActionInput, closeTarget string) BulkItemResult {
	ticket, err := g.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BulkItemResult{TicketID: ticketID, Error: "ticket was deleted"}
		}
		return BulkItemResult{TicketID: ticketID, Error: err.Error()}
	}

	switch input.Action {
	case BulkActionComment:
		appendComment(ticket, actor.ID, input.Comment, g.now())
		if err := g.mutate(ctx, ticket, domain.EventTicketCommented, map[string]any{
			"ticket_id": ticket.ID,
			"actor_id":  actor.ID,
			"preview":   preview(input.Comment, 120),
		}); err != nil {
			return BulkItemResult{TicketID: ticketID, Error: err.Error()}
		}
	case BulkActionClose:
		final, err := g.catalog.IsFinal(ctx, ticket.Status)
		if err != nil {
			return BulkItemResult{TicketID: ticketID, Error: err.Error()}
		}
		if final {
			// Already closed; nothing to mutate.
			return BulkItemResult{TicketID: ticketID, OK: true}
		}
		oldStatus := ticket.Status
		now := g.now()
		ticket.Status = closeTarget
		ticket.ClosedAt = &now
		if err := g.mutate(ctx, ticket, domain.EventStatusChanged, map[string]any{
			"ticket_id":  ticket.ID,
			"old_status": oldStatus,
			"new_status": ticket.Status,
			"actor_id":   actor.ID,
		}); err != nil {
			return BulkItemResult{TicketID: ticketID, Error: err.Error()}
		}
	}
	return BulkItemResult{TicketID: ticketID, OK: true}
}

// AddTickets attaches tickets to a group, propagating the group TAT (or
// adopting a member's TAT when the group has none), tagging the linked
// committee, and un-archiving the group when a non-final member arrives.
func (g *GroupService) AddTickets(ctx context.Context, actor *domain.Admin, groupID string, ticketIDs []string) (*BulkResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(ticketIDs) == 0 {
		return nil, apperrors.NewValidationError("ticket_ids required", nil)
	}

	group, err := g.getGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{Total: len(ticketIDs)}
	var added []*domain.Ticket
	unarchive := false

	for _, ticketID := range ticketIDs {
		ticket, err := g.tickets.GetByID(ctx, ticketID)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, pgx.ErrNoRows) {
				msg = "ticket was deleted"
			}
			result.Items = append(result.Items, BulkItemResult{TicketID: ticketID, Error: msg})
			result.Failed++
			continue
		}

		ticket.GroupID = &group.ID
		if group.CommitteeID != nil {
			ticket.CommitteeID = group.CommitteeID
		}

		if group.TAT != nil {
			if err := g.propagateTAT(ctx, actor, ticket, *group.TAT); err != nil {
				result.Items = append(result.Items, BulkItemResult{TicketID: ticketID, Error: err.Error()})
				result.Failed++
				continue
			}
		} else if err := g.mutate(ctx, ticket, domain.EventGroupActionDone, map[string]any{
			"ticket_id": ticket.ID,
			"group_id":  group.ID,
			"action":    "add_member",
			"actor_id":  actor.ID,
		}); err != nil {
			result.Items = append(result.Items, BulkItemResult{TicketID: ticketID, Error: err.Error()})
			result.Failed++
			continue
		}

		if group.IsArchived {
			if final, err := g.catalog.IsFinal(ctx, ticket.Status); err == nil && !final {
				unarchive = true
			}
		}
		added = append(added, ticket)
		result.Items = append(result.Items, BulkItemResult{TicketID: ticketID, OK: true})
		result.Successful++
	}

	if group.TAT == nil {
		if err := g.adoptMemberTAT(ctx, actor, group, added); err != nil {
			g.logger.Warn("group TAT adoption failed",
				zap.String("group_id", group.ID), zap.Error(err))
		}
	}

	if unarchive {
		if err := g.groups.SetArchived(ctx, group.ID, false); err != nil {
			g.logger.Warn("group un-archive failed",
				zap.String("group_id", group.ID), zap.Error(err))
		}
	}

	result.Success = result.Failed == 0
	return result, nil
}

// propagateTAT pushes the group TAT onto a member and moves fresh tickets
// into the active working status, assigned to the acting admin.
func (g *GroupService) propagateTAT(ctx context.Context, actor *domain.Admin, ticket *domain.Ticket, tat string) error {
	duration, err := sla.ParseTAT(tat)
	if err != nil {
		return err
	}

	now := g.now()
	newDue := now.Add(duration)
	ticket.ExtensionLog = append(ticket.ExtensionLog, domain.ExtensionRecord{
		PreviousTAT:   ticket.TAT,
		PreviousDueAt: ticket.ResolutionDueAt,
		NewTAT:        tat,
		NewDueAt:      newDue,
		ActorID:       actor.ID,
		RecordedAt:    now,
	})
	ticket.TAT = &tat
	ticket.ResolutionDueAt = newDue

	initial, err := g.catalog.InitialStatus(ctx)
	if err != nil {
		return err
	}
	if ticket.Status == initial {
		active, err := g.catalog.DefaultActiveTarget(ctx)
		if err != nil {
			return err
		}
		ticket.Status = active
		ticket.AssigneeID = &actor.ID
	}

	return g.mutate(ctx, ticket, domain.EventGroupTATPropagate, map[string]any{
		"ticket_id": ticket.ID,
		"group_id":  derefOr(ticket.GroupID, ""),
		"tat":       tat,
		"due_at":    newDue,
		"actor_id":  actor.ID,
	})
}

// adoptMemberTAT takes the first added ticket that carries a TAT, makes it
// the group TAT, and propagates it to all existing members.
func (g *GroupService) adoptMemberTAT(ctx context.Context, actor *domain.Admin, group *domain.TicketGroup, added []*domain.Ticket) error {
	var adopted string
	for _, ticket := range added {
		if ticket.TAT != nil && strings.TrimSpace(*ticket.TAT) != "" {
			adopted = *ticket.TAT
			break
		}
	}
	if adopted == "" {
		return nil
	}

	if err := g.groups.SetTAT(ctx, nil, group.ID, adopted); err != nil {
		return err
	}
	group.TAT = &adopted

	members, err := g.tickets.ListByGroup(ctx, group.ID)
	if err != nil {
		return err
	}
	for i := range members {
		member := &members[i]
		if member.TAT != nil && *member.TAT == adopted {
			continue
		}
		if err := g.propagateTAT(ctx, actor, member, adopted); err != nil {
			g.logger.Warn("TAT propagation to member failed",
				zap.String("ticket_id", member.ID), zap.Error(err))
		}
	}
	return nil
}

// recomputeArchive sets is_archived iff every member's status is final.
func (g *GroupService) recomputeArchive(ctx context.Context, group *domain.TicketGroup) (bool, error) {
	members, err := g.tickets.ListByGroup(ctx, group.ID)
	if err != nil {
		return group.IsArchived, err
	}
	if len(members) == 0 {
		return group.IsArchived, nil
	}

	allFinal := true
	for _, member := range members {
		final, err := g.catalog.IsFinal(ctx, member.Status)
		if err != nil {
			return group.IsArchived, err
		}
		if !final {
			allFinal = false
			break
		}
	}

	if allFinal != group.IsArchived {
		if err := g.groups.SetArchived(ctx, group.ID, allFinal); err != nil {
			return group.IsArchived, err
		}
		group.IsArchived = allFinal
	}
	return group.IsArchived, nil
}

// resolveCloseTarget validates an explicit close status against the
// catalog (it must be final) or falls back to the catalog default.
func (g *GroupService) resolveCloseTarget(ctx context.Context, explicit string) (string, error) {
	if strings.TrimSpace(explicit) == "" {
		target, err := g.catalog.DefaultCloseTarget(ctx)
		if err != nil {
			return "", apperrors.MapError(err)
		}
		return target, nil
	}
	row, err := g.catalog.Get(ctx, explicit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewValidationError("unknown status value", map[string]any{"status": explicit})
		}
		return "", apperrors.MapError(err)
	}
	if !row.IsFinal {
		return "", apperrors.NewValidationError("close target must be a final status", map[string]any{"status": explicit})
	}
	return row.Value, nil
}

func (g *GroupService) getGroup(ctx context.Context, groupID string) (*domain.TicketGroup, error) {
	group, err := g.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("group", map[string]any{"group_id": groupID})
		}
		return nil, apperrors.MapError(err)
	}
	return group, nil
}

func (g *GroupService) mutate(ctx context.Context, ticket *domain.Ticket, eventType domain.OutboxEventType, payload map[string]any) error {
	var eventID string
	err := g.tx.InTx(ctx, func(tx pgx.Tx) error {
		if err := g.tickets.UpdateVersioned(ctx, tx, ticket); err != nil {
			return err
		}
		event := &domain.OutboxEvent{EventType: eventType, Payload: payload}
		if err := g.outbox.Append(ctx, tx, event); err != nil {
			return err
		}
		eventID = event.ID
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return errors.New("ticket was modified concurrently")
		case errors.Is(err, pgx.ErrNoRows):
			return errors.New("ticket was deleted")
		default:
			return err
		}
	}
	if g.notifier != nil && eventID != "" {
		g.notifier.DispatchAsync(eventID)
	}
	return nil
}

// appendGroupEvent records a summary notification for the whole batch.
// It rides outside the per-ticket transactions; a failure here only loses
// the summary, never a member's own event.
func (g *GroupService) appendGroupEvent(ctx context.Context, groupID, action string, result *BulkResult) {
	first := ""
	for _, item := range result.Items {
		if item.OK {
			first = item.TicketID
			break
		}
	}
	if first == "" {
		return
	}
	event := &domain.OutboxEvent{
		EventType: domain.EventGroupActionDone,
		Payload: map[string]any{
			"ticket_id":  first,
			"group_id":   groupID,
			"action":     action,
			"total":      result.Total,
			"successful": result.Successful,
			"failed":     result.Failed,
			"archived":   result.GroupArchived,
		},
	}
	if err := g.outbox.Append(ctx, nil, event); err != nil {
		g.logger.Warn("group summary event append failed",
			zap.String("group_id", groupID), zap.Error(err))
		return
	}
	if g.notifier != nil {
		g.notifier.DispatchAsync(event.ID)
	}
}

func derefOr(s *string, fallback string) string {
	if s != nil {
		return *s
	}
	return fallback
}
