package dto

import (
	"time"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CreatorID   string  `json:"creator_id"`
	CategoryID  string  `json:"category_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	TAT         *string `json:"tat,omitempty"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// SetTATRequest payload.
type SetTATRequest struct {
	TAT string `json:"tat"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// ExtensionEntry is one entry of the turnaround extension log.
type ExtensionEntry struct {
	PreviousTAT   *string   `json:"previous_tat"`
	PreviousDueAt time.Time `json:"previous_due_at"`
	NewTAT        string    `json:"new_tat"`
	NewDueAt      time.Time `json:"new_due_at"`
	ActorID       string    `json:"actor_id"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	CategoryID      string           `json:"category_id"`
	Domain          string           `json:"domain"`
	Location        string           `json:"location"`
	CreatorID       string           `json:"creator_id"`
	AssigneeID      *string          `json:"assignee_id"`
	Status          string           `json:"status"`
	EscalationLevel int              `json:"escalation_level"`
	AckDueAt        time.Time        `json:"ack_due_at"`
	ResolutionDueAt time.Time        `json:"resolution_due_at"`
	DueClass        string           `json:"due_class"`
	TAT             *string          `json:"tat"`
	GroupID         *string          `json:"group_id"`
	CommitteeID     *string          `json:"committee_id"`
	ExtensionLog    []ExtensionEntry `json:"extension_log"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ClosedAt        *time.Time       `json:"closed_at"`
}

// NewTicketResponse maps a domain ticket, classifying its resolution due
// date against the given clock and location.
func NewTicketResponse(t *domain.Ticket, now time.Time, loc *time.Location) TicketResponse {
	log := make([]ExtensionEntry, 0, len(t.ExtensionLog))
	for _, rec := range t.ExtensionLog {
		log = append(log, ExtensionEntry{
			PreviousTAT:   rec.PreviousTAT,
			PreviousDueAt: rec.PreviousDueAt,
			NewTAT:        rec.NewTAT,
			NewDueAt:      rec.NewDueAt,
			ActorID:       rec.ActorID,
			RecordedAt:    rec.RecordedAt,
		})
	}
	return TicketResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		CategoryID:      t.CategoryID,
		Domain:          t.Domain,
		Location:        t.Location,
		CreatorID:       t.CreatorID,
		AssigneeID:      t.AssigneeID,
		Status:          t.Status,
		EscalationLevel: t.EscalationLevel,
		AckDueAt:        t.AckDueAt,
		ResolutionDueAt: t.ResolutionDueAt,
		DueClass:        dueClass(t, now, loc),
		TAT:             t.TAT,
		GroupID:         t.GroupID,
		CommitteeID:     t.CommitteeID,
		ExtensionLog:    log,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ClosedAt:        t.ClosedAt,
	}
}

func dueClass(t *domain.Ticket, now time.Time, loc *time.Location) string {
	if t.ClosedAt != nil {
		return "closed"
	}
	return sla.Classify(t.ResolutionDueAt, now, loc).String()
}
