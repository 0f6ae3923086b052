package dto

import (
	"time"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/service"
)

// CreateGroupRequest payload.
type CreateGroupRequest struct {
	Name        string  `json:"name"`
	CommitteeID *string `json:"committee_id,omitempty"`
	TAT         *string `json:"tat,omitempty"`
}

// GroupActionRequest payload for bulk actions.
type GroupActionRequest struct {
	Action       string `json:"action"`
	Comment      string `json:"comment,omitempty"`
	TargetStatus string `json:"target_status,omitempty"`
}

// AddGroupTicketsRequest payload.
type AddGroupTicketsRequest struct {
	TicketIDs []string `json:"ticket_ids"`
}

// GroupResponse describes a ticket group.
type GroupResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CommitteeID *string   `json:"committee_id"`
	TAT         *string   `json:"tat"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewGroupResponse maps a domain group.
func NewGroupResponse(g *domain.TicketGroup) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		CommitteeID: g.CommitteeID,
		TAT:         g.TAT,
		IsArchived:  g.IsArchived,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

// BulkResultResponse reports a per-ticket action outcome.
type BulkResultResponse struct {
	Total         int                      `json:"total"`
	Successful    int                      `json:"successful"`
	Failed        int                      `json:"failed"`
	Items         []service.BulkItemResult `json:"items"`
	GroupArchived bool                     `json:"group_archived"`
	Success       bool                     `json:"success"`
}

// NewBulkResultResponse maps a service bulk result.
func NewBulkResultResponse(r *service.BulkResult) BulkResultResponse {
	return BulkResultResponse{
		Total:         r.Total,
		Successful:    r.Successful,
		Failed:        r.Failed,
		Items:         r.Items,
		GroupArchived: r.GroupArchived,
		Success:       r.Success,
	}
}
