package domain

import "time"

// OutboxEventType enumerates notification intents recorded in the outbox.
type OutboxEventType string

const (
	EventTicketCreated     OutboxEventType = "ticket_created"
	EventStatusChanged     OutboxEventType = "ticket_status_changed"
	EventTicketCommented   OutboxEventType = "ticket_commented"
	EventTicketAssigned    OutboxEventType = "ticket_assigned"
	EventTicketEscalated   OutboxEventType = "ticket_escalated"
	EventTATExtended       OutboxEventType = "ticket_tat_extended"
	EventReminderDue       OutboxEventType = "ticket_reminder_due"
	EventGroupActionDone   OutboxEventType = "group_action_applied"
	EventGroupTATPropagate OutboxEventType = "group_tat_propagated"
)

// OutboxEvent is a durable notification intent written in the same
// transaction as the ticket mutation it describes.
//
// ProcessedAt transitions null to set exactly once and is never reverted.
// ClaimedBy/ClaimedAt form a lease so concurrent dispatchers cannot both
// pick up the same event; an expired lease makes the event claimable again.
// Attempts at or above the dispatcher's maximum dead-letter the event.
type OutboxEvent struct {
	ID             string
	EventType      OutboxEventType
	Payload        map[string]any
	Attempts       int
	ClaimedBy      *string
	ClaimedAt      *time.Time
	ProcessedAt    *time.Time
	DeadLetteredAt *time.Time
	LastError      *string
	CreatedAt      time.Time
}

// TicketID extracts the correlated ticket id from the payload.
func (e *OutboxEvent) TicketID() string {
	if e == nil || e.Payload == nil {
		return ""
	}
	if id, ok := e.Payload["ticket_id"].(string); ok {
		return id
	}
	return ""
}
