package domain

import "time"

// TicketGroup bundles related tickets for bulk handling.
//
// Invariant: IsArchived implies every member ticket's status is final.
// Membership is one-to-many via Ticket.GroupID.
type TicketGroup struct {
	ID          string
	Name        string
	CommitteeID *string
	TAT         *string
	IsArchived  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
