package domain

import "time"

// Ticket is the aggregate for campus support requests.
//
// Status references a StatusRow value from the admin-configurable catalog;
// lifecycle checks must go through the catalog's is_final flag rather than
// comparing literal status text. EscalationLevel only moves upward and only
// via an explicit escalate action. Version backs optimistic concurrency:
// every update is conditional on the version that was read.
type Ticket struct {
	ID              string
	Title           string
	Description     string
	CategoryID      string
	Domain          string
	Location        string
	CreatorID       string
	AssigneeID      *string
	Status          string
	EscalationLevel int
	AckDueAt        time.Time
	ResolutionDueAt time.Time
	TAT             *string
	LastRemindedOn  *time.Time
	GroupID         *string
	CommitteeID     *string
	Metadata        map[string]any
	ExtensionLog    []ExtensionRecord
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// ExtensionRecord is one immutable entry in the ticket's TAT extension log.
type ExtensionRecord struct {
	PreviousTAT   *string   `json:"previous_tat"`
	PreviousDueAt time.Time `json:"previous_due_at"`
	NewTAT        string    `json:"new_tat"`
	NewDueAt      time.Time `json:"new_due_at"`
	ActorID       string    `json:"actor_id"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Comment is a free-form ticket comment stored in the metadata record.
type Comment struct {
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
