package routing

import (
	"strings"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

// Visibility describes how an admin relates to a ticket, in ascending
// strength: a pickable ticket is also visible, an owned ticket is both.
type Visibility int

const (
	VisibilityNone Visibility = iota
	VisibilityViewer
	VisibilityPickable
	VisibilityOwner
)

func (v Visibility) String() string {
	switch v {
	case VisibilityOwner:
		return "owner"
	case VisibilityViewer:
		return "viewer"
	case VisibilityPickable:
		return "pickable"
	default:
		return "none"
	}
}

// TicketView is the routing-relevant slice of a ticket.
type TicketView struct {
	Domain     string
	Location   string
	AssigneeID *string
}

// Candidate pairs an admin with the visibility tier that matched.
type Candidate struct {
	AdminID    string
	Visibility Visibility
}

// The resolver is a fixed list of pure predicates evaluated top-down per
// admin; the first predicate that matches decides the tier. All string
// comparisons are case-insensitive. Admins with no assignment rows see
// nothing beyond tickets explicitly assigned to them.

// IsExplicitOwner reports whether the ticket is explicitly assigned to adminID.
func IsExplicitOwner(ticket TicketView, adminID string) bool {
	return ticket.AssigneeID != nil && *ticket.AssigneeID == adminID
}

// ScopeAdmits reports whether an assignment scope admits the ticket location.
// An empty scope admits every location.
func ScopeAdmits(scope, location string) bool {
	return scope == "" || strings.EqualFold(scope, location)
}

// DomainMatches reports whether the assignment covers the ticket's domain,
// honoring the assignment's scope restriction.
func DomainMatches(assignment domain.AdminAssignment, ticket TicketView) bool {
	if !strings.EqualFold(assignment.Domain, ticket.Domain) {
		return false
	}
	return ScopeAdmits(assignment.Scope, ticket.Location)
}

// IsPickable reports whether an unassigned ticket is pickable under the
// assignment: both domain and scope must match the ticket exactly.
func IsPickable(assignment domain.AdminAssignment, ticket TicketView) bool {
	if ticket.AssigneeID != nil {
		return false
	}
	return strings.EqualFold(assignment.Domain, ticket.Domain) &&
		assignment.Scope != "" &&
		strings.EqualFold(assignment.Scope, ticket.Location)
}

// VisibilityFor evaluates the predicate tiers for one admin. assignments
// must be that admin's own rows.
func VisibilityFor(ticket TicketView, adminID string, assignments []domain.AdminAssignment) Visibility {
	if ticket.AssigneeID != nil {
		if !IsExplicitOwner(ticket, adminID) {
			return VisibilityNone
		}
		// The owner's scope restriction still filters visibility.
		for _, a := range assignments {
			if a.Scope != "" && !ScopeAdmits(a.Scope, ticket.Location) {
				return VisibilityNone
			}
		}
		return VisibilityOwner
	}

	best := VisibilityNone
	for _, a := range assignments {
		if IsPickable(a, ticket) {
			return VisibilityPickable
		}
		if DomainMatches(a, ticket) && best < VisibilityViewer {
			best = VisibilityViewer
		}
	}
	return best
}

// Resolve produces the ordered set of admins who should see or own the
// ticket: the explicit owner first, then pickers, then viewers. Pure and
// safe to call concurrently.
func Resolve(ticket TicketView, pool []domain.AdminAssignment) []Candidate {
	byAdmin := make(map[string][]domain.AdminAssignment)
	order := []string{}
	for _, a := range pool {
		if _, seen := byAdmin[a.AdminID]; !seen {
			order = append(order, a.AdminID)
		}
		byAdmin[a.AdminID] = append(byAdmin[a.AdminID], a)
	}
	if ticket.AssigneeID != nil {
		if _, seen := byAdmin[*ticket.AssigneeID]; !seen {
			order = append(order, *ticket.AssigneeID)
		}
	}

	var owners, pickers, viewers []Candidate
	for _, adminID := range order {
		switch v := VisibilityFor(ticket, adminID, byAdmin[adminID]); v {
		case VisibilityOwner:
			owners = append(owners, Candidate{AdminID: adminID, Visibility: v})
		case VisibilityPickable:
			pickers = append(pickers, Candidate{AdminID: adminID, Visibility: v})
		case VisibilityViewer:
			viewers = append(viewers, Candidate{AdminID: adminID, Visibility: v})
		}
	}

	result := make([]Candidate, 0, len(owners)+len(pickers)+len(viewers))
	result = append(result, owners...)
	result = append(result, pickers...)
	result = append(result, viewers...)
	return result
}
