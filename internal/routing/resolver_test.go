package routing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestScopeAdmits(t *testing.T) {
	require.True(t, ScopeAdmits("", "Tower-A"))
	require.True(t, ScopeAdmits("Tower-A", "Tower-A"))
	require.True(t, ScopeAdmits("tower-a", "Tower-A"))
	require.False(t, ScopeAdmits("Tower-B", "Tower-A"))
}

func TestIsPickable(t *testing.T) {
	assignment := domain.AdminAssignment{AdminID: "a1", Domain: "HOSTEL", Scope: "Tower-A"}

	unassigned := TicketView{Domain: "HOSTEL", Location: "Tower-A"}
	require.True(t, IsPickable(assignment, unassigned))

	assigned := TicketView{Domain: "HOSTEL", Location: "Tower-A", AssigneeID: strPtr("a2")}
	require.False(t, IsPickable(assignment, assigned))

	// Domain-wide rows view but never pick.
	broad := domain.AdminAssignment{AdminID: "a1", Domain: "HOSTEL"}
	require.False(t, IsPickable(broad, unassigned))

	elsewhere := TicketView{Domain: "HOSTEL", Location: "Tower-B"}
	require.False(t, IsPickable(assignment, elsewhere))
}

func TestVisibilityForUnassigned(t *testing.T) {
	ticket := TicketView{Domain: "HOSTEL", Location: "Tower-A"}

	scoped := []domain.AdminAssignment{{AdminID: "a1", Domain: "HOSTEL", Scope: "Tower-A"}}
	require.Equal(t, VisibilityPickable, VisibilityFor(ticket, "a1", scoped))

	domainWide := []domain.AdminAssignment{{AdminID: "a2", Domain: "HOSTEL"}}
	require.Equal(t, VisibilityViewer, VisibilityFor(ticket, "a2", domainWide))

	otherDomain := []domain.AdminAssignment{{AdminID: "a3", Domain: "MESS"}}
	require.Equal(t, VisibilityNone, VisibilityFor(ticket, "a3", otherDomain))

	// No assignment rows at all: nothing is visible.
	require.Equal(t, VisibilityNone, VisibilityFor(ticket, "a4", nil))
}

func TestVisibilityForAssigned(t *testing.T) {
	ticket := TicketView{Domain: "HOSTEL", Location: "Tower-A", AssigneeID: strPtr("a1")}

	// Only the explicit owner sees an assigned ticket.
	require.Equal(t, VisibilityNone, VisibilityFor(ticket, "a2", []domain.AdminAssignment{
		{AdminID: "a2", Domain: "HOSTEL", Scope: "Tower-A"},
	}))
	require.Equal(t, VisibilityOwner, VisibilityFor(ticket, "a1", []domain.AdminAssignment{
		{AdminID: "a1", Domain: "HOSTEL", Scope: "Tower-A"},
	}))

	// An owner whose only scope is elsewhere is filtered out.
	require.Equal(t, VisibilityNone, VisibilityFor(ticket, "a1", []domain.AdminAssignment{
		{AdminID: "a1", Domain: "HOSTEL", Scope: "Tower-B"},
	}))

	// An owner with no assignment rows still sees their own ticket.
	require.Equal(t, VisibilityOwner, VisibilityFor(ticket, "a1", nil))
}

func TestResolveOrdersTiers(t *testing.T) {
	pool := []domain.AdminAssignment{
		{AdminID: "viewer", Domain: "HOSTEL"},
		{AdminID: "picker", Domain: "HOSTEL", Scope: "Tower-A"},
	}

	unassigned := TicketView{Domain: "HOSTEL", Location: "Tower-A"}
	candidates := Resolve(unassigned, pool)
	require.Len(t, candidates, 2)
	require.Equal(t, "picker", candidates[0].AdminID)
	require.Equal(t, VisibilityPickable, candidates[0].Visibility)
	require.Equal(t, "viewer", candidates[1].AdminID)
	require.Equal(t, VisibilityViewer, candidates[1].Visibility)

	assigned := TicketView{Domain: "HOSTEL", Location: "Tower-A", AssigneeID: strPtr("owner")}
	candidates = Resolve(assigned, pool)
	require.Len(t, candidates, 1)
	require.Equal(t, "owner", candidates[0].AdminID)
	require.Equal(t, VisibilityOwner, candidates[0].Visibility)
}

func TestResolveTowerScoping(t *testing.T) {
	// Two hostel tickets in different towers; a Tower-B warden must not be
	// able to pick the Tower-A ticket.
	pool := []domain.AdminAssignment{
		{AdminID: "warden-a", Domain: "HOSTEL", Scope: "Tower-A"},
		{AdminID: "warden-b", Domain: "HOSTEL", Scope: "Tower-B"},
	}

	towerA := TicketView{Domain: "HOSTEL", Location: "Tower-A"}
	candidates := Resolve(towerA, pool)
	require.Len(t, candidates, 1)
	require.Equal(t, "warden-a", candidates[0].AdminID)

	towerB := TicketView{Domain: "HOSTEL", Location: "Tower-B"}
	candidates = Resolve(towerB, pool)
	require.Len(t, candidates, 1)
	require.Equal(t, "warden-b", candidates[0].AdminID)
}
