package domain

// AdminRole enumerates staff roles used for authorization checks.
type AdminRole string

const (
	RoleAdmin      AdminRole = "ADMIN"
	RoleSuperAdmin AdminRole = "SUPER_ADMIN"
)

// AdminAssignment is the routing projection of the staff directory:
// which domain (and optionally which narrower scope within it) an admin
// is responsible for. Used purely for routing, never for authorization.
type AdminAssignment struct {
	AdminID string
	Domain  string
	Scope   string
}

// Admin is the directory projection backing login and role guards.
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         AdminRole
	Active       bool
}
