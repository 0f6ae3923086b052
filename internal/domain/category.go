package domain

// Category is the master-data projection resolving a ticket category to
// its routing domain and SLA windows. CRUD over this table is out of scope.
type Category struct {
	ID       string
	Name     string
	Domain   string
	SLAHours int
	AckHours int
}
