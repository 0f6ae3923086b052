package domain

// StatusRow is one row of the admin-configurable status catalog.
//
// The catalog is data, not a closed enumeration: admins can add or retire
// values at runtime. Callers branch on IsFinal only.
type StatusRow struct {
	Value           string
	Label           string
	ProgressPercent int
	IsFinal         bool
	DisplayOrder    int
}
