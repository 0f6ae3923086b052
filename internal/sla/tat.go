package sla

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DueClass buckets a deadline relative to the current calendar date.
type DueClass int

const (
	DueUpcoming DueClass = iota
	DueToday
	DueOverdue
)

func (c DueClass) String() string {
	switch c {
	case DueToday:
		return "today"
	case DueOverdue:
		return "overdue"
	default:
		return "upcoming"
	}
}

// ParseTAT parses a human-entered turnaround duration. Accepted forms:
// anything time.ParseDuration takes ("48h", "90m"), day forms ("3d",
// "2 days", "1 day") and week forms ("1w", "2 weeks").
func ParseTAT(input string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return 0, fmt.Errorf("empty turnaround time")
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("turnaround time must be positive: %q", input)
		}
		return d, nil
	}

	value, unit, ok := splitValueUnit(s)
	if !ok {
		return 0, fmt.Errorf("unrecognized turnaround time: %q", input)
	}

	switch unit {
	case "d", "day", "days":
		return time.Duration(value) * 24 * time.Hour, nil
	case "w", "wk", "week", "weeks":
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case "h", "hr", "hour", "hours":
		return time.Duration(value) * time.Hour, nil
	default:
		return 0, fmt.Errorf("unrecognized turnaround unit %q in %q", unit, input)
	}
}

func splitValueUnit(s string) (int, string, bool) {
	s = strings.ReplaceAll(s, " ", "")
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, "", false
	}
	value, err := strconv.Atoi(s[:i])
	if err != nil || value <= 0 {
		return 0, "", false
	}
	return value, s[i:], true
}

// DueAt computes a deadline from a start instant and an SLA window in hours.
func DueAt(start time.Time, slaHours int) time.Time {
	return start.Add(time.Duration(slaHours) * time.Hour)
}

// Classify buckets a deadline against now by calendar date in loc,
// midnight-to-midnight. A ticket due at any time-of-day within today's
// date classifies as today; any earlier date is overdue.
func Classify(due, now time.Time, loc *time.Location) DueClass {
	dayStart := StartOfDay(now, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	switch {
	case due.Before(dayStart):
		return DueOverdue
	case due.Before(dayEnd):
		return DueToday
	default:
		return DueUpcoming
	}
}

// StartOfDay returns local midnight for t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// SameCalendarDay reports whether two instants fall on the same date in loc.
func SameCalendarDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
