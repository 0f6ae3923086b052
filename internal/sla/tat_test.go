package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTAT(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
	}{
		{"48h", 48 * time.Hour},
		{"90m", 90 * time.Minute},
		{"3d", 72 * time.Hour},
		{"1 day", 24 * time.Hour},
		{"2 days", 48 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"2 weeks", 14 * 24 * time.Hour},
		{"12 hours", 12 * time.Hour},
		{" 48H ", 48 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseTAT(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		require.Equal(t, tc.want, got, "input %q", tc.input)
	}
}

func TestParseTATRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-3d", "0d", "3 fortnights", "d3", "-48h"} {
		_, err := ParseTAT(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestDueAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.Equal(t, start.Add(48*time.Hour), DueAt(start, 48))
}

func TestClassify(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, loc)

	// Any time-of-day on today's date counts as today.
	require.Equal(t, DueToday, Classify(time.Date(2026, 3, 10, 0, 1, 0, 0, loc), now, loc))
	require.Equal(t, DueToday, Classify(time.Date(2026, 3, 10, 23, 59, 0, 0, loc), now, loc))

	// Yesterday 23:59 is overdue, tomorrow 00:01 is upcoming.
	require.Equal(t, DueOverdue, Classify(time.Date(2026, 3, 9, 23, 59, 0, 0, loc), now, loc))
	require.Equal(t, DueUpcoming, Classify(time.Date(2026, 3, 11, 0, 1, 0, 0, loc), now, loc))
}

func TestClassifyRespectsLocation(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC on Mar 10 is already Mar 11 in Kolkata. A due time of
	// Mar 11 06:00 IST is Mar 11 00:30 UTC, so the two locations land
	// on different calendar days relative to now.
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	due := time.Date(2026, 3, 11, 6, 0, 0, 0, kolkata)

	require.Equal(t, DueToday, Classify(due, now, kolkata))
	require.Equal(t, DueUpcoming, Classify(due, now, time.UTC))
}

func TestStartOfDayAndSameCalendarDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	instant := time.Date(2026, 3, 10, 18, 45, 0, 0, loc)
	start := StartOfDay(instant, loc)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), start)

	require.True(t, SameCalendarDay(instant, start, loc))
	require.False(t, SameCalendarDay(instant, start.AddDate(0, 0, -1), loc))
}
