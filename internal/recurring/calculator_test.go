package recurring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name  string
		rule  domain.RecurrenceRule
		after time.Time
		want  time.Time
	}{
		{name: "daily", rule: domain.RecurrenceDaily, after: date(2026, time.March, 14), want: date(2026, time.March, 15)},
		{name: "daily across month end", rule: domain.RecurrenceDaily, after: date(2026, time.January, 31), want: date(2026, time.February, 1)},
		{name: "weekly", rule: domain.RecurrenceWeekly, after: date(2026, time.March, 2), want: date(2026, time.March, 9)},
		{name: "weekly across year end", rule: domain.RecurrenceWeekly, after: date(2025, time.December, 29), want: date(2026, time.January, 5)},
		{name: "monthly mid-month", rule: domain.RecurrenceMonthly, after: date(2026, time.March, 15), want: date(2026, time.April, 15)},
		{name: "monthly jan 31 clamps to feb 28", rule: domain.RecurrenceMonthly, after: date(2026, time.January, 31), want: date(2026, time.February, 28)},
		{name: "monthly jan 31 leap year clamps to feb 29", rule: domain.RecurrenceMonthly, after: date(2024, time.January, 31), want: date(2024, time.February, 29)},
		{name: "monthly mar 31 clamps to apr 30", rule: domain.RecurrenceMonthly, after: date(2026, time.March, 31), want: date(2026, time.April, 30)},
		{name: "monthly feb 29 recovers to mar 31", rule: domain.RecurrenceMonthly, after: date(2024, time.February, 29), want: date(2024, time.March, 31)},
		{name: "monthly feb 28 recovers to mar 31", rule: domain.RecurrenceMonthly, after: date(2026, time.February, 28), want: date(2026, time.March, 31)},
		{name: "monthly dec rolls year", rule: domain.RecurrenceMonthly, after: date(2025, time.December, 10), want: date(2026, time.January, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextOccurrence(tt.rule, tt.after)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A monthly chain started on the 31st must return to the 31st after passing
// through shorter months instead of drifting down to the clamped day.
func TestNextOccurrenceMonthlyChainKeepsEndOfMonth(t *testing.T) {
	current := date(2024, time.January, 31)
	want := []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
	}

	for _, next := range want {
		got, ok := NextOccurrence(domain.RecurrenceMonthly, current)
		require.True(t, ok)
		require.Equal(t, next, got)
		current = got
	}
}

func TestNextOccurrencePreservesTimeOfDay(t *testing.T) {
	after := time.Date(2026, time.May, 31, 23, 59, 58, 0, time.UTC)
	got, ok := NextOccurrence(domain.RecurrenceMonthly, after)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, time.June, 30, 23, 59, 58, 0, time.UTC), got)
}

func TestNextOccurrenceUnknownRule(t *testing.T) {
	_, ok := NextOccurrence(domain.RecurrenceRule("yearly"), date(2026, time.January, 1))
	assert.False(t, ok)
}
