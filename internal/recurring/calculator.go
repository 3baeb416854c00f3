// Package recurring computes successor due dates for recurring tasks.
// All arithmetic is in UTC; presentation timezones are out of scope.
package recurring

import (
	"time"

	"github.com/taskloop/taskloop/internal/domain"
)

// NextOccurrence returns the due date of the next occurrence after the given
// one. Monthly recurrence preserves the day of month where possible and
// clamps to the last day of shorter months. An occurrence falling on the last
// day of its month stays on the last day, so a clamped chain recovers:
// Jan 31 -> Feb 29 -> Mar 31, not Mar 29.
// Returns false for an unknown rule.
func NextOccurrence(rule domain.RecurrenceRule, after time.Time) (time.Time, bool) {
	after = after.UTC()

	switch rule {
	case domain.RecurrenceDaily:
		return after.AddDate(0, 0, 1), true
	case domain.RecurrenceWeekly:
		return after.AddDate(0, 0, 7), true
	case domain.RecurrenceMonthly:
		return addMonthClamped(after, 1), true
	default:
		return time.Time{}, false
	}
}

// addMonthClamped adds months without the AddDate overflow behavior:
// Jan 31 + 1 month yields Feb 29/28, not Mar 2/3.
func addMonthClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	endOfMonth := day == daysIn(year, month)

	// First-of-month anchor avoids overflow, then restore the day clamped to
	// the target month's length.
	anchor := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	anchor = anchor.AddDate(0, months, 0)

	last := daysIn(anchor.Year(), anchor.Month())
	if endOfMonth || day > last {
		day = last
	}

	return time.Date(anchor.Year(), anchor.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
