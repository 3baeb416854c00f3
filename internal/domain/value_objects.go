package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Title is a validated title value object (1-255 characters).
type Title struct {
	value string
}

// NewTitle creates a new Title, validating the input.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return Title{}, ErrTitleRequired
	}

	// Length limits are in characters, not bytes.
	if utf8.RuneCountInString(s) > 255 {
		return Title{}, ErrTitleTooLong
	}

	return Title{value: s}, nil
}

// String returns the title value.
func (t Title) String() string {
	return t.value
}

// Description is a validated description value object (0-2000 characters).
type Description struct {
	value string
}

// NewDescription creates a new Description, validating the input.
// Empty descriptions are valid.
func NewDescription(s string) (Description, error) {
	if utf8.RuneCountInString(s) > 2000 {
		return Description{}, ErrDescriptionTooLong
	}
	return Description{value: s}, nil
}

// String returns the description value.
func (d Description) String() string {
	return d.value
}

// NewTaskPriority validates and creates a TaskPriority.
func NewTaskPriority(s string) (TaskPriority, error) {
	priority := TaskPriority(strings.ToLower(s))

	switch priority {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return priority, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidPriority, s)
	}
}

// NewRecurrenceRule validates and creates a RecurrenceRule.
func NewRecurrenceRule(s string) (RecurrenceRule, error) {
	rule := RecurrenceRule(strings.ToLower(s))

	switch rule {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return rule, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidRecurrenceRule, s)
	}
}

// NormalizeTags trims, lowercases nothing, drops empties and deduplicates
// while keeping first-seen order. Tag comparison elsewhere is exact.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// ValidateRecurrence enforces the recurrence invariant: is_recurring and
// recurrence_rule are set together or not at all.
func ValidateRecurrence(isRecurring bool, rule *RecurrenceRule) error {
	if isRecurring && rule == nil {
		return ErrRecurrenceRuleRequired
	}
	if !isRecurring && rule != nil {
		return ErrRecurrenceRuleForbidden
	}
	return nil
}
