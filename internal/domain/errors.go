package domain

import "errors"

// Domain errors surfaced by services and repository implementations.
// The HTTP layer maps these to status codes in a single boundary; everything
// below it works with typed errors only.

var (
	// ErrTaskNotFound indicates the task does not exist under the
	// authenticated user. Cross-user access is deliberately indistinguishable
	// from absence.
	ErrTaskNotFound = errors.New("task not found")

	// ErrReminderNotFound indicates the reminder does not exist under the
	// authenticated user and task.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrTitleRequired indicates an empty or whitespace-only title.
	ErrTitleRequired = errors.New("title is required")

	// ErrTitleTooLong indicates a title over 255 characters.
	ErrTitleTooLong = errors.New("title must be 255 characters or less")

	// ErrDescriptionTooLong indicates a description over 2000 characters.
	ErrDescriptionTooLong = errors.New("description must be 2000 characters or less")

	// ErrInvalidPriority indicates a priority outside {low, medium, high, critical}.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidRecurrenceRule indicates a rule outside {daily, weekly, monthly}.
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")

	// ErrRecurrenceRuleRequired indicates is_recurring=true without a rule.
	ErrRecurrenceRuleRequired = errors.New("recurrence_rule is required for recurring tasks")

	// ErrRecurrenceRuleForbidden indicates a rule on a non-recurring task.
	ErrRecurrenceRuleForbidden = errors.New("recurrence_rule requires is_recurring")

	// ErrRemindAtInPast indicates a reminder time that is not in the future.
	ErrRemindAtInPast = errors.New("remind_at must be in the future")

	// ErrInvalidSortField indicates an unsupported list sort field.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidSortOrder indicates a sort order outside {asc, desc}.
	ErrInvalidSortOrder = errors.New("invalid sort order")

	// ErrInvalidStatusFilter indicates a status filter outside {completed, pending, all}.
	ErrInvalidStatusFilter = errors.New("invalid status filter")

	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the token user does not match the URL user.
	ErrForbidden = errors.New("forbidden")

	// ErrVersionConflict indicates a concurrent update raced this one.
	ErrVersionConflict = errors.New("version conflict: resource was modified concurrently")

	// ErrUnavailable indicates a transient downstream failure (store, bus,
	// scheduler). Callers should retry with backoff.
	ErrUnavailable = errors.New("service temporarily unavailable")

	// ErrBacklogFull indicates the outbox is above its high-water mark and
	// mutating requests are being shed.
	ErrBacklogFull = errors.New("event backlog full")

	// ErrDuplicateEvent indicates a consumer already processed this event id.
	// Treated as success by consumers.
	ErrDuplicateEvent = errors.New("event already processed")

	// ErrInvalidEventType indicates an event type outside the lifecycle set.
	ErrInvalidEventType = errors.New("invalid event type")
)
