package domain

import "time"

// CreateTaskParams contains the validated fields for creating a task.
type CreateTaskParams struct {
	UserID      string
	Title       string
	Description string
	Priority    *TaskPriority
	Tags        []string
	DueAt       *time.Time

	IsRecurring    bool
	RecurrenceRule *RecurrenceRule
}

// UpdateTaskParams contains parameters for a partial task update.
// Only non-nil fields are applied; the recurrence invariant is re-checked on
// the merged result before persisting.
type UpdateTaskParams struct {
	TaskID string
	UserID string

	Title       *string
	Description *string
	Priority    *TaskPriority
	// ClearPriority removes the priority entirely. Wins over Priority.
	ClearPriority bool
	Tags          *[]string
	DueAt         *time.Time
	// ClearDueAt removes the due date entirely. Wins over DueAt.
	ClearDueAt bool

	IsRecurring    *bool
	RecurrenceRule *RecurrenceRule
}

// Sort fields accepted by ListTasksParams.
const (
	SortByCreatedAt = "created_at"
	SortByDueAt     = "due_at"
	SortByPriority  = "priority"
	SortByTitle     = "title"
)

// Status filter values accepted by ListTasksParams.
const (
	StatusFilterAll       = "all"
	StatusFilterCompleted = "completed"
	StatusFilterPending   = "pending"
)

// ListTasksParams contains parameters for listing tasks with filtering,
// sorting and searching. All filters are server-side and scoped to UserID.
//
// Common use cases:
//   - "My overdue tasks": DueBefore=now(), SortBy="due_at"
//   - "High priority pending": Priority=high, Status=pending
//   - "Find by text": Search="groceries" (case-insensitive substring)
type ListTasksParams struct {
	UserID string

	// Optional filters (zero value = no filter applied)
	Priority  *TaskPriority
	Tags      []string // AND semantics: task tags must be a superset
	Status    string   // completed, pending or all (empty = all)
	DueBefore *time.Time
	DueAfter  *time.Time
	Search    string // case-insensitive substring over title, description, tags

	// Sorting (empty uses defaults: created_at field, desc direction).
	// Secondary tiebreak is always created_at descending for stable ordering;
	// due_at sorts null-last regardless of direction.
	SortBy    string // created_at, due_at, priority, title
	SortOrder string // asc or desc
}

// Validate checks the enum-valued fields of ListTasksParams.
func (p ListTasksParams) Validate() error {
	switch p.SortBy {
	case "", SortByCreatedAt, SortByDueAt, SortByPriority, SortByTitle:
	default:
		return ErrInvalidSortField
	}
	switch p.SortOrder {
	case "", "asc", "desc":
	default:
		return ErrInvalidSortOrder
	}
	switch p.Status {
	case "", StatusFilterAll, StatusFilterCompleted, StatusFilterPending:
	default:
		return ErrInvalidStatusFilter
	}
	return nil
}
