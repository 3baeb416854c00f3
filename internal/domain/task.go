package domain

import (
	"time"
)

// Task is the aggregate root owned exclusively by the Task API.
//
// Reminders are NOT embedded in this aggregate. They are fetched separately
// via FindReminders to keep task reads cheap; the store enforces that a
// reminder row never outlives its task.
type Task struct {
	ID     string
	UserID string // Owner. Immutable once set; every read/write is gated on it.

	Title       string
	Description string
	Completed   bool

	Priority *TaskPriority // Optional
	Tags     []string

	DueAt *time.Time // Optional

	// Recurrence. IsRecurring and RecurrenceRule are set together or not at
	// all; CreateTask/UpdateTask reject any state where only one is present.
	IsRecurring    bool
	RecurrenceRule *RecurrenceRule

	CreatedAt time.Time
	UpdatedAt time.Time

	// Optimistic locking version for concurrent update protection.
	Version int
}

// Reminder is an entity within the Task aggregate. It exists only while its
// task exists; task deletion cascades to reminder rows and cancels the
// scheduler handle in the same unit of work.
type Reminder struct {
	ID     string
	TaskID string
	UserID string

	RemindAt  time.Time // Strictly in the future at creation time.
	CreatedAt time.Time

	// SchedulerHandle is the opaque token returned by the scheduler when the
	// one-shot job was created. Consumed when the job fires, cancelled when
	// the reminder or its task is deleted.
	SchedulerHandle string
}
