package task

import (
	"context"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/scheduler"
)

// Repository is the persistence port of the Task API. The Task API is the
// sole writer of task, reminder, outbox and scheduled-job rows.
type Repository interface {
	// Atomic executes fn within one store transaction. All operations on the
	// TxRepository succeed together or fail together.
	Atomic(ctx context.Context, fn func(tx TxRepository) error) error

	// FindTaskByID returns the task iff it is owned by userID; otherwise
	// domain.ErrTaskNotFound. Cross-user lookups are indistinguishable from
	// absence.
	FindTaskByID(ctx context.Context, userID, taskID string) (*domain.Task, error)

	// FindTasks returns the user's tasks matching params, filtered, searched
	// and sorted server-side.
	FindTasks(ctx context.Context, params domain.ListTasksParams) ([]domain.Task, error)

	// FindRemindersByTask returns all reminders of the task iff owned.
	// Returns domain.ErrTaskNotFound when the task is absent under userID.
	FindRemindersByTask(ctx context.Context, userID, taskID string) ([]domain.Reminder, error)

	// FindReminderByID returns the reminder iff owned via userID and taskID.
	FindReminderByID(ctx context.Context, userID, taskID, reminderID string) (*domain.Reminder, error)

	// CountPendingOutbox returns the number of unpublished outbox rows.
	// Used for the high-water backpressure check.
	CountPendingOutbox(ctx context.Context) (int, error)
}

// TxRepository is the transactional surface available inside Atomic.
type TxRepository interface {
	InsertTask(ctx context.Context, task *domain.Task) error

	// FindTaskForUpdate loads the task with a row lock, scoped to userID.
	FindTaskForUpdate(ctx context.Context, userID, taskID string) (*domain.Task, error)

	// UpdateTask persists the task, bumping Version. Returns
	// domain.ErrVersionConflict if the stored version moved underneath.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes the task row. Reminder rows are deleted separately
	// so their scheduler handles can be cancelled first.
	DeleteTask(ctx context.Context, userID, taskID string) error

	InsertReminder(ctx context.Context, reminder *domain.Reminder) error
	DeleteReminder(ctx context.Context, reminderID string) error

	// FindRemindersByTask lists reminders inside the transaction (used by the
	// delete cascade to collect scheduler handles).
	FindRemindersByTask(ctx context.Context, userID, taskID string) ([]domain.Reminder, error)

	// InsertOutbox stages an envelope for the dispatcher in the same
	// transaction as the state change it describes.
	InsertOutbox(ctx context.Context, topic string, env event.Envelope) error

	// InsertScheduledJob persists an embedded-scheduler timer.
	InsertScheduledJob(ctx context.Context, job *scheduler.Job) error

	// CancelScheduledJob deletes a pending timer by handle. Cancelling a
	// handle that already fired (or never existed) is a no-op.
	CancelScheduledJob(ctx context.Context, handle string) error
}
