package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
)

// Config holds configuration for the Service.
type Config struct {
	// Source is the producer app id stamped on every envelope.
	Source string

	// OutboxHighWater sheds mutating requests when the unpublished outbox
	// backlog exceeds it. Zero disables shedding.
	OutboxHighWater int
}

// DefaultSource identifies the Task API as event producer.
const DefaultSource = "taskloop-api"

// Service provides business logic for task management: validation,
// ownership-gated CRUD, and write-then-publish via the outbox.
type Service struct {
	repo   Repository
	config Config
}

// NewService creates a new task service.
func NewService(repo Repository, config Config) *Service {
	if config.Source == "" {
		config.Source = DefaultSource
	}
	return &Service{repo: repo, config: config}
}

// CreateTask validates fields, persists the task and stages its lifecycle
// event, all in one transaction.
func (s *Service) CreateTask(ctx context.Context, params domain.CreateTaskParams) (*domain.Task, error) {
	if err := s.checkBacklog(ctx); err != nil {
		return nil, err
	}

	title, err := domain.NewTitle(params.Title)
	if err != nil {
		return nil, err
	}
	description, err := domain.NewDescription(params.Description)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateRecurrence(params.IsRecurring, params.RecurrenceRule); err != nil {
		return nil, err
	}

	idObj, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	now := time.Now().UTC()
	task := &domain.Task{
		ID:             idObj.String(),
		UserID:         params.UserID,
		Title:          title.String(),
		Description:    description.String(),
		Completed:      false,
		Priority:       params.Priority,
		Tags:           domain.NormalizeTags(params.Tags),
		DueAt:          params.DueAt,
		IsRecurring:    params.IsRecurring,
		RecurrenceRule: params.RecurrenceRule,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}

	err = s.repo.Atomic(ctx, func(tx TxRepository) error {
		if err := tx.InsertTask(ctx, task); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		return s.stageLifecycle(ctx, tx, domain.EventTypeCreated, task)
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// GetTask returns the task iff owned by userID.
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, domain.ErrTaskNotFound
	}
	return s.repo.FindTaskByID(ctx, userID, taskID)
}

// ListTasks returns the user's tasks after validating filter parameters.
func (s *Service) ListTasks(ctx context.Context, params domain.ListTasksParams) ([]domain.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	tasks, err := s.repo.FindTasks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial patch: only provided fields change, and the
// recurrence invariant is re-checked on the merged result. The update and its
// event are one transaction.
func (s *Service) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if err := s.checkBacklog(ctx); err != nil {
		return nil, err
	}

	var updated *domain.Task
	err := s.repo.Atomic(ctx, func(tx TxRepository) error {
		task, err := tx.FindTaskForUpdate(ctx, params.UserID, params.TaskID)
		if err != nil {
			return err
		}

		if err := applyPatch(task, params); err != nil {
			return err
		}
		if err := domain.ValidateRecurrence(task.IsRecurring, task.RecurrenceRule); err != nil {
			return err
		}

		task.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		updated = task
		return s.stageLifecycle(ctx, tx, domain.EventTypeUpdated, task)
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ToggleComplete flips the completed flag and emits a completed event
// regardless of direction. Consumers that only care about the transition to
// completed (the regenerator) filter on the snapshot's completed field.
func (s *Service) ToggleComplete(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	if err := s.checkBacklog(ctx); err != nil {
		return nil, err
	}

	var toggled *domain.Task
	err := s.repo.Atomic(ctx, func(tx TxRepository) error {
		task, err := tx.FindTaskForUpdate(ctx, userID, taskID)
		if err != nil {
			return err
		}

		task.Completed = !task.Completed
		task.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}

		toggled = task
		return s.stageLifecycle(ctx, tx, domain.EventTypeCompleted, task)
	})
	if err != nil {
		return nil, err
	}

	return toggled, nil
}

// DeleteTask removes the task, its reminders and their scheduler handles, and
// stages the deleted event, all in one transaction. The event carries the
// pre-delete snapshot.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := s.checkBacklog(ctx); err != nil {
		return err
	}

	return s.repo.Atomic(ctx, func(tx TxRepository) error {
		task, err := tx.FindTaskForUpdate(ctx, userID, taskID)
		if err != nil {
			return err
		}

		reminders, err := tx.FindRemindersByTask(ctx, userID, taskID)
		if err != nil {
			return err
		}
		for _, reminder := range reminders {
			if err := tx.CancelScheduledJob(ctx, reminder.SchedulerHandle); err != nil {
				return fmt.Errorf("failed to cancel scheduler handle: %w", err)
			}
			if err := tx.DeleteReminder(ctx, reminder.ID); err != nil {
				return fmt.Errorf("failed to delete reminder: %w", err)
			}
		}

		if err := tx.DeleteTask(ctx, userID, taskID); err != nil {
			return err
		}

		return s.stageLifecycle(ctx, tx, domain.EventTypeDeleted, task)
	})
}

// stageLifecycle inserts the task-events envelope plus the parity envelope on
// the reserved task-updates topic.
func (s *Service) stageLifecycle(ctx context.Context, tx TxRepository, eventType domain.EventType, task *domain.Task) error {
	lifecycle, err := event.NewTaskLifecycle(s.config.Source, eventType, task)
	if err != nil {
		return err
	}
	if err := tx.InsertOutbox(ctx, event.TopicTaskEvents, lifecycle); err != nil {
		return fmt.Errorf("failed to stage lifecycle event: %w", err)
	}

	update, err := event.NewTaskUpdate(s.config.Source, eventType, task)
	if err != nil {
		return err
	}
	if err := tx.InsertOutbox(ctx, event.TopicTaskUpdates, update); err != nil {
		return fmt.Errorf("failed to stage task update event: %w", err)
	}

	return nil
}

// checkBacklog degrades mutating requests to retryable failures once the
// outbox backlog passes the high-water mark.
func (s *Service) checkBacklog(ctx context.Context) error {
	if s.config.OutboxHighWater <= 0 {
		return nil
	}
	pending, err := s.repo.CountPendingOutbox(ctx)
	if err != nil {
		return fmt.Errorf("failed to check outbox backlog: %w", err)
	}
	if pending >= s.config.OutboxHighWater {
		return domain.ErrBacklogFull
	}
	return nil
}

// applyPatch merges provided fields onto the task, validating each.
func applyPatch(task *domain.Task, params domain.UpdateTaskParams) error {
	if params.Title != nil {
		title, err := domain.NewTitle(*params.Title)
		if err != nil {
			return err
		}
		task.Title = title.String()
	}
	if params.Description != nil {
		description, err := domain.NewDescription(*params.Description)
		if err != nil {
			return err
		}
		task.Description = description.String()
	}
	switch {
	case params.ClearPriority:
		task.Priority = nil
	case params.Priority != nil:
		task.Priority = params.Priority
	}
	if params.Tags != nil {
		task.Tags = domain.NormalizeTags(*params.Tags)
	}
	switch {
	case params.ClearDueAt:
		task.DueAt = nil
	case params.DueAt != nil:
		task.DueAt = params.DueAt
	}
	if params.IsRecurring != nil {
		task.IsRecurring = *params.IsRecurring
		if !task.IsRecurring {
			// Toggling recurrence off also drops the rule so future
			// completions stop producing successors.
			task.RecurrenceRule = nil
		}
	}
	if params.RecurrenceRule != nil {
		task.RecurrenceRule = params.RecurrenceRule
	}
	return nil
}
