// Package reminder owns the reminder lifecycle: creation with a durable
// scheduler handle, listing, deletion, and translation of fired timers into
// reminders events.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/application/task"
	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/scheduler"
)

// TriggerPayload is the scheduler callback body posted to
// /internal/jobs/reminder-trigger. It is also the payload stored on the
// scheduled job at creation time.
type TriggerPayload struct {
	ReminderID string `json:"reminder_id"`
	TaskID     string `json:"task_id"`
	UserID     string `json:"user_id"`
}

// Config holds configuration for the Service.
type Config struct {
	// Source is the producer app id stamped on reminder envelopes.
	Source string

	// CallbackURL is the full URL the scheduler POSTs at fire time.
	CallbackURL string
}

// Service provides business logic for reminders. It shares the Task API
// repository so reminder rows and scheduler handles commit atomically with
// the checks that guard them.
type Service struct {
	repo   task.Repository
	config Config
}

// NewService creates a new reminder service.
func NewService(repo task.Repository, config Config) *Service {
	if config.Source == "" {
		config.Source = task.DefaultSource
	}
	return &Service{repo: repo, config: config}
}

// CreateReminder persists the reminder and its scheduler job in one
// transaction: row and handle succeed or fail together. RemindAt must be
// strictly in the future at creation time.
func (s *Service) CreateReminder(ctx context.Context, userID, taskID string, remindAt time.Time) (*domain.Reminder, error) {
	if !remindAt.After(time.Now().UTC()) {
		return nil, domain.ErrRemindAtInPast
	}

	reminderID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}
	handleID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate handle: %w", err)
	}

	payload, err := json.Marshal(TriggerPayload{
		ReminderID: reminderID.String(),
		TaskID:     taskID,
		UserID:     userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode trigger payload: %w", err)
	}

	now := time.Now().UTC()
	reminder := &domain.Reminder{
		ID:              reminderID.String(),
		TaskID:          taskID,
		UserID:          userID,
		RemindAt:        remindAt.UTC(),
		CreatedAt:       now,
		SchedulerHandle: handleID.String(),
	}

	err = s.repo.Atomic(ctx, func(tx task.TxRepository) error {
		// Row lock on the task keeps the delete cascade from racing us.
		if _, err := tx.FindTaskForUpdate(ctx, userID, taskID); err != nil {
			return err
		}

		job := &scheduler.Job{
			ID:          handleID.String(),
			FireAt:      remindAt.UTC(),
			URL:         s.config.CallbackURL,
			Payload:     payload,
			Status:      scheduler.JobStatusPending,
			AvailableAt: remindAt.UTC(),
			CreatedAt:   now,
		}
		if err := tx.InsertScheduledJob(ctx, job); err != nil {
			return fmt.Errorf("failed to schedule reminder: %w", err)
		}

		if err := tx.InsertReminder(ctx, reminder); err != nil {
			return fmt.Errorf("failed to insert reminder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reminder, nil
}

// ListReminders returns all reminders for the task iff owned by userID.
func (s *Service) ListReminders(ctx context.Context, userID, taskID string) ([]domain.Reminder, error) {
	return s.repo.FindRemindersByTask(ctx, userID, taskID)
}

// DeleteReminder cancels the scheduler handle and removes the row atomically.
func (s *Service) DeleteReminder(ctx context.Context, userID, taskID, reminderID string) error {
	return s.repo.Atomic(ctx, func(tx task.TxRepository) error {
		reminders, err := tx.FindRemindersByTask(ctx, userID, taskID)
		if err != nil {
			return err
		}

		for _, reminder := range reminders {
			if reminder.ID != reminderID {
				continue
			}
			if err := tx.CancelScheduledJob(ctx, reminder.SchedulerHandle); err != nil {
				return fmt.Errorf("failed to cancel scheduler handle: %w", err)
			}
			if err := tx.DeleteReminder(ctx, reminder.ID); err != nil {
				return fmt.Errorf("failed to delete reminder: %w", err)
			}
			return nil
		}

		return domain.ErrReminderNotFound
	})
}

// HandleTrigger translates a fired scheduler job into a reminders event and
// consumes the reminder row. If the reminder or its task is gone (the user
// deleted them in the window between fire and delivery) the trigger succeeds
// silently; the scheduler's at-least-once redelivery makes this path common.
func (s *Service) HandleTrigger(ctx context.Context, payload TriggerPayload) error {
	return s.repo.Atomic(ctx, func(tx task.TxRepository) error {
		taskRow, err := tx.FindTaskForUpdate(ctx, payload.UserID, payload.TaskID)
		if errors.Is(err, domain.ErrTaskNotFound) {
			slog.InfoContext(ctx, "reminder trigger for deleted task, ignoring",
				"task_id", payload.TaskID,
				"reminder_id", payload.ReminderID)
			return nil
		}
		if err != nil {
			return err
		}

		reminders, err := tx.FindRemindersByTask(ctx, payload.UserID, payload.TaskID)
		if err != nil {
			return err
		}

		for _, reminder := range reminders {
			if reminder.ID != payload.ReminderID {
				continue
			}

			env, err := event.NewReminderTrigger(s.config.Source, event.ReminderTriggerData{
				ReminderID: reminder.ID,
				TaskID:     taskRow.ID,
				UserID:     taskRow.UserID,
				Title:      taskRow.Title,
				DueAt:      taskRow.DueAt,
				RemindAt:   reminder.RemindAt,
				Timestamp:  time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			if err := tx.InsertOutbox(ctx, event.TopicReminders, env); err != nil {
				return fmt.Errorf("failed to stage reminder event: %w", err)
			}

			// The handle is consumed by the fire; only the row remains.
			if err := tx.DeleteReminder(ctx, reminder.ID); err != nil {
				return fmt.Errorf("failed to delete fired reminder: %w", err)
			}
			return nil
		}

		slog.InfoContext(ctx, "reminder trigger for deleted reminder, ignoring",
			"task_id", payload.TaskID,
			"reminder_id", payload.ReminderID)
		return nil
	})
}
