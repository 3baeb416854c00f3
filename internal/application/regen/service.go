// Package regen regenerates recurring tasks: when a recurring task completes,
// it deterministically schedules the next occurrence through the Task API.
package regen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/recurring"
	"github.com/taskloop/taskloop/internal/taskclient"
)

// TaskCreator is the slice of the Task API client the regenerator needs.
type TaskCreator interface {
	CreateTask(ctx context.Context, req taskclient.CreateTaskRequest) (*taskclient.CreatedTask, error)
}

// Service consumes task-events and creates successor tasks.
type Service struct {
	repo    Repository
	creator TaskCreator
}

// NewService creates a new regenerator service.
func NewService(repo Repository, creator TaskCreator) *Service {
	return &Service{repo: repo, creator: creator}
}

// Handle is the bus handler for task-events.
//
// Only the transition to completed on a recurring task produces a successor:
// event_type must be completed, the snapshot must be recurring, and the
// snapshot's completed flag must be true (un-completing emits the same event
// type with completed=false and is ignored). Everything else is acknowledged
// untouched.
func (s *Service) Handle(ctx context.Context, env event.Envelope) error {
	var payload event.TaskLifecycleData
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode lifecycle payload: %w", err)
	}

	snap := payload.TaskData
	if payload.EventType != domain.EventTypeCompleted || !snap.IsRecurring || !snap.Completed {
		return nil
	}
	if snap.RecurrenceRule == nil {
		// Violates the recurrence invariant upstream; nothing to regenerate.
		slog.WarnContext(ctx, "recurring completion without a rule, ignoring",
			"event_id", env.ID,
			"task_id", snap.ID)
		return nil
	}

	err := s.repo.Processed(ctx, env.ID, func(ctx context.Context) error {
		return s.regenerate(ctx, env, snap)
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		slog.DebugContext(ctx, "duplicate completion event, successor exists",
			"event_id", env.ID,
			"task_id", snap.ID)
		return nil
	}
	return err
}

func (s *Service) regenerate(ctx context.Context, env event.Envelope, snap event.TaskSnapshot) error {
	rule, err := domain.NewRecurrenceRule(*snap.RecurrenceRule)
	if err != nil {
		return s.recordRejection(ctx, env, snap, fmt.Sprintf("invalid recurrence rule: %s", *snap.RecurrenceRule))
	}

	// Anchor on the completed occurrence's due date; fall back to the event
	// time for tasks that recur without one.
	anchor := env.Time
	if snap.DueAt != nil {
		anchor = *snap.DueAt
	}
	nextDue, ok := recurring.NextOccurrence(rule, anchor)
	if !ok {
		return s.recordRejection(ctx, env, snap, fmt.Sprintf("no calculator for rule: %s", rule))
	}

	created, err := s.creator.CreateTask(ctx, taskclient.CreateTaskRequest{
		UserID:         snap.UserID,
		Title:          snap.Title,
		Description:    snap.Description,
		Priority:       snap.Priority,
		Tags:           snap.Tags,
		DueAt:          &nextDue,
		IsRecurring:    true,
		RecurrenceRule: snap.RecurrenceRule,
	})
	if err != nil {
		if errors.Is(err, taskclient.ErrRejected) {
			// Terminal for this event: record and acknowledge, do not loop.
			return s.recordRejection(ctx, env, snap, err.Error())
		}
		// Transient: fail the handler so the bus redelivers.
		return fmt.Errorf("failed to create successor task: %w", err)
	}

	slog.InfoContext(ctx, "successor task created",
		"event_id", env.ID,
		"completed_task_id", snap.ID,
		"successor_task_id", created.ID,
		"next_due_at", nextDue,
		"rule", rule)
	return nil
}

// recordRejection appends a failure entry and returns nil so the event is
// acknowledged and never redelivered.
func (s *Service) recordRejection(ctx context.Context, env event.Envelope, snap event.TaskSnapshot, reason string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}

	failure := &Failure{
		ID:       id.String(),
		EventID:  env.ID,
		TaskID:   snap.ID,
		UserID:   snap.UserID,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
	if err := s.repo.RecordFailure(ctx, failure); err != nil {
		return fmt.Errorf("failed to record regeneration failure: %w", err)
	}

	slog.WarnContext(ctx, "successor creation rejected, recorded",
		"event_id", env.ID,
		"task_id", snap.ID,
		"reason", reason)
	return nil
}
