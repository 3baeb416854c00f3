// Package notify delivers reminder notifications, at least once on the bus
// side and at most once per reminder through the processed-events barrier.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
)

// Service consumes the reminders topic.
type Service struct {
	repo Repository
	sink Sink
}

// NewService creates a new notification service.
func NewService(repo Repository, sink Sink) *Service {
	return &Service{repo: repo, sink: sink}
}

// Handle is the bus handler for reminders. The sink effect and the dedup row
// commit together; a redelivered envelope id is acknowledged without a second
// delivery.
func (s *Service) Handle(ctx context.Context, env event.Envelope) error {
	var payload event.ReminderTriggerData
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode reminder payload: %w", err)
	}

	err := s.repo.Processed(ctx, env.ID, func(ctx context.Context) error {
		return s.sink.Notify(ctx, Notification{
			ReminderID: payload.ReminderID,
			TaskID:     payload.TaskID,
			UserID:     payload.UserID,
			Title:      payload.Title,
			DueAt:      payload.DueAt,
			RemindAt:   payload.RemindAt,
		})
	})
	if errors.Is(err, domain.ErrDuplicateEvent) {
		slog.DebugContext(ctx, "duplicate reminder event, already notified",
			"event_id", env.ID,
			"reminder_id", payload.ReminderID)
		return nil
	}
	return err
}
