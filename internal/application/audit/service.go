// Package audit maintains the durable, append-only ledger of task lifecycle
// events, queryable per user.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
)

// Service consumes task-events and serves the ledger's read side.
type Service struct {
	repo Repository
}

// NewService creates a new audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Handle is the bus handler for task-events. Replays of the same envelope id
// are absorbed by the processed-events barrier and acknowledged as success.
func (s *Service) Handle(ctx context.Context, env event.Envelope) error {
	var payload struct {
		EventType string          `json:"event_type"`
		TaskData  json.RawMessage `json:"task_data"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode lifecycle payload: %w", err)
	}

	eventType, err := domain.NewEventType(payload.EventType)
	if err != nil {
		// Deterministic failure: redelivery cannot fix it, the bus will
		// dead-letter after the delivery cap.
		return fmt.Errorf("event %s: %w: %s", env.ID, err, payload.EventType)
	}

	var ids struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(payload.TaskData, &ids); err != nil {
		return fmt.Errorf("failed to decode task snapshot: %w", err)
	}

	entryID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate id: %w", err)
	}

	entry := &domain.AuditEntry{
		ID:        entryID.String(),
		EventID:   env.ID,
		UserID:    ids.UserID,
		TaskID:    ids.ID,
		EventType: eventType,
		EventData: payload.TaskData,
		Timestamp: env.Time,
	}

	if err := s.repo.Apply(ctx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			slog.DebugContext(ctx, "duplicate event, already audited",
				"event_id", env.ID)
			return nil
		}
		return err
	}

	slog.InfoContext(ctx, "audit entry recorded",
		"event_id", env.ID,
		"event_type", eventType,
		"task_id", ids.ID,
		"user_id", ids.UserID)
	return nil
}

// Query returns ledger entries for one user with paging defaults applied.
func (s *Service) Query(ctx context.Context, params domain.ListAuditParams) ([]domain.AuditEntry, error) {
	if params.UserID == "" {
		return nil, domain.ErrForbidden
	}
	if params.Limit <= 0 {
		params.Limit = domain.DefaultAuditLimit
	}
	params.Limit = min(params.Limit, domain.MaxAuditLimit)
	if params.Offset < 0 {
		params.Offset = 0
	}

	entries, err := s.repo.FindEntries(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit ledger: %w", err)
	}
	return entries, nil
}
