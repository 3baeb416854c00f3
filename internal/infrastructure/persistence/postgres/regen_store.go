package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskloop/taskloop/internal/application/regen"
	"github.com/taskloop/taskloop/internal/domain"
)

// RegenStore holds the regenerator's dedup table and failure ledger.
type RegenStore struct {
	pool *pgxpool.Pool
}

var _ regen.Repository = (*RegenStore)(nil)

// NewRegenStore connects, migrates and returns the regenerator store.
func NewRegenStore(ctx context.Context, cfg DBConfig) (*RegenStore, error) {
	pool, err := connect(ctx, cfg, "migrations/regen", "goose_regen_version")
	if err != nil {
		return nil, err
	}
	return &RegenStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *RegenStore) Close() error {
	s.pool.Close()
	return nil
}

// Processed claims the event id and runs effect in the same transaction.
// A replayed id yields domain.ErrDuplicateEvent without invoking effect.
func (s *RegenStore) Processed(ctx context.Context, eventID string, effect func(ctx context.Context) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer finalizeTx(ctx, tx, &err)

	_, err = tx.Exec(ctx,
		`INSERT INTO regen_processed_events (event_id) VALUES ($1)`, eventID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	err = effect(ctx)
	return
}

// RecordFailure appends to the regeneration failure ledger.
func (s *RegenStore) RecordFailure(ctx context.Context, f *regen.Failure) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO regen_failures (id, event_id, task_id, user_id, reason, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.EventID, f.TaskID, f.UserID, f.Reason, f.FailedAt)
	if err != nil {
		return fmt.Errorf("failed to record regeneration failure: %w", err)
	}
	return nil
}
