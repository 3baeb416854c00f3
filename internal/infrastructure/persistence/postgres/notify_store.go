package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskloop/taskloop/internal/application/notify"
	"github.com/taskloop/taskloop/internal/domain"
)

// NotifyStore holds the notification consumer's dedup table.
type NotifyStore struct {
	pool *pgxpool.Pool
}

var _ notify.Repository = (*NotifyStore)(nil)

// NewNotifyStore connects, migrates and returns the notifier store.
func NewNotifyStore(ctx context.Context, cfg DBConfig) (*NotifyStore, error) {
	pool, err := connect(ctx, cfg, "migrations/notify", "goose_notify_version")
	if err != nil {
		return nil, err
	}
	return &NotifyStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *NotifyStore) Close() error {
	s.pool.Close()
	return nil
}

// Processed claims the event id and runs effect inside the same transaction,
// so a crash before commit leaves the id unclaimed for redelivery. A replayed
// id yields domain.ErrDuplicateEvent without invoking effect.
func (s *NotifyStore) Processed(ctx context.Context, eventID string, effect func(ctx context.Context) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer finalizeTx(ctx, tx, &err)

	_, err = tx.Exec(ctx,
		`INSERT INTO notify_processed_events (event_id) VALUES ($1)`, eventID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	err = effect(ctx)
	return
}
