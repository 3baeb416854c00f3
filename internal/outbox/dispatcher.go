// Package outbox bridges commit+publish atomicity: mutation transactions
// stage envelopes into the outbox table, and the dispatcher drains it to the
// bus. Delivery is at-least-once; consumer dedup absorbs the duplicates.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/taskloop/taskloop/internal/bus"
	"github.com/taskloop/taskloop/internal/event"
)

// Statuses of an outbox row.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
	// StatusStuck marks rows past the retry cap. They stay in the table for
	// operator action and are excluded from dispatch.
	StatusStuck = "stuck"
)

// Row is one staged envelope.
type Row struct {
	ID           int64
	Topic        string
	EventID      string
	PartitionKey string
	Payload      []byte // Encoded envelope.
	Status       string
	Attempts     int
	CreatedAt    time.Time
}

// Repository is the dispatcher's persistence port.
type Repository interface {
	// FindPendingOutbox returns up to limit pending rows, oldest first,
	// excluding rows at or past maxAttempts.
	FindPendingOutbox(ctx context.Context, limit, maxAttempts int) ([]Row, error)

	// MarkOutboxPublished flips one row to published.
	MarkOutboxPublished(ctx context.Context, id int64) error

	// RecordOutboxFailure increments the row's attempt counter and returns
	// the new count.
	RecordOutboxFailure(ctx context.Context, id int64) (int, error)

	// MarkOutboxStuck parks a row past the retry cap.
	MarkOutboxStuck(ctx context.Context, id int64) error
}

// Config holds dispatcher configuration. Zero values get defaults.
type Config struct {
	PollInterval time.Duration // How often to drain (default 500ms).
	BatchSize    int           // Rows per cycle (default 64).
	MaxAttempts  int           // Cycles before a row is parked (default 10).
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
}

// Dispatcher drains the outbox to the bus.
type Dispatcher struct {
	repo      Repository
	publisher bus.Publisher
	cfg       Config
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(repo Repository, publisher bus.Publisher, cfg Config) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{repo: repo, publisher: publisher, cfg: cfg}
}

// Run drains the outbox on a ticker until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "outbox dispatcher started",
		"poll_interval", d.cfg.PollInterval,
		"batch_size", d.cfg.BatchSize)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "outbox dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "outbox dispatch cycle failed", "error", err)
			}
		}
	}
}

// DispatchOnce publishes one batch of pending rows.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	rows, err := d.repo.FindPendingOutbox(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return fmt.Errorf("failed to load pending outbox rows: %w", err)
	}

	for _, row := range rows {
		if err := d.publishRow(ctx, row); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			attempts, recErr := d.repo.RecordOutboxFailure(ctx, row.ID)
			if recErr != nil {
				return fmt.Errorf("failed to record outbox failure: %w", recErr)
			}

			slog.WarnContext(ctx, "outbox publish failed",
				"outbox_id", row.ID,
				"event_id", row.EventID,
				"topic", row.Topic,
				"attempts", attempts,
				"error", err)

			if attempts >= d.cfg.MaxAttempts {
				if err := d.repo.MarkOutboxStuck(ctx, row.ID); err != nil {
					return fmt.Errorf("failed to park outbox row: %w", err)
				}
				slog.ErrorContext(ctx, "outbox row exceeded retry cap, parked for operator action",
					"outbox_id", row.ID,
					"event_id", row.EventID,
					"topic", row.Topic)
			}
			continue
		}

		if err := d.repo.MarkOutboxPublished(ctx, row.ID); err != nil {
			// Already on the bus; the row will be republished and consumers
			// will dedup on the event id.
			return fmt.Errorf("failed to mark outbox row published: %w", err)
		}
	}

	return nil
}

// publishRow decodes and publishes one row with short in-cycle retries.
func (d *Dispatcher) publishRow(ctx context.Context, row Row) error {
	env, err := event.Decode(row.Payload)
	if err != nil {
		return fmt.Errorf("undecodable outbox payload: %w", err)
	}
	env.PartitionKey = row.PartitionKey

	return retry.Do(
		func() error {
			return d.publisher.Publish(ctx, row.Topic, env)
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
