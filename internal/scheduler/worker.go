package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
)

// JobStatusFailed marks a job past the delivery cap; it stays in the table
// for operator action.
const JobStatusFailed = "failed"

// Repository is the worker's persistence port.
type Repository interface {
	// ClaimDueJobs atomically claims up to limit due pending jobs: each
	// claimed row has its availability pushed out by lease so a crashed
	// worker's jobs become re-claimable. Safe for concurrent workers.
	ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Job, error)

	// MarkJobFired terminally marks a delivered job.
	MarkJobFired(ctx context.Context, jobID string, firedAt time.Time) error

	// MarkJobFailed parks a job past the delivery cap.
	MarkJobFailed(ctx context.Context, jobID string) error
}

// Config holds worker configuration. Zero values get defaults.
type Config struct {
	PollInterval time.Duration // How often to look for due jobs (default 1s).
	Lease        time.Duration // Claim duration before reclaim (default 1m).
	BatchSize    int           // Jobs per cycle (default 32).
	MaxAttempts  int           // Delivery attempts before parking (default 10).
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
}

// Worker claims due jobs and POSTs their callbacks. Delivery is
// at-least-once: a crash after the POST but before MarkJobFired redelivers,
// and the callback endpoint absorbs the duplicate.
type Worker struct {
	repo       Repository
	httpClient *http.Client
	cfg        Config
}

// NewWorker creates a scheduler worker.
func NewWorker(repo Repository, cfg Config) *Worker {
	cfg.applyDefaults()
	return &Worker{
		repo: repo,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cfg: cfg,
	}
}

// Run polls for due jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "scheduler worker started",
		"poll_interval", w.cfg.PollInterval)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "scheduler worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "scheduler cycle failed", "error", err)
			}
		}
	}
}

// ProcessOnce claims and delivers one batch of due jobs.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	now := time.Now().UTC()
	jobs, err := w.repo.ClaimDueJobs(ctx, now, w.cfg.Lease, w.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due jobs: %w", err)
	}

	for _, job := range jobs {
		if err := w.deliver(ctx, job); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			slog.WarnContext(ctx, "scheduler callback delivery failed",
				"job_id", job.ID,
				"attempts", job.Attempts,
				"error", err)

			if job.Attempts >= w.cfg.MaxAttempts {
				if err := w.repo.MarkJobFailed(ctx, job.ID); err != nil {
					return fmt.Errorf("failed to park job: %w", err)
				}
				slog.ErrorContext(ctx, "scheduler job exceeded delivery cap, parked for operator action",
					"job_id", job.ID)
			}
			// Otherwise the lease expiry makes the job claimable again.
			continue
		}

		if err := w.repo.MarkJobFired(ctx, job.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to mark job fired: %w", err)
		}

		slog.InfoContext(ctx, "scheduler job fired",
			"job_id", job.ID,
			"fire_at", job.FireAt,
			"drift", time.Since(job.FireAt))
	}

	return nil
}

// deliver POSTs the callback with short in-cycle retries.
func (w *Worker) deliver(ctx context.Context, job Job) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(job.Payload))
			if err != nil {
				return fmt.Errorf("failed to build callback request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := w.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("callback unreachable: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 300 {
				return fmt.Errorf("callback returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
