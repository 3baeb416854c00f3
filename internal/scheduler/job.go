// Package scheduler provides the embedded durable one-shot timer used by the
// Task API: a scheduled_jobs table written in the same transactions as the
// reminder rows, and a worker loop that claims due rows and POSTs their
// callback.
//
// The job id doubles as the scheduler handle: cancelling a handle deletes the
// row, and cancellation after the job fired is a no-op.
package scheduler

import "time"

// Job statuses.
const (
	JobStatusPending = "pending"
	JobStatusFired   = "fired"
)

// Job is one durable one-shot timer row.
type Job struct {
	ID      string // Opaque handle returned to the caller.
	FireAt  time.Time
	URL     string // Callback URL to POST at fire time.
	Payload []byte // JSON body of the callback POST.
	Status  string

	// AvailableAt gates claiming: a claimed job becomes re-claimable after
	// this time if the worker that took it died mid-delivery.
	AvailableAt time.Time
	Attempts    int

	CreatedAt time.Time
	FiredAt   *time.Time
}
