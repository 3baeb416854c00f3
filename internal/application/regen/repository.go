package regen

import (
	"context"
	"time"
)

// Failure records a completion event whose successor could not be created
// because the Task API rejected it (4xx). These are acknowledged, not
// retried; the ledger exists for operator review.
type Failure struct {
	ID       string
	EventID  string
	TaskID   string
	UserID   string
	Reason   string
	FailedAt time.Time
}

// Repository is the persistence port of the recurring regenerator.
type Repository interface {
	// Processed runs effect with the event id held in the processed-events
	// table, all inside one transaction. Returns domain.ErrDuplicateEvent if
	// the id was already recorded; the effect is not invoked in that case.
	Processed(ctx context.Context, eventID string, effect func(ctx context.Context) error) error

	// RecordFailure appends to the failure ledger.
	RecordFailure(ctx context.Context, failure *Failure) error
}
