package notify

import "context"

// Repository is the persistence port of the notification consumer: just the
// processed-events idempotency barrier.
type Repository interface {
	// Processed runs effect with the event id held in the processed-events
	// table, all inside one transaction: the dedup row and the effect commit
	// together. Returns domain.ErrDuplicateEvent if the id was already
	// recorded; the effect is not invoked in that case.
	Processed(ctx context.Context, eventID string, effect func(ctx context.Context) error) error
}
