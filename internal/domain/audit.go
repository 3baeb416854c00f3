package domain

import "time"

// EventType classifies a task lifecycle transition.
type EventType string

const (
	EventTypeCreated   EventType = "created"
	EventTypeUpdated   EventType = "updated"
	EventTypeCompleted EventType = "completed"
	EventTypeDeleted   EventType = "deleted"
)

// NewEventType validates and creates an EventType.
func NewEventType(s string) (EventType, error) {
	t := EventType(s)
	switch t {
	case EventTypeCreated, EventTypeUpdated, EventTypeCompleted, EventTypeDeleted:
		return t, nil
	default:
		return "", ErrInvalidEventType
	}
}

// AuditEntry is an append-only record of one task lifecycle event, owned by
// the audit consumer. EventData is the opaque post-mutation task snapshot as
// carried on the bus; it is never interpreted by the ledger.
type AuditEntry struct {
	ID        string
	EventID   string
	UserID    string
	TaskID    string
	EventType EventType
	EventData []byte // JSON snapshot, stored verbatim
	Timestamp time.Time
}

// ListAuditParams filters the audit ledger. UserID is mandatory; queries are
// never allowed to cross users.
type ListAuditParams struct {
	UserID    string
	TaskID    *string
	EventType *EventType
	Limit     int // capped at MaxAuditLimit, defaults to DefaultAuditLimit
	Offset    int
}

// Audit query paging bounds.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// ProcessedEvent marks an event id as applied by one consumer. Each consumer
// owns its own table; the unique constraint on EventID is the idempotency
// barrier for at-least-once delivery.
type ProcessedEvent struct {
	EventID     string
	ProcessedAt time.Time
}
