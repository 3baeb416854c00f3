package audit

import (
	"context"

	"github.com/taskloop/taskloop/internal/domain"
)

// Repository is the persistence port of the audit consumer. The consumer
// exclusively owns the audit ledger and its processed-events table.
type Repository interface {
	// Apply inserts the audit entry and its processed-event marker in one
	// transaction. Returns domain.ErrDuplicateEvent when the event id was
	// already applied; callers treat that as success.
	Apply(ctx context.Context, entry *domain.AuditEntry) error

	// FindEntries returns ledger entries matching params, newest first.
	// Always scoped to params.UserID.
	FindEntries(ctx context.Context, params domain.ListAuditParams) ([]domain.AuditEntry, error)
}
