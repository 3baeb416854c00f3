package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskloop/taskloop/internal/application/audit"
	"github.com/taskloop/taskloop/internal/domain"
)

// AuditStore holds the audit consumer's trail and dedup tables.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ audit.Repository = (*AuditStore)(nil)

// NewAuditStore connects, migrates and returns the audit store.
func NewAuditStore(ctx context.Context, cfg DBConfig) (*AuditStore, error) {
	pool, err := connect(ctx, cfg, "migrations/audit", "goose_audit_version")
	if err != nil {
		return nil, err
	}
	return &AuditStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *AuditStore) Close() error {
	s.pool.Close()
	return nil
}

// Apply records the entry and its dedup marker in one transaction. A replayed
// event id yields domain.ErrDuplicateEvent with nothing written.
func (s *AuditStore) Apply(ctx context.Context, entry *domain.AuditEntry) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbErr(err, "failed to begin transaction")
	}
	defer finalizeTx(ctx, tx, &err)

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_processed_events (event_id) VALUES ($1)`, entry.EventID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return dbErr(err, "failed to mark event processed")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (id, event_id, user_id, task_id, event_type, event_data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.EventID, entry.UserID, entry.TaskID, entry.EventType, entry.EventData, entry.Timestamp)
	if err != nil {
		return dbErr(err, "failed to insert audit entry")
	}
	return nil
}

// FindEntries returns a user's trail newest first, optionally narrowed to one
// task, capped by limit.
func (s *AuditStore) FindEntries(ctx context.Context, params domain.ListAuditParams) ([]domain.AuditEntry, error) {
	conds := []string{"user_id = $1"}
	args := []any{params.UserID}
	if params.TaskID != nil {
		args = append(args, *params.TaskID)
		conds = append(conds, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if params.EventType != nil {
		args = append(args, string(*params.EventType))
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, event_id, user_id, task_id, event_type, event_data, timestamp
		FROM audit_entries
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d`,
		strings.Join(conds, " AND "), len(args)-1, len(args)), args...)
	if err != nil {
		return nil, dbErr(err, "failed to list audit entries")
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserID, &e.TaskID, &e.EventType, &e.EventData, &e.Timestamp); err != nil {
			return nil, dbErr(err, "failed to scan audit entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
