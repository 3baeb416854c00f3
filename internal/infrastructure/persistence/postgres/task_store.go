package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskloop/taskloop/internal/application/task"
	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/outbox"
	"github.com/taskloop/taskloop/internal/scheduler"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// methods run inside and outside transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TaskStore is the Task API's store: tasks, reminders, outbox and
// scheduled_jobs. It implements the task repository plus the outbox
// dispatcher and scheduler worker ports, so one pool serves the whole
// process.
type TaskStore struct {
	pool *pgxpool.Pool
	db   querier
}

// Compile-time verification of the implemented ports.
var (
	_ task.Repository      = (*TaskStore)(nil)
	_ task.TxRepository    = (*TaskStore)(nil)
	_ outbox.Repository    = (*TaskStore)(nil)
	_ scheduler.Repository = (*TaskStore)(nil)
)

// NewTaskStore connects, migrates and returns the Task API store.
func NewTaskStore(ctx context.Context, cfg DBConfig) (*TaskStore, error) {
	pool, err := connect(ctx, cfg, "migrations/taskapi", "goose_taskapi_version")
	if err != nil {
		return nil, err
	}
	return &TaskStore{pool: pool, db: pool}, nil
}

// Close closes the connection pool.
func (s *TaskStore) Close() error {
	s.pool.Close()
	return nil
}

// Atomic executes fn within one transaction with panic recovery.
func (s *TaskStore) Atomic(ctx context.Context, fn func(tx task.TxRepository) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbErr(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				fmt.Printf("rollback after panic failed: %v\n", rbErr)
			}
			panic(p)
		}
		finalizeTx(ctx, tx, &err)
	}()

	txStore := &TaskStore{pool: s.pool, db: tx}
	err = fn(txStore)
	return
}

const taskColumns = "id, user_id, title, description, completed, priority, tags, due_at, is_recurring, recurrence_rule, created_at, updated_at, version"

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var priority, rule *string
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed,
		&priority, &t.Tags, &t.DueAt, &t.IsRecurring, &rule,
		&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if err != nil {
		return nil, err
	}
	if priority != nil {
		p := domain.TaskPriority(*priority)
		t.Priority = &p
	}
	if rule != nil {
		r := domain.RecurrenceRule(*rule)
		t.RecurrenceRule = &r
	}
	return &t, nil
}

func priorityArg(p *domain.TaskPriority) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func ruleArg(r *domain.RecurrenceRule) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

// InsertTask inserts a new task row.
func (s *TaskStore) InsertTask(ctx context.Context, t *domain.Task) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.UserID, t.Title, t.Description, t.Completed,
		priorityArg(t.Priority), t.Tags, t.DueAt, t.IsRecurring, ruleArg(t.RecurrenceRule),
		t.CreatedAt, t.UpdatedAt, t.Version)
	if err != nil {
		return dbErr(err, "failed to insert task")
	}
	return nil
}

// FindTaskByID returns the task scoped to userID; cross-user lookups and
// malformed ids surface as not-found.
func (s *TaskStore) FindTaskByID(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, dbErr(err, "failed to find task")
	}
	return t, nil
}

// FindTaskForUpdate loads the task with a row lock.
func (s *TaskStore) FindTaskForUpdate(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		taskID, userID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, dbErr(err, "failed to lock task")
	}
	return t, nil
}

// UpdateTask persists the task, bumping the stored version. A stale version
// yields domain.ErrVersionConflict; an absent row yields ErrTaskNotFound.
func (s *TaskStore) UpdateTask(ctx context.Context, t *domain.Task) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks
		SET title = $1, description = $2, completed = $3, priority = $4,
		    tags = $5, due_at = $6, is_recurring = $7, recurrence_rule = $8,
		    updated_at = $9, version = version + 1
		WHERE id = $10 AND user_id = $11 AND version = $12`,
		t.Title, t.Description, t.Completed, priorityArg(t.Priority),
		t.Tags, t.DueAt, t.IsRecurring, ruleArg(t.RecurrenceRule),
		t.UpdatedAt, t.ID, t.UserID, t.Version)
	if err != nil {
		return dbErr(err, "failed to update task")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1 AND user_id = $2)`,
			t.ID, t.UserID).Scan(&exists); err != nil {
			return dbErr(err, "failed to check task existence")
		}
		if exists {
			return domain.ErrVersionConflict
		}
		return domain.ErrTaskNotFound
	}
	t.Version++
	return nil
}

// DeleteTask removes the task row.
func (s *TaskStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return dbErr(err, "failed to delete task")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// FindTasks applies the full filter, search and sort server-side.
func (s *TaskStore) FindTasks(ctx context.Context, params domain.ListTasksParams) ([]domain.Task, error) {
	var (
		conds = []string{"user_id = $1"}
		args  = []any{params.UserID}
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.Priority != nil {
		conds = append(conds, "priority = "+arg(string(*params.Priority)))
	}
	if len(params.Tags) > 0 {
		// AND semantics: the task's tag set must contain every queried tag.
		conds = append(conds, "tags @> "+arg(params.Tags))
	}
	switch params.Status {
	case domain.StatusFilterCompleted:
		conds = append(conds, "completed")
	case domain.StatusFilterPending:
		conds = append(conds, "NOT completed")
	}
	if params.DueBefore != nil {
		conds = append(conds, "due_at < "+arg(*params.DueBefore))
	}
	if params.DueAfter != nil {
		conds = append(conds, "due_at > "+arg(*params.DueAfter))
	}
	if params.Search != "" {
		pattern := "%" + escapeLike(params.Search) + "%"
		p := arg(pattern)
		conds = append(conds, fmt.Sprintf(
			"(title ILIKE %s OR description ILIKE %s OR EXISTS (SELECT 1 FROM unnest(tags) tag WHERE tag ILIKE %s))",
			p, p, p))
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY %s`,
		taskColumns, strings.Join(conds, " AND "), orderClause(params.SortBy, params.SortOrder))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err, "failed to list tasks")
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, dbErr(err, "failed to scan task")
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "failed to iterate tasks")
	}
	return tasks, nil
}

// orderClause maps validated sort params to SQL. due_at sorts null-last and
// priority ranks none-last regardless of direction; created_at descending is
// always the tiebreak for stable ordering.
func orderClause(sortBy, sortOrder string) string {
	dir := "ASC"
	if sortOrder == "desc" || (sortOrder == "" && (sortBy == "" || sortBy == domain.SortByCreatedAt)) {
		dir = "DESC"
	}

	switch sortBy {
	case domain.SortByDueAt:
		return fmt.Sprintf("due_at %s NULLS LAST, created_at DESC", dir)
	case domain.SortByPriority:
		rank := "CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END"
		return fmt.Sprintf("(priority IS NULL) ASC, %s %s, created_at DESC", rank, dir)
	case domain.SortByTitle:
		return fmt.Sprintf("lower(title) %s, created_at DESC", dir)
	default:
		return fmt.Sprintf("created_at %s", dir)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const reminderColumns = "id, task_id, user_id, remind_at, created_at, scheduler_handle"

// FindRemindersByTask returns the task's reminders iff the task is owned.
func (s *TaskStore) FindRemindersByTask(ctx context.Context, userID, taskID string) ([]domain.Reminder, error) {
	// Ownership gate first: an unowned task must be indistinguishable from an
	// absent one.
	if _, err := s.FindTaskByID(ctx, userID, taskID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE task_id = $1 AND user_id = $2
		ORDER BY remind_at`,
		taskID, userID)
	if err != nil {
		return nil, dbErr(err, "failed to list reminders")
	}
	defer rows.Close()

	reminders := []domain.Reminder{}
	for rows.Next() {
		var r domain.Reminder
		if err := rows.Scan(&r.ID, &r.TaskID, &r.UserID, &r.RemindAt, &r.CreatedAt, &r.SchedulerHandle); err != nil {
			return nil, dbErr(err, "failed to scan reminder")
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "failed to iterate reminders")
	}
	return reminders, nil
}

// FindReminderByID returns the reminder scoped to user and task.
func (s *TaskStore) FindReminderByID(ctx context.Context, userID, taskID, reminderID string) (*domain.Reminder, error) {
	var r domain.Reminder
	err := s.db.QueryRow(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE id = $1 AND task_id = $2 AND user_id = $3`,
		reminderID, taskID, userID).
		Scan(&r.ID, &r.TaskID, &r.UserID, &r.RemindAt, &r.CreatedAt, &r.SchedulerHandle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, dbErr(err, "failed to find reminder")
	}
	return &r, nil
}

// InsertReminder inserts a reminder row.
func (s *TaskStore) InsertReminder(ctx context.Context, r *domain.Reminder) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.TaskID, r.UserID, r.RemindAt, r.CreatedAt, r.SchedulerHandle)
	if err != nil {
		return dbErr(err, "failed to insert reminder")
	}
	return nil
}

// DeleteReminder removes a reminder row by id.
func (s *TaskStore) DeleteReminder(ctx context.Context, reminderID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, reminderID); err != nil {
		return dbErr(err, "failed to delete reminder")
	}
	return nil
}

// InsertOutbox stages an envelope for the dispatcher.
func (s *TaskStore) InsertOutbox(ctx context.Context, topic string, env event.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO outbox (topic, event_id, partition_key, payload)
		VALUES ($1, $2, $3, $4)`,
		topic, env.ID, env.PartitionKey, payload)
	if err != nil {
		return dbErr(err, "failed to insert outbox row")
	}
	return nil
}

// CountPendingOutbox returns the unpublished backlog size.
func (s *TaskStore) CountPendingOutbox(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM outbox WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, dbErr(err, "failed to count outbox backlog")
	}
	return count, nil
}

// FindPendingOutbox returns pending rows oldest first, excluding rows at or
// past the retry cap.
func (s *TaskStore) FindPendingOutbox(ctx context.Context, limit, maxAttempts int) ([]outbox.Row, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, topic, event_id, partition_key, payload, status, attempts, created_at
		FROM outbox
		WHERE status = 'pending' AND attempts < $1
		ORDER BY id
		LIMIT $2`,
		maxAttempts, limit)
	if err != nil {
		return nil, dbErr(err, "failed to load outbox rows")
	}
	defer rows.Close()

	var out []outbox.Row
	for rows.Next() {
		var r outbox.Row
		if err := rows.Scan(&r.ID, &r.Topic, &r.EventID, &r.PartitionKey, &r.Payload, &r.Status, &r.Attempts, &r.CreatedAt); err != nil {
			return nil, dbErr(err, "failed to scan outbox row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkOutboxPublished flips one row to published.
func (s *TaskStore) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE outbox SET status = 'published' WHERE id = $1`, id)
	if err != nil {
		return dbErr(err, "failed to mark outbox row published")
	}
	return nil
}

// RecordOutboxFailure increments the attempt counter.
func (s *TaskStore) RecordOutboxFailure(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.QueryRow(ctx,
		`UPDATE outbox SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id).
		Scan(&attempts)
	if err != nil {
		return 0, dbErr(err, "failed to record outbox failure")
	}
	return attempts, nil
}

// MarkOutboxStuck parks a row for operator action.
func (s *TaskStore) MarkOutboxStuck(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE outbox SET status = 'stuck' WHERE id = $1`, id)
	if err != nil {
		return dbErr(err, "failed to park outbox row")
	}
	return nil
}

// InsertScheduledJob persists an embedded-scheduler timer.
func (s *TaskStore) InsertScheduledJob(ctx context.Context, job *scheduler.Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_jobs (id, fire_at, url, payload, status, available_at, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.FireAt, job.URL, job.Payload, job.Status, job.AvailableAt, job.Attempts, job.CreatedAt)
	if err != nil {
		return dbErr(err, "failed to insert scheduled job")
	}
	return nil
}

// CancelScheduledJob deletes a pending timer; fired or absent handles no-op.
func (s *TaskStore) CancelScheduledJob(ctx context.Context, handle string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM scheduled_jobs WHERE id = $1 AND status = 'pending'`, handle)
	if err != nil && !isInvalidUUID(err) {
		return dbErr(err, "failed to cancel scheduled job")
	}
	return nil
}

// ClaimDueJobs atomically claims due pending jobs with SKIP LOCKED so
// concurrent workers never double-claim.
func (s *TaskStore) ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]scheduler.Job, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE scheduled_jobs
		SET available_at = $1, attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM scheduled_jobs
			WHERE status = 'pending' AND available_at <= $2
			ORDER BY fire_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, fire_at, url, payload, status, available_at, attempts, created_at, fired_at`,
		now.Add(lease), now, limit)
	if err != nil {
		return nil, dbErr(err, "failed to claim due jobs")
	}
	defer rows.Close()

	var jobs []scheduler.Job
	for rows.Next() {
		var j scheduler.Job
		if err := rows.Scan(&j.ID, &j.FireAt, &j.URL, &j.Payload, &j.Status, &j.AvailableAt, &j.Attempts, &j.CreatedAt, &j.FiredAt); err != nil {
			return nil, dbErr(err, "failed to scan scheduled job")
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkJobFired terminally marks a delivered job.
func (s *TaskStore) MarkJobFired(ctx context.Context, jobID string, firedAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE scheduled_jobs SET status = 'fired', fired_at = $1 WHERE id = $2`,
		firedAt, jobID)
	if err != nil {
		return dbErr(err, "failed to mark job fired")
	}
	return nil
}

// MarkJobFailed parks a job past the delivery cap.
func (s *TaskStore) MarkJobFailed(ctx context.Context, jobID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE scheduled_jobs SET status = 'failed' WHERE id = $1`, jobID)
	if err != nil {
		return dbErr(err, "failed to park job")
	}
	return nil
}

// isInvalidUUID reports whether the error is Postgres 22P02 (invalid text
// representation), raised when a non-UUID id string hits a UUID column.
// Treated as not-found: a malformed id can't name anything.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// isUniqueViolation reports whether the error is Postgres 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
