package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
)

// fakeRepo keeps the ledger in memory with a processed-event barrier.
type fakeRepo struct {
	entries   []domain.AuditEntry
	processed map[string]bool

	lastParams domain.ListAuditParams
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{processed: make(map[string]bool)}
}

func (f *fakeRepo) Apply(_ context.Context, entry *domain.AuditEntry) error {
	if f.processed[entry.EventID] {
		return domain.ErrDuplicateEvent
	}
	f.processed[entry.EventID] = true
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeRepo) FindEntries(_ context.Context, params domain.ListAuditParams) ([]domain.AuditEntry, error) {
	f.lastParams = params
	return f.entries, nil
}

func lifecycleEnvelope(t *testing.T, eventType string) event.Envelope {
	t.Helper()
	task := &domain.Task{ID: "t1", UserID: "user-1", Title: "Water plants"}
	data, err := json.Marshal(map[string]any{
		"event_type": eventType,
		"task_data":  event.SnapshotTask(task),
	})
	require.NoError(t, err)
	env, err := event.New(event.TypeTaskLifecycle, "taskloop-api", "user-1", data)
	require.NoError(t, err)
	return env
}

func TestHandleRecordsEntry(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	env := lifecycleEnvelope(t, "created")
	require.NoError(t, svc.Handle(context.Background(), env))

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, env.ID, entry.EventID)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "t1", entry.TaskID)
	assert.Equal(t, domain.EventTypeCreated, entry.EventType)
	assert.Equal(t, env.Time, entry.Timestamp, "entry timestamp comes from the envelope, not the wall clock")

	// The raw snapshot is stored verbatim.
	var snap event.TaskSnapshot
	require.NoError(t, json.Unmarshal(entry.EventData, &snap))
	assert.Equal(t, "Water plants", snap.Title)
}

func TestHandleDuplicateIsSuccess(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	env := lifecycleEnvelope(t, "completed")
	require.NoError(t, svc.Handle(context.Background(), env))
	require.NoError(t, svc.Handle(context.Background(), env), "redelivery must be acknowledged")
	assert.Len(t, repo.entries, 1)
}

func TestHandleUnknownEventType(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	err := svc.Handle(context.Background(), lifecycleEnvelope(t, "archived"))
	assert.ErrorIs(t, err, domain.ErrInvalidEventType)
	assert.Empty(t, repo.entries)
}

func TestHandleMalformedPayload(t *testing.T) {
	svc := NewService(newFakeRepo())
	env, err := event.New(event.TypeTaskLifecycle, "x", "user-1", json.RawMessage(`"not an object"`))
	require.NoError(t, err)
	assert.Error(t, svc.Handle(context.Background(), env))
}

func TestQueryPaging(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.Query(context.Background(), domain.ListAuditParams{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAuditLimit, repo.lastParams.Limit)

	_, err = svc.Query(context.Background(), domain.ListAuditParams{UserID: "user-1", Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxAuditLimit, repo.lastParams.Limit)
	assert.Equal(t, 0, repo.lastParams.Offset)
}

func TestQueryRequiresUser(t *testing.T) {
	svc := NewService(newFakeRepo())
	_, err := svc.Query(context.Background(), domain.ListAuditParams{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestQueryPassesFilters(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	taskID := "t1"
	eventType := domain.EventTypeDeleted

	_, err := svc.Query(context.Background(), domain.ListAuditParams{
		UserID:    "user-1",
		TaskID:    &taskID,
		EventType: &eventType,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.lastParams.TaskID)
	assert.Equal(t, "t1", *repo.lastParams.TaskID)
	require.NotNil(t, repo.lastParams.EventType)
	assert.Equal(t, eventType, *repo.lastParams.EventType)
}
