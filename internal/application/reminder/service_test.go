package reminder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/application/task"
	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/scheduler"
)

// fakeRepo is an in-memory task.Repository for reminder tests.
type fakeRepo struct {
	tasks     map[string]*domain.Task
	reminders map[string]*domain.Reminder
	jobs      map[string]*scheduler.Job
	outbox    []event.Envelope
	topics    []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:     make(map[string]*domain.Task),
		reminders: make(map[string]*domain.Reminder),
		jobs:      make(map[string]*scheduler.Job),
	}
}

func (f *fakeRepo) Atomic(ctx context.Context, fn func(tx task.TxRepository) error) error {
	return fn(f)
}

func (f *fakeRepo) FindTaskByID(_ context.Context, userID, taskID string) (*domain.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeRepo) FindTaskForUpdate(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return f.FindTaskByID(ctx, userID, taskID)
}

func (f *fakeRepo) FindTasks(context.Context, domain.ListTasksParams) ([]domain.Task, error) {
	return nil, nil
}

func (f *fakeRepo) InsertTask(_ context.Context, t *domain.Task) error {
	c := *t
	f.tasks[t.ID] = &c
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t *domain.Task) error {
	c := *t
	f.tasks[t.ID] = &c
	return nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, _, taskID string) error {
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeRepo) FindRemindersByTask(_ context.Context, userID, taskID string) ([]domain.Reminder, error) {
	if t, ok := f.tasks[taskID]; !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	var out []domain.Reminder
	for _, r := range f.reminders {
		if r.TaskID == taskID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindReminderByID(_ context.Context, userID, taskID, reminderID string) (*domain.Reminder, error) {
	r, ok := f.reminders[reminderID]
	if !ok || r.TaskID != taskID || r.UserID != userID {
		return nil, domain.ErrReminderNotFound
	}
	c := *r
	return &c, nil
}

func (f *fakeRepo) InsertReminder(_ context.Context, r *domain.Reminder) error {
	c := *r
	f.reminders[r.ID] = &c
	return nil
}

func (f *fakeRepo) DeleteReminder(_ context.Context, reminderID string) error {
	delete(f.reminders, reminderID)
	return nil
}

func (f *fakeRepo) InsertOutbox(_ context.Context, topic string, env event.Envelope) error {
	f.outbox = append(f.outbox, env)
	f.topics = append(f.topics, topic)
	return nil
}

func (f *fakeRepo) CountPendingOutbox(context.Context) (int, error) {
	return len(f.outbox), nil
}

func (f *fakeRepo) InsertScheduledJob(_ context.Context, job *scheduler.Job) error {
	c := *job
	f.jobs[job.ID] = &c
	return nil
}

func (f *fakeRepo) CancelScheduledJob(_ context.Context, handle string) error {
	delete(f.jobs, handle)
	return nil
}

func seedTask(f *fakeRepo, userID, taskID string) {
	f.tasks[taskID] = &domain.Task{
		ID:     taskID,
		UserID: userID,
		Title:  "Water plants",
	}
}

func TestCreateReminder(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{CallbackURL: "http://api/internal/jobs/reminder-trigger"})
	remindAt := time.Now().UTC().Add(time.Hour)

	created, err := svc.CreateReminder(context.Background(), "user-1", "t1", remindAt)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "t1", created.TaskID)
	assert.NotEmpty(t, created.SchedulerHandle)

	// The scheduler job commits alongside the row, carrying the callback.
	job, ok := repo.jobs[created.SchedulerHandle]
	require.True(t, ok)
	assert.Equal(t, "http://api/internal/jobs/reminder-trigger", job.URL)
	assert.Equal(t, remindAt.UTC(), job.FireAt)
	assert.Equal(t, scheduler.JobStatusPending, job.Status)

	var payload TriggerPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, created.ID, payload.ReminderID)
	assert.Equal(t, "t1", payload.TaskID)
	assert.Equal(t, "user-1", payload.UserID)
}

func TestCreateReminderInPast(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{})

	_, err := svc.CreateReminder(context.Background(), "user-1", "t1", time.Now().UTC().Add(-time.Minute))
	assert.ErrorIs(t, err, domain.ErrRemindAtInPast)
	assert.Empty(t, repo.jobs)
}

func TestCreateReminderTaskNotOwned(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{})

	_, err := svc.CreateReminder(context.Background(), "user-2", "t1", time.Now().UTC().Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.Empty(t, repo.jobs, "no scheduler job for a failed create")
	assert.Empty(t, repo.reminders)
}

func TestDeleteReminder(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{})

	created, err := svc.CreateReminder(context.Background(), "user-1", "t1", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReminder(context.Background(), "user-1", "t1", created.ID))
	assert.Empty(t, repo.reminders)
	assert.Empty(t, repo.jobs, "handle cancelled with the row")

	err = svc.DeleteReminder(context.Background(), "user-1", "t1", created.ID)
	assert.ErrorIs(t, err, domain.ErrReminderNotFound)
}

func TestHandleTrigger(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{})

	created, err := svc.CreateReminder(context.Background(), "user-1", "t1", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	payload := TriggerPayload{ReminderID: created.ID, TaskID: "t1", UserID: "user-1"}
	require.NoError(t, svc.HandleTrigger(context.Background(), payload))

	// Fired reminder is consumed and its event staged on the reminders topic.
	assert.Empty(t, repo.reminders)
	require.Len(t, repo.outbox, 1)
	assert.Equal(t, event.TopicReminders, repo.topics[0])
	assert.Equal(t, event.TypeReminderTrigger, repo.outbox[0].Type)
	assert.Equal(t, "user-1", repo.outbox[0].PartitionKey)

	var data event.ReminderTriggerData
	require.NoError(t, json.Unmarshal(repo.outbox[0].Data, &data))
	assert.Equal(t, created.ID, data.ReminderID)
	assert.Equal(t, "Water plants", data.Title)
}

func TestHandleTriggerSilentSuccess(t *testing.T) {
	repo := newFakeRepo()
	seedTask(repo, "user-1", "t1")
	svc := NewService(repo, Config{})

	// Reminder already gone: at-least-once redelivery lands here.
	err := svc.HandleTrigger(context.Background(), TriggerPayload{
		ReminderID: "gone", TaskID: "t1", UserID: "user-1",
	})
	assert.NoError(t, err)
	assert.Empty(t, repo.outbox)

	// Task already gone too.
	err = svc.HandleTrigger(context.Background(), TriggerPayload{
		ReminderID: "gone", TaskID: "missing", UserID: "user-1",
	})
	assert.NoError(t, err)
	assert.Empty(t, repo.outbox)
}
