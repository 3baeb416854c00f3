package regen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
	"github.com/taskloop/taskloop/internal/taskclient"
)

type fakeRepo struct {
	processed map[string]bool
	failures  []Failure
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{processed: make(map[string]bool)}
}

func (f *fakeRepo) Processed(ctx context.Context, eventID string, effect func(ctx context.Context) error) error {
	if f.processed[eventID] {
		return domain.ErrDuplicateEvent
	}
	if err := effect(ctx); err != nil {
		return err
	}
	f.processed[eventID] = true
	return nil
}

func (f *fakeRepo) RecordFailure(_ context.Context, failure *Failure) error {
	f.failures = append(f.failures, *failure)
	return nil
}

type fakeCreator struct {
	requests []taskclient.CreateTaskRequest
	err      error
}

func (f *fakeCreator) CreateTask(_ context.Context, req taskclient.CreateTaskRequest) (*taskclient.CreatedTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &taskclient.CreatedTask{ID: "successor-1"}, nil
}

func completionEnvelope(t *testing.T, mutate func(*event.TaskSnapshot)) event.Envelope {
	t.Helper()
	rule := "monthly"
	due := time.Date(2026, time.January, 31, 10, 0, 0, 0, time.UTC)
	snap := event.TaskSnapshot{
		ID:             "t1",
		UserID:         "user-1",
		Title:          "Pay rent",
		Completed:      true,
		Tags:           []string{"finance"},
		DueAt:          &due,
		IsRecurring:    true,
		RecurrenceRule: &rule,
	}
	if mutate != nil {
		mutate(&snap)
	}

	data, err := json.Marshal(event.TaskLifecycleData{
		EventType: domain.EventTypeCompleted,
		TaskData:  snap,
	})
	require.NoError(t, err)
	env, err := event.New(event.TypeTaskLifecycle, "taskloop-api", "user-1", data)
	require.NoError(t, err)
	return env
}

func TestHandleCreatesSuccessor(t *testing.T) {
	repo := newFakeRepo()
	creator := &fakeCreator{}
	svc := NewService(repo, creator)

	require.NoError(t, svc.Handle(context.Background(), completionEnvelope(t, nil)))

	require.Len(t, creator.requests, 1)
	req := creator.requests[0]
	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "Pay rent", req.Title)
	assert.True(t, req.IsRecurring)
	require.NotNil(t, req.RecurrenceRule)
	assert.Equal(t, "monthly", *req.RecurrenceRule)
	require.NotNil(t, req.DueAt)
	// Jan 31 + 1 month clamps to the end of February.
	assert.Equal(t, time.Date(2026, time.February, 28, 10, 0, 0, 0, time.UTC), *req.DueAt)
}

func TestHandleSuccessorOfClampedDueDateReturnsToMonthEnd(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(newFakeRepo(), creator)

	// The second link of a Jan 31 monthly chain: a due date already clamped to
	// Feb 29 must produce Mar 31, not Mar 29.
	env := completionEnvelope(t, func(s *event.TaskSnapshot) {
		due := time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC)
		s.DueAt = &due
	})
	require.NoError(t, svc.Handle(context.Background(), env))

	require.Len(t, creator.requests, 1)
	require.NotNil(t, creator.requests[0].DueAt)
	assert.Equal(t, time.Date(2024, time.March, 31, 10, 0, 0, 0, time.UTC), *creator.requests[0].DueAt)
}

func TestHandleIgnoresNonCandidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*event.TaskSnapshot)
	}{
		{name: "not recurring", mutate: func(s *event.TaskSnapshot) { s.IsRecurring = false; s.RecurrenceRule = nil }},
		{name: "un-completion", mutate: func(s *event.TaskSnapshot) { s.Completed = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &fakeCreator{}
			svc := NewService(newFakeRepo(), creator)
			require.NoError(t, svc.Handle(context.Background(), completionEnvelope(t, tt.mutate)))
			assert.Empty(t, creator.requests)
		})
	}
}

func TestHandleIgnoresOtherEventTypes(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(newFakeRepo(), creator)

	data, err := json.Marshal(event.TaskLifecycleData{
		EventType: domain.EventTypeUpdated,
		TaskData:  event.TaskSnapshot{ID: "t1", UserID: "user-1", IsRecurring: true, Completed: true},
	})
	require.NoError(t, err)
	env, err := event.New(event.TypeTaskLifecycle, "x", "user-1", data)
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), env))
	assert.Empty(t, creator.requests)
}

func TestHandleDuplicateCreatesOnce(t *testing.T) {
	repo := newFakeRepo()
	creator := &fakeCreator{}
	svc := NewService(repo, creator)
	env := completionEnvelope(t, nil)

	require.NoError(t, svc.Handle(context.Background(), env))
	require.NoError(t, svc.Handle(context.Background(), env), "redelivery must be acknowledged")
	assert.Len(t, creator.requests, 1)
}

func TestHandleRejectionRecordsFailure(t *testing.T) {
	repo := newFakeRepo()
	creator := &fakeCreator{err: fmt.Errorf("%w: status 400", taskclient.ErrRejected)}
	svc := NewService(repo, creator)

	// Rejection is terminal: acknowledged and recorded, never retried.
	require.NoError(t, svc.Handle(context.Background(), completionEnvelope(t, nil)))
	require.Len(t, repo.failures, 1)
	assert.Equal(t, "t1", repo.failures[0].TaskID)
	assert.Contains(t, repo.failures[0].Reason, "status 400")
}

func TestHandleTransientFailureRedelivers(t *testing.T) {
	repo := newFakeRepo()
	creator := &fakeCreator{err: errors.New("connection refused")}
	svc := NewService(repo, creator)
	env := completionEnvelope(t, nil)

	assert.Error(t, svc.Handle(context.Background(), env))
	assert.Empty(t, repo.failures)
	assert.Empty(t, repo.processed, "transient failure leaves the id unclaimed")

	creator.err = nil
	require.NoError(t, svc.Handle(context.Background(), env))
	assert.Len(t, creator.requests, 1)
}

func TestHandleAnchorsOnEventTimeWithoutDueDate(t *testing.T) {
	creator := &fakeCreator{}
	svc := NewService(newFakeRepo(), creator)

	env := completionEnvelope(t, func(s *event.TaskSnapshot) {
		s.DueAt = nil
		rule := "daily"
		s.RecurrenceRule = &rule
	})
	require.NoError(t, svc.Handle(context.Background(), env))

	require.Len(t, creator.requests, 1)
	require.NotNil(t, creator.requests[0].DueAt)
	assert.Equal(t, env.Time.AddDate(0, 0, 1), *creator.requests[0].DueAt)
}
