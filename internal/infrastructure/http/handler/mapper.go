package handler

import (
	"encoding/json"
	"time"

	"github.com/taskloop/taskloop/internal/domain"
	"github.com/taskloop/taskloop/internal/event"
)

// TaskResponse is the HTTP representation of a task. It is intentionally the
// same shape as the lifecycle event snapshot so API readers and bus consumers
// see one contract.
type TaskResponse = event.TaskSnapshot

// ReminderResponse is the HTTP representation of a reminder.
type ReminderResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	RemindAt  time.Time `json:"remind_at"`
	CreatedAt time.Time `json:"created_at"`
}

func mapTask(t *domain.Task) TaskResponse {
	return event.SnapshotTask(t)
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, len(tasks))
	for i := range tasks {
		out[i] = mapTask(&tasks[i])
	}
	return out
}

func mapReminder(r *domain.Reminder) ReminderResponse {
	return ReminderResponse{
		ID:        r.ID,
		TaskID:    r.TaskID,
		UserID:    r.UserID,
		RemindAt:  r.RemindAt,
		CreatedAt: r.CreatedAt,
	}
}

func mapReminders(reminders []domain.Reminder) []ReminderResponse {
	out := make([]ReminderResponse, len(reminders))
	for i := range reminders {
		out[i] = mapReminder(&reminders[i])
	}
	return out
}

// optional wraps a JSON field whose absence, null and value states all carry
// meaning in a partial update.
type optional = json.RawMessage

func isNull(raw optional) bool {
	return string(raw) == "null"
}
