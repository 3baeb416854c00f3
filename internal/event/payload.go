package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskloop/taskloop/internal/domain"
)

// TaskSnapshot is the post-mutation task state carried in lifecycle events.
// Field names are part of the wire contract; consumers must ignore fields
// they do not recognize.
type TaskSnapshot struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Completed      bool       `json:"completed"`
	Priority       *string    `json:"priority,omitempty"`
	Tags           []string   `json:"tags"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	IsRecurring    bool       `json:"is_recurring"`
	RecurrenceRule *string    `json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SnapshotTask converts a domain task into its wire snapshot.
func SnapshotTask(t *domain.Task) TaskSnapshot {
	snap := TaskSnapshot{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Tags:        t.Tags,
		DueAt:       t.DueAt,
		IsRecurring: t.IsRecurring,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if snap.Tags == nil {
		snap.Tags = []string{}
	}
	if t.Priority != nil {
		p := string(*t.Priority)
		snap.Priority = &p
	}
	if t.RecurrenceRule != nil {
		r := string(*t.RecurrenceRule)
		snap.RecurrenceRule = &r
	}
	return snap
}

// TaskLifecycleData is the payload of TypeTaskLifecycle events on task-events.
type TaskLifecycleData struct {
	EventType domain.EventType `json:"event_type"`
	TaskData  TaskSnapshot     `json:"task_data"`
}

// ReminderTriggerData is the payload of TypeReminderTrigger events on
// reminders. Timestamp is the wall clock at fire handling time.
type ReminderTriggerData struct {
	ReminderID string     `json:"reminder_id"`
	TaskID     string     `json:"task_id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	RemindAt   time.Time  `json:"remind_at"`
	Timestamp  time.Time  `json:"timestamp"`
}

// TaskUpdateData is the minimal payload on the reserved task-updates topic.
type TaskUpdateData struct {
	TaskID     string           `json:"task_id"`
	UserID     string           `json:"user_id"`
	ChangeType domain.EventType `json:"change_type"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewTaskLifecycle builds a task-events envelope for one lifecycle transition.
func NewTaskLifecycle(source string, eventType domain.EventType, task *domain.Task) (Envelope, error) {
	data, err := json.Marshal(TaskLifecycleData{
		EventType: eventType,
		TaskData:  SnapshotTask(task),
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode lifecycle payload: %w", err)
	}
	return New(TypeTaskLifecycle, source, task.UserID, data)
}

// NewTaskUpdate builds the parity envelope for the reserved task-updates topic.
func NewTaskUpdate(source string, changeType domain.EventType, task *domain.Task) (Envelope, error) {
	data, err := json.Marshal(TaskUpdateData{
		TaskID:     task.ID,
		UserID:     task.UserID,
		ChangeType: changeType,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode task update payload: %w", err)
	}
	return New(TypeTaskUpdate, source, task.UserID, data)
}

// NewReminderTrigger builds a reminders envelope for one fired reminder.
func NewReminderTrigger(source string, payload ReminderTriggerData) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode reminder payload: %w", err)
	}
	return New(TypeReminderTrigger, source, payload.UserID, data)
}
