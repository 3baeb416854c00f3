// Package event defines the CloudEvents-style envelope and payloads carried
// on the bus. Consumers must tolerate unknown fields in data payloads;
// producers must never reuse an envelope id.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics are fixed; adding one is a coordinated schema change.
const (
	TopicTaskEvents  = "task-events"
	TopicReminders   = "reminders"
	TopicTaskUpdates = "task-updates"
)

// Envelope types.
const (
	TypeTaskLifecycle   = "com.todo.task.lifecycle"
	TypeReminderTrigger = "com.todo.reminder.trigger"
	TypeTaskUpdate      = "com.todo.task.update"
)

// SpecVersion is the CloudEvents spec version stamped on every envelope.
const SpecVersion = "1.0"

// Envelope is the message envelope published to every topic.
// ID is globally unique and is the consumer-side idempotency key.
// PartitionKey pins the message to an ordered sub-stream; it is always the
// user id so per-user lifecycle order is preserved.
type Envelope struct {
	SpecVersion     string          `json:"specversion"`
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	// PartitionKey is transport metadata, not part of the CloudEvents
	// attributes. It travels next to the envelope on the stream entry.
	PartitionKey string `json:"-"`
}

// New builds an envelope around an already-encoded data payload.
func New(eventType, source, partitionKey string, data json.RawMessage) (Envelope, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to generate event id: %w", err)
	}
	return Envelope{
		SpecVersion:     SpecVersion,
		ID:              id.String(),
		Type:            eventType,
		Source:          source,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		PartitionKey:    partitionKey,
	}, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an envelope from the wire. Unknown envelope fields are
// ignored for forward compatibility.
func Decode(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if e.ID == "" {
		return Envelope{}, fmt.Errorf("envelope missing id")
	}
	return e, nil
}
