package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
)

// Notification is one reminder delivery.
type Notification struct {
	ReminderID string
	TaskID     string
	UserID     string
	Title      string
	DueAt      *time.Time
	RemindAt   time.Time
}

// Sink delivers notifications. Implementations must tolerate being called at
// most once per reminder id; the dedup barrier sits in front of them.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SlogSink is the minimum viable sink: one structured log line per reminder.
type SlogSink struct{}

// Notify logs the reminder.
func (SlogSink) Notify(ctx context.Context, n Notification) error {
	slog.InfoContext(ctx, "reminder notification",
		"reminder_id", n.ReminderID,
		"task_id", n.TaskID,
		"user_id", n.UserID,
		"title", n.Title,
		"remind_at", n.RemindAt)
	return nil
}

// SlackSink posts reminders to a Slack incoming webhook.
type SlackSink struct {
	webhookURL string
}

// NewSlackSink creates a sink for the given incoming-webhook URL.
func NewSlackSink(webhookURL string) *SlackSink {
	return &SlackSink{webhookURL: webhookURL}
}

// Notify posts the reminder to the webhook.
func (s *SlackSink) Notify(ctx context.Context, n Notification) error {
	text := fmt.Sprintf("Reminder: %s (task %s)", n.Title, n.TaskID)
	if n.DueAt != nil {
		text = fmt.Sprintf("%s, due %s", text, n.DueAt.UTC().Format(time.RFC3339))
	}

	if err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("failed to post slack notification: %w", err)
	}
	return nil
}

// MultiSink fans a notification out to several sinks, failing on the first
// error so the whole delivery is retried.
type MultiSink []Sink

// Notify delivers to every sink in order.
func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
