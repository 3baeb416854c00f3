// Package bus provides topic-based publish/subscribe with consumer groups,
// at-least-once delivery and per-partition-key ordering, backed by Redis
// Streams.
//
// Each topic maps to a fixed set of shard streams; an envelope's partition
// key pins it to one shard, so entries sharing a key are delivered in
// publish order. Consumers in the same group share delivery of a topic;
// unacknowledged entries are reclaimed after an idle timeout and routed to a
// dead-letter stream once the delivery count exceeds the configured cap.
package bus

import (
	"context"

	"github.com/taskloop/taskloop/internal/event"
)

// Publisher publishes envelopes to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, env event.Envelope) error
}

// Handler processes one delivered envelope.
//
// Returning nil acknowledges the message. Returning an error leaves it
// pending; it will be redelivered to the group after the idle timeout.
// Handlers must be idempotent: redelivery across crashes is expected.
type Handler func(ctx context.Context, env event.Envelope) error

// Subscriber consumes a topic on behalf of a consumer group.
type Subscriber interface {
	// Consume blocks, dispatching messages on topic to h until ctx is
	// cancelled. Messages within a shard are dispatched serially to preserve
	// per-partition-key order; shards run concurrently.
	Consume(ctx context.Context, topic string, h Handler) error
}
