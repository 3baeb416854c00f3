package bus

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/taskloop/taskloop/internal/event"
)

// Stream entry field names.
const (
	fieldEnvelope = "envelope"
	fieldKey      = "key"
)

// Config holds Redis bus configuration. Zero values get defaults.
type Config struct {
	// Shards is the number of ordered sub-streams per topic. Changing it on a
	// live deployment re-partitions keys; drain consumers first.
	Shards int

	// Group is the consumer group name. Each group observes every message at
	// least once.
	Group string

	// Consumer is the consumer name within the group, unique per process.
	Consumer string

	// Block is how long a read blocks waiting for new entries.
	Block time.Duration

	// Batch is the max entries fetched per read.
	Batch int64

	// MinIdle is how long a pending entry must sit unacknowledged before
	// another consumer may reclaim it.
	MinIdle time.Duration

	// ReclaimInterval is how often pending entries are scanned for reclaim.
	ReclaimInterval time.Duration

	// MaxDeliveries caps delivery attempts before an entry is routed to the
	// topic's dead-letter stream and acknowledged.
	MaxDeliveries int64
}

func (c *Config) applyDefaults() {
	if c.Shards <= 0 {
		c.Shards = 8
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 16
	}
	if c.MinIdle <= 0 {
		c.MinIdle = 30 * time.Second
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 15 * time.Second
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
}

// RedisBus implements Publisher and Subscriber over Redis Streams.
type RedisBus struct {
	client redis.UniversalClient
	cfg    Config
}

// Compile-time interface checks.
var (
	_ Publisher  = (*RedisBus)(nil)
	_ Subscriber = (*RedisBus)(nil)
)

// NewRedisBus creates a bus over the given Redis client.
func NewRedisBus(client redis.UniversalClient, cfg Config) *RedisBus {
	cfg.applyDefaults()
	return &RedisBus{client: client, cfg: cfg}
}

// streamName returns the shard stream for a topic and partition key.
func (b *RedisBus) streamName(topic string, key string) string {
	return fmt.Sprintf("bus:%s:%d", topic, shardOf(key, b.cfg.Shards))
}

// deadLetterStream returns the dead-letter stream for a topic.
func deadLetterStream(topic string) string {
	return "bus:" + topic + ":dead"
}

func shardOf(key string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}

// Publish appends the envelope to the shard stream selected by its partition
// key. Transient Redis failures surface to the caller; the outbox dispatcher
// retries them.
func (b *RedisBus) Publish(ctx context.Context, topic string, env event.Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	stream := b.streamName(topic, env.PartitionKey)
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			fieldEnvelope: string(raw),
			fieldKey:      env.PartitionKey,
		},
	}).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}

// Consume blocks until ctx is cancelled, dispatching topic messages to h.
// One goroutine per shard keeps per-key order; a reclaim goroutine per shard
// picks up entries abandoned by crashed consumers.
func (b *RedisBus) Consume(ctx context.Context, topic string, h Handler) error {
	if b.cfg.Group == "" {
		return fmt.Errorf("bus: consumer group is required")
	}
	if b.cfg.Consumer == "" {
		return fmt.Errorf("bus: consumer name is required")
	}

	g, ctx := errgroup.WithContext(ctx)
	for shard := range b.cfg.Shards {
		stream := fmt.Sprintf("bus:%s:%d", topic, shard)

		if err := b.ensureGroup(ctx, stream); err != nil {
			return err
		}

		g.Go(func() error {
			return b.readLoop(ctx, topic, stream, h)
		})
		g.Go(func() error {
			return b.reclaimLoop(ctx, topic, stream, h)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *RedisBus) ensureGroup(ctx context.Context, stream string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, b.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create group %s on %s: %w", b.cfg.Group, stream, err)
	}
	return nil
}

// readLoop fetches new entries for this consumer and dispatches them in order.
func (b *RedisBus) readLoop(ctx context.Context, topic, stream string, h Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.cfg.Group,
			Consumer: b.cfg.Consumer,
			Streams:  []string{stream, ">"},
			Count:    b.cfg.Batch,
			Block:    b.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "bus read failed",
				"topic", topic,
				"stream", stream,
				"error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, sr := range res {
			for _, msg := range sr.Messages {
				b.dispatch(ctx, topic, stream, msg, h)
			}
		}
	}
}

// reclaimLoop periodically claims entries left pending past MinIdle, routing
// repeat offenders to the dead-letter stream.
func (b *RedisBus) reclaimLoop(ctx context.Context, topic, stream string, h Handler) error {
	ticker := time.NewTicker(b.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := "0-0"
		for {
			msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
				Stream:   stream,
				Group:    b.cfg.Group,
				Consumer: b.cfg.Consumer,
				MinIdle:  b.cfg.MinIdle,
				Start:    start,
				Count:    b.cfg.Batch,
			}).Result()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.ErrorContext(ctx, "bus reclaim failed",
					"topic", topic,
					"stream", stream,
					"error", err)
				break
			}

			for _, msg := range msgs {
				if b.exceededDeliveries(ctx, stream, msg.ID) {
					b.deadLetter(ctx, topic, stream, msg)
					continue
				}
				b.dispatch(ctx, topic, stream, msg, h)
			}

			if next == "0-0" || len(msgs) == 0 {
				break
			}
			start = next
		}
	}
}

// dispatch runs the handler for one entry and acknowledges on success.
// Undecodable entries are dead-lettered immediately: they can never succeed.
func (b *RedisBus) dispatch(ctx context.Context, topic, stream string, msg redis.XMessage, h Handler) {
	raw, ok := msg.Values[fieldEnvelope].(string)
	if !ok {
		slog.ErrorContext(ctx, "bus entry missing envelope field",
			"stream", stream,
			"entry_id", msg.ID)
		b.deadLetter(ctx, topic, stream, msg)
		return
	}

	env, err := event.Decode([]byte(raw))
	if err != nil {
		slog.ErrorContext(ctx, "bus entry undecodable",
			"stream", stream,
			"entry_id", msg.ID,
			"error", err)
		b.deadLetter(ctx, topic, stream, msg)
		return
	}

	if err := h(ctx, env); err != nil {
		// Leave pending; the reclaim loop redelivers after MinIdle.
		slog.WarnContext(ctx, "bus handler failed, message will be redelivered",
			"topic", topic,
			"event_id", env.ID,
			"event_type", env.Type,
			"error", err)
		return
	}

	if err := b.client.XAck(ctx, stream, b.cfg.Group, msg.ID).Err(); err != nil {
		// The effect committed but the ack did not; the consumer's dedup
		// table absorbs the resulting redelivery.
		slog.ErrorContext(ctx, "bus ack failed",
			"topic", topic,
			"event_id", env.ID,
			"error", err)
	}
}

// exceededDeliveries reports whether the entry's delivery count passed the cap.
func (b *RedisBus) exceededDeliveries(ctx context.Context, stream, id string) bool {
	pending, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  b.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return false
	}
	return pending[0].RetryCount > b.cfg.MaxDeliveries
}

// deadLetter copies the original entry to the topic's dead-letter stream with
// routing metadata, then acknowledges it so the group stops redelivering.
func (b *RedisBus) deadLetter(ctx context.Context, topic, stream string, msg redis.XMessage) {
	values := map[string]any{
		"origin_stream": stream,
		"origin_id":     msg.ID,
		"group":         b.cfg.Group,
		"dead_at":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range msg.Values {
		values[k] = v
	}

	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: deadLetterStream(topic),
		Values: values,
	}).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to dead-letter entry, leaving pending",
			"stream", stream,
			"entry_id", msg.ID,
			"error", err)
		return
	}

	if err := b.client.XAck(ctx, stream, b.cfg.Group, msg.ID).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to ack dead-lettered entry",
			"stream", stream,
			"entry_id", msg.ID,
			"error", err)
	}

	slog.WarnContext(ctx, "entry routed to dead-letter stream",
		"topic", topic,
		"stream", stream,
		"entry_id", msg.ID)
}
