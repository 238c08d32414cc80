package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/redis/go-redis/v9"
)

/* Redis Streams implementation of webhook.Queue and webhook.Heartbeats
 * One stream carries delivery ids; one consumer group shares them between workers
 * The ledger in PostgreSQL stays the source of truth, the stream only says "look at this id"
 */

const (
	StreamKey = "webhooks:deliveries"
	GroupName = "webhook-workers"

	// idle pending messages of a crashed consumer are taken over after this long
	reclaimIdle = 5 * time.Minute
	batchSize   = 10
)

type Queue struct {
	client *redis.Client
	block  time.Duration
}

// NewQueue connects to Redis and makes sure the consumer group exists
func NewQueue(addr, password string, db int) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	q := &Queue{
		client: client,
		block:  time.Second,
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, StreamKey, GroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Enqueue appends a delivery id to the stream
func (q *Queue) Enqueue(ctx context.Context, deliveryID string) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"delivery_id": deliveryID},
	}).Err()
	if err != nil {
		return fmt.Errorf("adding to stream: %w", err)
	}
	return nil
}

// Consume takes over stale pending messages first, then blocks for new ones
func (q *Queue) Consume(ctx context.Context, consumer string) ([]webhook.Message, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    GroupName,
		Consumer: consumer,
		MinIdle:  reclaimIdle,
		Start:    "0-0",
		Count:    batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("reclaiming pending messages: %w", err)
	}
	if len(claimed) > 0 {
		return toMessages(claimed), nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupName,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    batchSize,
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return []webhook.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 {
		return []webhook.Message{}, nil
	}

	return toMessages(streams[0].Messages), nil
}

func toMessages(in []redis.XMessage) []webhook.Message {
	out := make([]webhook.Message, 0, len(in))
	for _, msg := range in {
		// unreadable entries keep an empty id so the consumer still acknowledges them
		id, _ := msg.Values["delivery_id"].(string)
		out = append(out, webhook.Message{ID: msg.ID, DeliveryID: id})
	}
	return out
}

// Acknowledge removes the message from the pending list and from the stream
func (q *Queue) Acknowledge(ctx context.Context, msg webhook.Message) error {
	if err := q.client.XAck(ctx, StreamKey, GroupName, msg.ID).Err(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	if err := q.client.XDel(ctx, StreamKey, msg.ID).Err(); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// Len is the number of messages not yet acknowledged
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, StreamKey).Result()
	if err != nil {
		return 0, fmt.Errorf("reading stream length: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection
func (q *Queue) Close(ctx context.Context) error {
	return q.client.Close()
}

// Client returns the underlying Redis client for advanced operations
func (q *Queue) Client() *redis.Client {
	return q.client
}
