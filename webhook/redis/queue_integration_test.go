//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	t.Run("enqueue, consume and acknowledge", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr)
		defer q.Close(ctx)

		require.NoError(t, q.Enqueue(ctx, "d-1"))
		require.NoError(t, q.Enqueue(ctx, "d-2"))

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		msgs, err := q.Consume(ctx, "worker-1")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "d-1", msgs[0].DeliveryID)
		assert.Equal(t, "d-2", msgs[1].DeliveryID)

		for _, m := range msgs {
			require.NoError(t, q.Acknowledge(ctx, m))
		}

		n, err = q.Len(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("each message goes to one consumer of the group", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr)
		defer q.Close(ctx)

		require.NoError(t, q.Enqueue(ctx, "d-3"))

		first, err := q.Consume(ctx, "worker-1")
		require.NoError(t, err)
		second, err := q.Consume(ctx, "worker-2")
		require.NoError(t, err)

		assert.Len(t, first, 1)
		assert.Empty(t, second)
		require.NoError(t, q.Acknowledge(ctx, first[0]))
	})

	t.Run("empty stream returns no messages after blocking", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr)
		defer q.Close(ctx)

		msgs, err := q.Consume(ctx, "worker-1")
		require.NoError(t, err)
		assert.Equal(t, []webhook.Message{}, msgs)
	})
}

func TestHeartbeat_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	q := CreateTestQueue(t, redisContainer.Addr)
	defer q.Close(ctx)

	require.NoError(t, q.SetWorkerHeartbeat(ctx, "api", "worker-1", "idle"))
	require.NoError(t, q.SetWorkerHeartbeat(ctx, "api", "worker-2", "processing"))
	require.NoError(t, q.SetWorkerHeartbeat(ctx, "api", "worker-2", "idle"))

	workers, err := q.GetActiveWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, workers, 2)
	for _, w := range workers {
		assert.Equal(t, "api", w.Pool)
		assert.Equal(t, "idle", w.Status)
	}

	ttl, err := q.Client().TTL(ctx, "worker:heartbeat:api:worker-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)
}
