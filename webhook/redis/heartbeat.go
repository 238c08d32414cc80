package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/redis/go-redis/v9"
)

// HeartbeatTTL is how long a worker counts as alive after its last beat
const HeartbeatTTL = 60 * time.Second

// SetWorkerHeartbeat stores or updates a worker's heartbeat
// Pools beat every worker.DefaultHeartbeatInterval (15 seconds); a key that expires means the worker is gone
func (q *Queue) SetWorkerHeartbeat(ctx context.Context, pool, workerID, status string) error {
	key := fmt.Sprintf("worker:heartbeat:%s:%s", pool, workerID)

	heartbeat := webhook.WorkerHeartbeat{
		WorkerID:      workerID,
		Pool:          pool,
		Status:        status,
		LastHeartbeat: time.Now(),
	}

	data, err := json.Marshal(heartbeat)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := q.client.Set(ctx, key, data, HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}

	return nil
}

// GetActiveWorkers retrieves every live worker across pools
func (q *Queue) GetActiveWorkers(ctx context.Context) ([]webhook.WorkerHeartbeat, error) {
	var (
		workers []webhook.WorkerHeartbeat
		cursor  uint64
	)
	for {
		keys, nextCursor, err := q.client.Scan(ctx, cursor, "worker:heartbeat:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker keys: %w", err)
		}

		for _, key := range keys {
			data, err := q.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				// Key expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting worker heartbeat: %w", err)
			}

			var heartbeat webhook.WorkerHeartbeat
			if err := json.Unmarshal([]byte(data), &heartbeat); err != nil {
				continue
			}

			workers = append(workers, heartbeat)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return workers, nil
}
