package memstore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
)

const batchSize = 10

// Queue implements webhook.Queue and webhook.Heartbeats in process
type Queue struct {
	mu       sync.Mutex
	seq      int
	ready    []webhook.Message
	inflight map[string]webhook.Message
	signal   chan struct{}
	wait     time.Duration

	heartbeats map[string]webhook.WorkerHeartbeat
	ttl        time.Duration
	now        func() time.Time
}

func newQueue() *Queue {
	return &Queue{
		inflight:   make(map[string]webhook.Message),
		signal:     make(chan struct{}, 1),
		wait:       time.Second,
		heartbeats: make(map[string]webhook.WorkerHeartbeat),
		ttl:        60 * time.Second,
		now:        time.Now,
	}
}

func (q *Queue) Enqueue(_ context.Context, deliveryID string) error {
	q.mu.Lock()
	q.seq++
	q.ready = append(q.ready, webhook.Message{ID: strconv.Itoa(q.seq), DeliveryID: deliveryID})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Consume returns up to batchSize messages, waiting at most one second for the first
func (q *Queue) Consume(ctx context.Context, _ string) ([]webhook.Message, error) {
	timer := time.NewTimer(q.wait)
	defer timer.Stop()

	for {
		if msgs := q.take(); len(msgs) > 0 {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return []webhook.Message{}, nil
		case <-q.signal:
		}
	}
}

func (q *Queue) take() []webhook.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(batchSize, len(q.ready))
	msgs := make([]webhook.Message, n)
	copy(msgs, q.ready[:n])
	q.ready = q.ready[n:]
	for _, m := range msgs {
		q.inflight[m.ID] = m
	}

	// wake another consumer when messages remain
	if len(q.ready) > 0 {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return msgs
}

func (q *Queue) Acknowledge(_ context.Context, msg webhook.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inflight, msg.ID)
	return nil
}

func (q *Queue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return int64(len(q.ready) + len(q.inflight)), nil
}

func (q *Queue) SetWorkerHeartbeat(_ context.Context, pool, workerID, status string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.heartbeats[pool+":"+workerID] = webhook.WorkerHeartbeat{
		WorkerID:      workerID,
		Pool:          pool,
		Status:        status,
		LastHeartbeat: q.now(),
	}
	return nil
}

func (q *Queue) GetActiveWorkers(_ context.Context) ([]webhook.WorkerHeartbeat, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-q.ttl)
	var workers []webhook.WorkerHeartbeat
	for key, hb := range q.heartbeats {
		if hb.LastHeartbeat.Before(cutoff) {
			delete(q.heartbeats, key)
			continue
		}
		workers = append(workers, hb)
	}
	return workers, nil
}
