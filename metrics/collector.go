package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
)

// LedgerCollector implements Collector over the delivery ledger, queue and heartbeats
type LedgerCollector struct {
	deliveries webhook.Reader
	queue      webhook.Queue
	heartbeats webhook.Heartbeats
	now        func() time.Time
}

// NewLedgerCollector creates a new metrics collector
func NewLedgerCollector(deliveries webhook.Reader, queue webhook.Queue, heartbeats webhook.Heartbeats) *LedgerCollector {
	return &LedgerCollector{
		deliveries: deliveries,
		queue:      queue,
		heartbeats: heartbeats,
		now:        time.Now,
	}
}

// Collect gathers all metrics
func (c *LedgerCollector) Collect(ctx context.Context) (Metrics, error) {
	queueLength, err := c.GetQueueLength(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue length: %w", err)
	}

	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}

	throughput, err := c.GetThroughput(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting throughput: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		QueueLength:  queueLength,
		StatusCounts: statusCounts,
		Throughput:   throughput,
		Workers:      workers,
		Timestamp:    c.now().UTC(),
	}, nil
}

func (c *LedgerCollector) GetQueueLength(ctx context.Context) (int64, error) {
	n, err := c.queue.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading queue length: %w", err)
	}
	return n, nil
}

// GetStatusCounts reports every status, including those with no deliveries
func (c *LedgerCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statusCounts := map[string]int64{
		webhook.Pending.String():    0,
		webhook.Delivering.String(): 0,
		webhook.Success.String():    0,
		webhook.Failed.String():     0,
		webhook.Retrying.String():   0,
	}

	counts, err := c.deliveries.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}
	for status, n := range counts {
		if _, exists := statusCounts[status.String()]; exists {
			statusCounts[status.String()] = n
		}
	}

	return statusCounts, nil
}

// GetThroughput counts successful deliveries over the last 1, 5 and 15 minutes
func (c *LedgerCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	now := c.now()
	windows := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	counts := make([]int64, len(windows))

	for i, window := range windows {
		n, err := c.deliveries.CountDeliveredSince(ctx, now.Add(-window))
		if err != nil {
			return ThroughputMetrics{}, fmt.Errorf("counting deliveries since %s: %w", window, err)
		}
		counts[i] = n
	}

	return ThroughputMetrics{
		LastMinute:         counts[0],
		LastFiveMinutes:    counts[1],
		LastFifteenMinutes: counts[2],
	}, nil
}

// GetActiveWorkers groups live heartbeats by pool
func (c *LedgerCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	workers := make(map[string][]WorkerInfo)
	if c.heartbeats == nil {
		return workers, nil
	}

	beats, err := c.heartbeats.GetActiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading heartbeats: %w", err)
	}

	for _, hb := range beats {
		workers[hb.Pool] = append(workers[hb.Pool], WorkerInfo{
			WorkerID:      hb.WorkerID,
			Pool:          hb.Pool,
			Status:        hb.Status,
			LastHeartbeat: hb.LastHeartbeat,
		})
	}

	return workers, nil
}
