package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/internal/memstore"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}
	rows := []webhook.Delivery{
		{ID: "d-1", Status: webhook.Success, DeliveredAt: at(30 * time.Second)},
		{ID: "d-2", Status: webhook.Success, DeliveredAt: at(3 * time.Minute)},
		{ID: "d-3", Status: webhook.Success, DeliveredAt: at(10 * time.Minute)},
		{ID: "d-4", Status: webhook.Success, DeliveredAt: at(time.Hour)},
		{ID: "d-5", Status: webhook.Retrying},
		{ID: "d-6", Status: webhook.Pending},
	}
	for _, d := range rows {
		d.SubscriptionID = "sub-1"
		d.CreatedAt = now.Add(-2 * time.Hour)
		require.NoError(t, store.Deliveries.Create(ctx, d))
	}

	require.NoError(t, store.Queue.Enqueue(ctx, "d-6"))
	require.NoError(t, store.Queue.SetWorkerHeartbeat(ctx, "deliveries", "deliveries-0", "idle"))
	require.NoError(t, store.Queue.SetWorkerHeartbeat(ctx, "deliveries", "deliveries-1", "processing"))
	return store
}

func newCollector(store *memstore.Store) *LedgerCollector {
	c := NewLedgerCollector(store.Deliveries, store.Queue, store.Queue)
	c.now = func() time.Time { return now }
	return c
}

func TestLedgerCollector(t *testing.T) {
	ctx := context.Background()
	c := newCollector(seed(t))

	t.Run("status counts include empty statuses", func(t *testing.T) {
		counts, err := c.GetStatusCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{
			"pending":    1,
			"delivering": 0,
			"success":    4,
			"failed":     0,
			"retrying":   1,
		}, counts)
	})

	t.Run("throughput windows", func(t *testing.T) {
		tp, err := c.GetThroughput(ctx)
		require.NoError(t, err)
		assert.Equal(t, ThroughputMetrics{LastMinute: 1, LastFiveMinutes: 2, LastFifteenMinutes: 3}, tp)
	})

	t.Run("workers grouped by pool", func(t *testing.T) {
		workers, err := c.GetActiveWorkers(ctx)
		require.NoError(t, err)
		assert.Len(t, workers["deliveries"], 2)
	})

	t.Run("collect", func(t *testing.T) {
		m, err := c.Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), m.QueueLength)
		assert.Equal(t, now, m.Timestamp)

		raw, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"queue_length":1`)
		assert.Contains(t, string(raw), `"last_fifteen_minutes":3`)
	})

	t.Run("no heartbeat source", func(t *testing.T) {
		store := memstore.New()
		c := NewLedgerCollector(store.Deliveries, store.Queue, nil)
		workers, err := c.GetActiveWorkers(ctx)
		require.NoError(t, err)
		assert.Empty(t, workers)
	})
}

func TestOTelExporter(t *testing.T) {
	oe, err := NewOTelExporter(newCollector(seed(t)))
	require.NoError(t, err)
	defer oe.Shutdown(context.Background())

	oe.RecordAttempt(context.Background(), "order.created", webhook.Success, 120*time.Millisecond)
	oe.RecordAttempt(context.Background(), "order.created", webhook.Retrying, 2*time.Second)

	rec := httptest.NewRecorder()
	oe.ServeHTTP().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Contains(t, out, "webhook_delivery_attempts")
	assert.Contains(t, out, `webhook_outcome="retrying"`)
	assert.Contains(t, out, "webhook_delivery_duration")
	assert.Contains(t, out, "webhook_queue_length")
	assert.Contains(t, out, "webhook_status_count")
	assert.Contains(t, out, "webhook_workers_active")
	assert.Contains(t, out, "go_goroutines")

	t.Run("exporters do not share a registry", func(t *testing.T) {
		other, err := NewOTelExporter(newCollector(memstore.New()))
		require.NoError(t, err)
		defer other.Shutdown(context.Background())
	})
}
