package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/internal/memstore"
	"github.com/btwitsvirendra/airavat-webhooks/retry"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/signature"
	"github.com/btwitsvirendra/airavat-webhooks/worker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Body      []byte
	Signature string
}

// endpoint is a subscriber that answers with the next scripted status
type endpoint struct {
	mu       sync.Mutex
	statuses []int
	requests []received
}

func (e *endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	e.mu.Lock()
	e.requests = append(e.requests, received{Body: body, Signature: r.Header.Get(signature.Header)})
	status := http.StatusOK
	if len(e.statuses) > 0 {
		status = e.statuses[0]
		e.statuses = e.statuses[1:]
	}
	e.mu.Unlock()

	w.WriteHeader(status)
}

type harness struct {
	now        time.Time
	store      *memstore.Store
	registry   *subscription.Service
	dispatcher *dispatch.Dispatcher
	worker     *worker.Worker
	scheduler  *retry.Scheduler
	endpoint   *endpoint
	url        string
}

func newHarness(t *testing.T, statuses ...int) *harness {
	t.Helper()

	h := &harness{now: t0, store: memstore.New(), endpoint: &endpoint{statuses: statuses}}
	srv := httptest.NewServer(h.endpoint)
	t.Cleanup(srv.Close)
	h.url = srv.URL

	clock := func() time.Time { return h.now }
	logger := zerolog.Nop()

	h.registry = subscription.NewService(h.store.Subscriptions)
	h.registry.Now = clock

	h.dispatcher = dispatch.NewDispatcher(h.store.Subscriptions, h.store.Deliveries, h.store.Events, h.store.Queue, logger)
	h.dispatcher.Now = clock

	h.worker = worker.New(h.store.Deliveries, h.store.Subscriptions, time.Second, logger)
	h.worker.Now = clock

	h.scheduler = retry.NewScheduler(h.store.Deliveries, h.store.Events, h.store.Queue, logger)
	h.scheduler.Now = clock

	return h
}

// cycle runs the reaper once and processes everything it queued
func (h *harness) cycle(t *testing.T) []webhook.Status {
	t.Helper()
	ctx := context.Background()

	_, err := h.scheduler.Sweep(ctx)
	require.NoError(t, err)

	var statuses []webhook.Status
	for {
		n, err := h.store.Queue.Len(ctx)
		require.NoError(t, err)
		if n == 0 {
			return statuses
		}
		msgs, err := h.store.Queue.Consume(ctx, "scenario")
		require.NoError(t, err)
		for _, msg := range msgs {
			statuses = append(statuses, h.worker.Process(ctx, msg.DeliveryID))
			require.NoError(t, h.store.Queue.Acknowledge(ctx, msg))
		}
	}
}

func (h *harness) only(t *testing.T, subID string) webhook.Delivery {
	t.Helper()
	ds := deliveriesOf(t, h.store, subID)
	require.Len(t, ds, 1)
	return ds[0]
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	data := order{OrderID: "ord_1", Total: 1200}

	t.Run("A - delivered on the first attempt", func(t *testing.T) {
		h := newHarness(t, http.StatusOK)
		sub, err := h.registry.Create(ctx, "owner-a", h.url, []event.Type{event.OrderCreated}, "orders")
		require.NoError(t, err)

		res, err := h.dispatcher.Trigger(ctx, event.OrderCreated, data, dispatch.Scope{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.DispatchedCount)
		assert.Equal(t, webhook.Pending, h.only(t, sub.ID).Status)

		assert.Equal(t, []webhook.Status{webhook.Success}, h.cycle(t))

		d := h.only(t, sub.ID)
		assert.Equal(t, webhook.Success, d.Status)
		assert.Equal(t, 1, d.Attempts)

		require.Len(t, h.endpoint.requests, 1)
		req := h.endpoint.requests[0]
		assert.True(t, signature.VerifyAt(req.Body, req.Signature, sub.Secret, h.now))

		stored, err := h.store.Subscriptions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.SuccessCount)
	})

	t.Run("B - five failures exhaust the retry budget", func(t *testing.T) {
		h := newHarness(t, 500, 500, 500, 500, 500)
		sub, err := h.registry.Create(ctx, "owner-a", h.url, []event.Type{event.OrderCreated}, "")
		require.NoError(t, err)

		_, err = h.dispatcher.Trigger(ctx, event.OrderCreated, data, dispatch.Scope{})
		require.NoError(t, err)

		var history []webhook.Status
		for i := 0; i < retry.DefaultMaxRetries; i++ {
			history = append(history, h.cycle(t)...)
			d := h.only(t, sub.ID)
			if d.NextRetryAt != nil {
				// nothing is re-admitted before its retry time
				h.now = d.NextRetryAt.Add(-time.Second)
				assert.Empty(t, h.cycle(t))
				h.now = *d.NextRetryAt
			}
		}

		assert.Equal(t, []webhook.Status{
			webhook.Retrying, webhook.Retrying, webhook.Retrying, webhook.Retrying, webhook.Failed,
		}, history)

		d := h.only(t, sub.ID)
		assert.Equal(t, webhook.Failed, d.Status)
		assert.Equal(t, retry.DefaultMaxRetries, d.Attempts)

		stored, err := h.store.Subscriptions.Get(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), stored.FailureCount)
		assert.Zero(t, stored.SuccessCount)

		// terminal: later sweeps leave it alone
		h.now = h.now.Add(24 * time.Hour)
		assert.Empty(t, h.cycle(t))
		assert.Len(t, h.endpoint.requests, 5)
	})

	t.Run("C - a retry after rotation is signed with the current secret", func(t *testing.T) {
		h := newHarness(t, http.StatusInternalServerError, http.StatusOK)
		sub, err := h.registry.Create(ctx, "owner-a", h.url, []event.Type{event.OrderCreated}, "")
		require.NoError(t, err)
		oldSecret := sub.Secret

		_, err = h.dispatcher.Trigger(ctx, event.OrderCreated, data, dispatch.Scope{})
		require.NoError(t, err)
		assert.Equal(t, []webhook.Status{webhook.Retrying}, h.cycle(t))

		rotated, err := h.registry.RotateSecret(ctx, sub.ID, "owner-a")
		require.NoError(t, err)
		require.NotEqual(t, oldSecret, rotated.Secret)

		h.now = *h.only(t, sub.ID).NextRetryAt
		assert.Equal(t, []webhook.Status{webhook.Success}, h.cycle(t))

		require.Len(t, h.endpoint.requests, 2)
		first, second := h.endpoint.requests[0], h.endpoint.requests[1]
		assert.True(t, signature.VerifyAt(first.Body, first.Signature, oldSecret, t0))
		assert.True(t, signature.VerifyAt(second.Body, second.Signature, rotated.Secret, h.now))
		assert.False(t, signature.VerifyAt(second.Body, second.Signature, oldSecret, h.now))
		assert.Equal(t, first.Body, second.Body, "payload snapshot does not change between attempts")
	})

	t.Run("D - no matching subscription", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.registry.Create(ctx, "owner-a", h.url, []event.Type{event.OrderCreated}, "")
		require.NoError(t, err)

		res, err := h.dispatcher.Trigger(ctx, event.PaymentFailed, map[string]string{"payment_id": "pay_1"}, dispatch.Scope{})
		require.NoError(t, err)
		assert.Zero(t, res.DispatchedCount)

		counts, err := h.store.Deliveries.CountByStatus(ctx)
		require.NoError(t, err)
		for _, n := range counts {
			assert.Zero(t, n)
		}
		assert.Empty(t, h.cycle(t))
		assert.Empty(t, h.endpoint.requests)
	})
}
