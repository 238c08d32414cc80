package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/internal/memstore"
	"github.com/btwitsvirendra/airavat-webhooks/retry"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newScheduler(store *memstore.Store, now *time.Time) *retry.Scheduler {
	s := retry.NewScheduler(store.Deliveries, store.Events, store.Queue, zerolog.Nop())
	s.Now = func() time.Time { return *now }
	return s
}

func delivery(id string, status webhook.Status, created time.Time) webhook.Delivery {
	return webhook.Delivery{
		ID:             id,
		SubscriptionID: "sub-1",
		EventID:        "evt-1",
		EventType:      "order.created",
		Payload:        []byte(`{}`),
		Status:         status,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("due retry is enqueued once per lease", func(t *testing.T) {
		store := memstore.New()
		now := t0
		s := newScheduler(store, &now)

		d := delivery("d-1", webhook.Retrying, t0.Add(-time.Hour))
		next := t0.Add(time.Minute)
		d.NextRetryAt = &next
		require.NoError(t, store.Deliveries.Create(ctx, d))

		res, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Admitted, "not yet due")

		now = next
		res, err = s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Admitted)

		now = next.Add(s.Interval)
		res, err = s.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Admitted, "admission lease still held")

		n, err := store.Queue.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("pending rows created while down are enqueued on the first sweep", func(t *testing.T) {
		store := memstore.New()
		now := t0
		s := newScheduler(store, &now)

		require.NoError(t, store.Deliveries.Create(ctx, delivery("d-1", webhook.Pending, t0.Add(-time.Minute))))
		require.NoError(t, store.Deliveries.Create(ctx, delivery("d-2", webhook.Success, t0.Add(-time.Minute))))

		res, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Admitted)
	})

	t.Run("abandoned claim is released and re-enqueued", func(t *testing.T) {
		store := memstore.New()
		now := t0
		s := newScheduler(store, &now)

		require.NoError(t, store.Deliveries.Create(ctx, delivery("d-1", webhook.Pending, t0)))
		_, ok, err := store.Deliveries.Claim(ctx, "d-1", t0)
		require.NoError(t, err)
		require.True(t, ok)

		now = t0.Add(s.ClaimLease + time.Second)
		res, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Released)
		assert.Equal(t, 1, res.Admitted)

		d, err := store.Deliveries.Get(ctx, "d-1")
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, d.Status)
		assert.Zero(t, d.Attempts)
	})

	t.Run("old terminal history is purged", func(t *testing.T) {
		store := memstore.New()
		now := t0
		s := newScheduler(store, &now)

		old := t0.Add(-s.Retention - time.Hour)
		require.NoError(t, store.Events.Append(ctx, event.Envelope{ID: "evt-1", Type: event.OrderCreated, Timestamp: old, Payload: []byte(`{}`)}))
		require.NoError(t, store.Deliveries.Create(ctx, delivery("d-1", webhook.Success, old)))

		res, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.PurgedDeliveries)
		assert.Equal(t, int64(1), res.PurgedEvents)

		_, err = store.Events.Get(ctx, "evt-1")
		assert.ErrorIs(t, err, event.ErrNotFound)
	})

	t.Run("storage failure is returned", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		store := memstore.New()
		s := retry.NewScheduler(repo, store.Events, store.Queue, zerolog.Nop())
		s.Now = func() time.Time { return t0 }

		repo.On("ReleaseStale", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset"))

		_, err := s.Sweep(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "releasing stale claims")
	})
}

func TestRun(t *testing.T) {
	store := memstore.New()
	now := t0
	s := newScheduler(store, &now)
	s.Interval = time.Hour

	require.NoError(t, store.Deliveries.Create(context.Background(), delivery("d-1", webhook.Pending, t0)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		n, _ := store.Queue.Len(context.Background())
		return n == 1
	}, time.Second, 10*time.Millisecond, "first sweep runs immediately")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
