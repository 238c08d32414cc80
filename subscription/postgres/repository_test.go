//go:build !integration

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columnNames = []string{"id", "owner_id", "url", "description", "secret", "event_types", "active",
	"success_count", "failure_count", "last_triggered_at", "created_at", "updated_at"}

func TestRepository_Get_Unit(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("existing subscription", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(columnNames).
			AddRow("sub-1", "tenant-1", "https://example.com", "orders", "whsec_x", "{order.created,payment.captured}", true,
				3, 1, nil, at, at)
		mock.ExpectQuery(regexp.QuoteMeta("FROM webhook_subscriptions WHERE id = $1")).WithArgs("sub-1").WillReturnRows(rows)

		s, err := NewRepository(db).Get(context.Background(), "sub-1")

		require.NoError(t, err)
		assert.Equal(t, []event.Type{event.OrderCreated, event.PaymentCaptured}, s.EventTypes)
		assert.Equal(t, int64(3), s.SuccessCount)
		assert.Nil(t, s.LastTriggeredAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing subscription", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("FROM webhook_subscriptions WHERE id = $1")).WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(columnNames))

		_, err = NewRepository(db).Get(context.Background(), "nope")

		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("unknown stored event type", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := sqlmock.NewRows(columnNames).
			AddRow("sub-1", "tenant-1", "https://example.com", "", "whsec_x", "{order.exploded}", true, 0, 0, nil, at, at)
		mock.ExpectQuery(regexp.QuoteMeta("FROM webhook_subscriptions WHERE id = $1")).WithArgs("sub-1").WillReturnRows(rows)

		_, err = NewRepository(db).Get(context.Background(), "sub-1")

		require.ErrorIs(t, err, event.ErrUnknownType)
	})
}

func TestRepository_ListActiveForEvent_Unit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columnNames).
		AddRow("sub-1", "tenant-1", "https://a.example.com", "", "whsec_a", "{rfq.awarded}", true, 0, 0, nil, at, at).
		AddRow("sub-2", "tenant-1", "https://b.example.com", "", "whsec_b", "{rfq.awarded,rfq.closed}", true, 0, 0, at, at, at)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active AND $1 = ANY(event_types) AND ($2 = '' OR owner_id = $2)")).
		WithArgs("rfq.awarded", "tenant-1").
		WillReturnRows(rows)

	subs, err := NewRepository(db).ListActiveForEvent(context.Background(), event.RFQAwarded, "tenant-1")

	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub-2", subs[1].ID)
	require.NotNil(t, subs[1].LastTriggeredAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Insert_Unit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO webhook_subscriptions")).
		WithArgs("sub-1", "tenant-1", "https://example.com", "", "whsec_x", "{\"order.created\"}", true,
			int64(0), int64(0), nil, at, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewRepository(db).Insert(context.Background(), subscription.Subscription{
		ID:         "sub-1",
		OwnerID:    "tenant-1",
		URL:        "https://example.com",
		Secret:     "whsec_x",
		EventTypes: []event.Type{event.OrderCreated},
		Active:     true,
		CreatedAt:  at,
		UpdatedAt:  at,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Writes_Unit(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("increment counters", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("SET success_count = success_count + $1, failure_count = failure_count + $2")).
			WithArgs(int64(0), int64(1), "sub-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewRepository(db).IncrementCounters(context.Background(), "sub-1", 0, 1))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update secret of missing subscription", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE webhook_subscriptions SET secret = $1, updated_at = $2 WHERE id = $3")).
			WithArgs("whsec_new", at, "nope").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = NewRepository(db).UpdateSecret(context.Background(), "nope", "whsec_new", at)

		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM webhook_subscriptions WHERE id = $1")).
			WithArgs("sub-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewRepository(db).Delete(context.Background(), "sub-1"))
	})
}
