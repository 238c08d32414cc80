package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/lib/pq"
)

/* PostgreSQL implementation of subscription.Repository, table webhook_subscriptions
 * Event types are stored by name in a TEXT[] column so a GIN index serves fan-out lookups
 */

const columns = `id, owner_id, url, description, secret, event_types, active,
	success_count, failure_count, last_triggered_at, created_at, updated_at`

type Repository struct {
	DB *sql.DB
}

// NewRepository wraps an open connection pool
func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (subscription.Subscription, error) {
	var (
		s     subscription.Subscription
		names []string
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.URL, &s.Description, &s.Secret, pq.Array(&names), &s.Active,
		&s.SuccessCount, &s.FailureCount, &s.LastTriggeredAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return subscription.Subscription{}, err
	}

	s.EventTypes, err = event.ParseTypes(names)
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("decoding event types of %s: %w", s.ID, err)
	}
	return s, nil
}

// Get selects a subscription by id
func (r *Repository) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	query := "SELECT " + columns + " FROM webhook_subscriptions WHERE id = $1"

	s, err := scan(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("selecting subscription: %w", err)
	}

	return s, nil
}

// ListByOwner returns the owner's subscriptions, oldest first
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]subscription.Subscription, error) {
	query := "SELECT " + columns + " FROM webhook_subscriptions WHERE owner_id = $1 ORDER BY created_at, id"
	return r.list(ctx, query, ownerID)
}

// ListActiveForEvent returns active subscriptions to t, optionally restricted to one owner
func (r *Repository) ListActiveForEvent(ctx context.Context, t event.Type, ownerID string) ([]subscription.Subscription, error) {
	query := "SELECT " + columns + ` FROM webhook_subscriptions
		WHERE active AND $1 = ANY(event_types) AND ($2 = '' OR owner_id = $2)
		ORDER BY created_at, id`
	return r.list(ctx, query, t.String(), ownerID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]subscription.Subscription, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []subscription.Subscription
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}

	return subs, nil
}

// Insert stores a new subscription
func (r *Repository) Insert(ctx context.Context, s subscription.Subscription) error {
	query := "INSERT INTO webhook_subscriptions (" + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.DB.ExecContext(ctx, query, s.ID, s.OwnerID, s.URL, s.Description, s.Secret,
		pq.Array(event.Names(s.EventTypes)), s.Active, s.SuccessCount, s.FailureCount,
		s.LastTriggeredAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}

	return nil
}

// Update replaces the caller-controlled fields
func (r *Repository) Update(ctx context.Context, s subscription.Subscription) error {
	query := `
		UPDATE webhook_subscriptions
		SET url = $1, description = $2, event_types = $3, active = $4, updated_at = $5
		WHERE id = $6
	`

	return r.exec(ctx, "updating subscription", query,
		s.URL, s.Description, pq.Array(event.Names(s.EventTypes)), s.Active, s.UpdatedAt, s.ID)
}

// UpdateSecret stores a rotated secret
func (r *Repository) UpdateSecret(ctx context.Context, id, secret string, at time.Time) error {
	query := "UPDATE webhook_subscriptions SET secret = $1, updated_at = $2 WHERE id = $3"
	return r.exec(ctx, "updating secret", query, secret, at, id)
}

// Delete removes a subscription
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "deleting subscription", "DELETE FROM webhook_subscriptions WHERE id = $1", id)
}

// IncrementCounters adds to the counters atomically
func (r *Repository) IncrementCounters(ctx context.Context, id string, success, failure int64) error {
	query := `
		UPDATE webhook_subscriptions
		SET success_count = success_count + $1, failure_count = failure_count + $2
		WHERE id = $3
	`
	return r.exec(ctx, "incrementing counters", query, success, failure, id)
}

// TouchTriggered records the last time an event fanned out to the subscription
func (r *Repository) TouchTriggered(ctx context.Context, id string, at time.Time) error {
	query := "UPDATE webhook_subscriptions SET last_triggered_at = $1 WHERE id = $2"
	return r.exec(ctx, "touching subscription", query, at, id)
}

func (r *Repository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return subscription.ErrNotFound
	}

	return nil
}
