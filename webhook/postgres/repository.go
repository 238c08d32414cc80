package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
)

/* PostgreSQL implementation of webhook.Repository, table webhook_deliveries
 * Every transition is one conditional UPDATE so concurrent workers and sweeps never
 * move the same row twice
 */

const columns = `id, subscription_id, event_id, event_type, payload, occurred_at, status, attempts,
	next_retry_at, response_status, response_body, last_error, duration_ms,
	created_at, updated_at, claimed_at, admitted_at, delivered_at`

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

func scan(row scanner) (webhook.Delivery, error) {
	var (
		d        webhook.Delivery
		payload  string
		status   string
		duration int64
	)
	err := row.Scan(&d.ID, &d.SubscriptionID, &d.EventID, &d.EventType, &payload, &d.OccurredAt, &status, &d.Attempts,
		&d.NextRetryAt, &d.ResponseStatus, &d.ResponseBody, &d.LastError, &duration,
		&d.CreatedAt, &d.UpdatedAt, &d.ClaimedAt, &d.AdmittedAt, &d.DeliveredAt)
	if err != nil {
		return webhook.Delivery{}, err
	}

	d.Payload = []byte(payload)
	d.Status = webhook.NewStatus(status)
	d.Duration = time.Duration(duration) * time.Millisecond
	return d, nil
}

// Create inserts a new delivery row
func (r *Repository) Create(ctx context.Context, d webhook.Delivery) error {
	query := "INSERT INTO webhook_deliveries (" + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.DB.ExecContext(ctx, query, d.ID, d.SubscriptionID, d.EventID, d.EventType, string(d.Payload),
		d.OccurredAt, d.Status.String(), d.Attempts, d.NextRetryAt, d.ResponseStatus, d.ResponseBody,
		d.LastError, d.Duration.Milliseconds(), d.CreatedAt, d.UpdatedAt, d.ClaimedAt, d.AdmittedAt, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}

	return nil
}

// Get selects a delivery by id
func (r *Repository) Get(ctx context.Context, id string) (webhook.Delivery, error) {
	query := "SELECT " + columns + " FROM webhook_deliveries WHERE id = $1"

	d, err := scan(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Delivery{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("selecting delivery: %w", err)
	}

	return d, nil
}

// ListBySubscription returns a page of deliveries, newest first
func (r *Repository) ListBySubscription(ctx context.Context, subscriptionID string, limit, offset int) ([]webhook.Delivery, error) {
	query := "SELECT " + columns + ` FROM webhook_deliveries
		WHERE subscription_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, subscriptionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("selecting deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []webhook.Delivery{}
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}

	return deliveries, nil
}

// CountBySubscription counts every delivery of a subscription
func (r *Repository) CountBySubscription(ctx context.Context, subscriptionID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM webhook_deliveries WHERE subscription_id = $1", subscriptionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting deliveries: %w", err)
	}
	return n, nil
}

// CountByStatus counts deliveries per status
func (r *Repository) CountByStatus(ctx context.Context) (map[webhook.Status]int64, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT status, COUNT(*) FROM webhook_deliveries GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[webhook.Status]int64)
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[webhook.NewStatus(status)] += n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status counts: %w", err)
	}

	return counts, nil
}

// CountDeliveredSince counts successful deliveries completed at or after since
func (r *Repository) CountDeliveredSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM webhook_deliveries WHERE status = 'success' AND delivered_at >= $1"
	if err := r.DB.QueryRowContext(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting delivered: %w", err)
	}
	return n, nil
}

// Claim moves a due delivery to delivering and returns the claimed row
func (r *Repository) Claim(ctx context.Context, id string, now time.Time) (webhook.Delivery, bool, error) {
	query := `
		UPDATE webhook_deliveries
		SET status = 'delivering', claimed_at = $2, updated_at = $2
		WHERE id = $1
		AND status IN ('pending', 'retrying')
		AND COALESCE(next_retry_at, created_at) <= $2
		RETURNING ` + columns

	d, err := scan(r.DB.QueryRowContext(ctx, query, id, now))
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Delivery{}, false, nil
	}
	if err != nil {
		return webhook.Delivery{}, false, fmt.Errorf("claiming delivery: %w", err)
	}

	return d, true, nil
}

// Complete writes the outcome of a claimed attempt
func (r *Repository) Complete(ctx context.Context, id string, o webhook.Outcome) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validating outcome: %w", err)
	}

	increment := 0
	if o.CountAttempt {
		increment = 1
	}

	var deliveredAt *time.Time
	if o.Status == webhook.Success {
		deliveredAt = &o.At
	}

	query := `
		UPDATE webhook_deliveries
		SET status = $2, attempts = attempts + $3, response_status = $4, response_body = $5,
			last_error = $6, duration_ms = $7, next_retry_at = $8, updated_at = $9,
			delivered_at = COALESCE($10, delivered_at), claimed_at = NULL, admitted_at = NULL
		WHERE id = $1 AND status = 'delivering'
	`

	result, err := r.DB.ExecContext(ctx, query, id, o.Status.String(), increment, o.ResponseStatus, o.ResponseBody,
		o.Error, o.Duration.Milliseconds(), o.NextRetryAt, o.At, deliveredAt)
	if err != nil {
		return fmt.Errorf("completing delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return webhook.ErrNotClaimed
	}

	return nil
}

// ReleaseStale hands abandoned claims back to the scheduler without counting an attempt
func (r *Repository) ReleaseStale(ctx context.Context, claimedBefore, now time.Time) (int64, error) {
	query := `
		UPDATE webhook_deliveries
		SET status = 'retrying', next_retry_at = $2, claimed_at = NULL, admitted_at = NULL, updated_at = $2
		WHERE status = 'delivering' AND claimed_at < $1
	`
	return r.affected(ctx, "releasing stale claims", query, claimedBefore, now)
}

// ListDue lists claimable deliveries whose admission lease has expired, oldest due first
func (r *Repository) ListDue(ctx context.Context, now, leaseBefore time.Time, limit int) ([]string, error) {
	query := `
		SELECT id FROM webhook_deliveries
		WHERE status IN ('pending', 'retrying')
		AND COALESCE(next_retry_at, created_at) <= $1
		AND (admitted_at IS NULL OR admitted_at < $2)
		ORDER BY COALESCE(next_retry_at, created_at)
		LIMIT $3
	`

	rows, err := r.DB.QueryContext(ctx, query, now, leaseBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting due deliveries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning due delivery: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating due deliveries: %w", err)
	}

	return ids, nil
}

// Admit takes the admission lease of one delivery
func (r *Repository) Admit(ctx context.Context, id string, now, leaseBefore time.Time) (bool, error) {
	query := `
		UPDATE webhook_deliveries
		SET admitted_at = $2
		WHERE id = $1
		AND status IN ('pending', 'retrying')
		AND (admitted_at IS NULL OR admitted_at < $3)
	`

	n, err := r.affected(ctx, "admitting delivery", query, id, now, leaseBefore)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PurgeTerminal deletes settled deliveries not touched since before
func (r *Repository) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	query := "DELETE FROM webhook_deliveries WHERE status IN ('success', 'failed') AND updated_at < $1"
	return r.affected(ctx, "purging deliveries", query, before)
}

func (r *Repository) affected(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return n, nil
}
