package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
)

// Repository is the PostgreSQL event log, table webhook_events
type Repository struct {
	DB *sql.DB
}

// NewRepository wraps an open connection pool
func NewRepository(db *sql.DB) *Repository {
	return &Repository{DB: db}
}

// Append stores an envelope; envelopes are never updated
func (r *Repository) Append(ctx context.Context, env event.Envelope) error {
	query := `
		INSERT INTO webhook_events (id, event_type, owner_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.DB.ExecContext(ctx, query, env.ID, env.Type.String(), env.OwnerID, string(env.Payload), env.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// Get loads one envelope by id
func (r *Repository) Get(ctx context.Context, id string) (event.Envelope, error) {
	query := "SELECT id, event_type, owner_id, payload, occurred_at FROM webhook_events WHERE id = $1"

	var (
		env      event.Envelope
		typeName string
		payload  string
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&env.ID, &typeName, &env.OwnerID, &payload, &env.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Envelope{}, event.ErrNotFound
	}
	if err != nil {
		return event.Envelope{}, fmt.Errorf("selecting event: %w", err)
	}

	env.Type, err = event.ParseType(typeName)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("decoding event %s: %w", id, err)
	}
	env.Payload = []byte(payload)
	env.Timestamp = env.Timestamp.UTC()

	return env, nil
}

// PurgeSettled deletes old envelopes that no pending, delivering or retrying delivery references
func (r *Repository) PurgeSettled(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM webhook_events e
		WHERE e.occurred_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM webhook_deliveries d
			WHERE d.event_id = e.id AND d.status NOT IN ('success', 'failed')
		)
	`

	result, err := r.DB.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purging events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return n, nil
}
