package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

/* Connection handling shared by the PostgreSQL repositories
 * Every repository receives the same *sql.DB so a single pool serves the process
 */

// PoolConfig controls the database/sql connection pool
type PoolConfig struct {
	MaxOpenConns   int // 0 = unlimited
	MaxIdleConns   int
	MaxLifeMinutes int
}

// DefaultPoolConfig is 25 open, 5 idle, 5 minute lifetime
var DefaultPoolConfig = PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, MaxLifeMinutes: 5}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, connectionString string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.MaxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(pool.MaxLifeMinutes) * time.Minute)
	}

	return db, nil
}

// Payloads are TEXT, not JSONB: JSONB reorders keys and would break the canonical bytes that get signed
var schema = []string{
	`CREATE TABLE IF NOT EXISTS webhook_subscriptions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		secret TEXT NOT NULL,
		event_types TEXT[] NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		success_count BIGINT NOT NULL DEFAULT 0,
		failure_count BIGINT NOT NULL DEFAULT 0,
		last_triggered_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_owner ON webhook_subscriptions (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_subscriptions_event_types ON webhook_subscriptions USING GIN (event_types)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_retry_at TIMESTAMPTZ,
		response_status INTEGER NOT NULL DEFAULT 0,
		response_body TEXT NOT NULL DEFAULT '',
		last_error TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		claimed_at TIMESTAMPTZ,
		admitted_at TIMESTAMPTZ,
		delivered_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_subscription ON webhook_deliveries (subscription_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_due ON webhook_deliveries (status, next_retry_at)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_event ON webhook_deliveries (event_id)`,
}

// Migrate creates the webhook tables and indexes when missing
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Drop removes the webhook tables (used by tests)
func Drop(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS webhook_deliveries, webhook_events, webhook_subscriptions CASCADE")
	if err != nil {
		return fmt.Errorf("dropping tables: %w", err)
	}
	return nil
}
