//go:build integration

package postgrestest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/internal/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/* Test helpers for PostgreSQL integration tests
 * Following the pattern from: https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

const (
	defaultDatabase = "webhooks"
	defaultUser     = "webhooks"
	defaultPassword = "webhooks"
)

// Container holds the PostgreSQL testcontainer and an open, migrated pool
type Container struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

// Setup starts PostgreSQL, connects and creates the schema
func Setup(t *testing.T, ctx context.Context) (*Container, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(defaultDatabase),
		tcpostgres.WithUsername(defaultUser),
		tcpostgres.WithPassword(defaultPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Open(ctx, connStr, postgres.DefaultPoolConfig)
	require.NoError(t, err)

	require.NoError(t, postgres.Migrate(ctx, db))

	c := &Container{
		Container: pgContainer,
		DB:        db,
		ConnStr:   connStr,
	}

	cleanup := func() {
		_ = db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return c, cleanup
}

// Truncate empties every webhook table between tests
func Truncate(t *testing.T, ctx context.Context, db *sql.DB) {
	t.Helper()

	_, err := db.ExecContext(ctx, "TRUNCATE TABLE webhook_deliveries, webhook_events, webhook_subscriptions")
	require.NoError(t, err)
}

// Count returns the number of rows in table
func Count(t *testing.T, ctx context.Context, db *sql.DB, table string) int {
	t.Helper()

	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	require.NoError(t, err)
	return n
}
