package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/btwitsvirendra/airavat-webhooks/config"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	eventpg "github.com/btwitsvirendra/airavat-webhooks/event/postgres"
	"github.com/btwitsvirendra/airavat-webhooks/internal/memstore"
	"github.com/btwitsvirendra/airavat-webhooks/internal/postgres"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	subscriptionpg "github.com/btwitsvirendra/airavat-webhooks/subscription/postgres"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	webhookpg "github.com/btwitsvirendra/airavat-webhooks/webhook/postgres"
	webhookredis "github.com/btwitsvirendra/airavat-webhooks/webhook/redis"
)

/* Backend bundles the repositories, the queue and heartbeats of one driver
 * The binaries choose the driver from STORAGE_DRIVER; everything above this is driver agnostic
 */
type Backend struct {
	Subscriptions subscription.Repository
	Deliveries    webhook.Repository
	Events        event.Log
	Queue         webhook.Queue
	Heartbeats    webhook.Heartbeats

	closers []func(ctx context.Context) error
}

// Open connects the configured driver; postgres schemas are migrated on the way
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		store := memstore.New()
		return &Backend{
			Subscriptions: store.Subscriptions,
			Deliveries:    store.Deliveries,
			Events:        store.Events,
			Queue:         store.Queue,
			Heartbeats:    store.Queue,
		}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Backend, error) {
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.DefaultPoolConfig)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	queue, err := webhookredis.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{
		Subscriptions: subscriptionpg.NewRepository(db),
		Deliveries:    webhookpg.NewRepository(db),
		Events:        eventpg.NewRepository(db),
		Queue:         queue,
		Heartbeats:    queue,
		closers: []func(context.Context) error{
			queue.Close,
			func(context.Context) error { return closeDB(db) },
		},
	}, nil
}

func closeDB(db *sql.DB) error {
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Close releases every connection the backend holds
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c(ctx))
	}
	return errors.Join(errs...)
}
