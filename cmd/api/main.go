package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/config"
	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/internal/http/chi"
	"github.com/btwitsvirendra/airavat-webhooks/internal/storage"
	"github.com/btwitsvirendra/airavat-webhooks/metrics"
	"github.com/btwitsvirendra/airavat-webhooks/retry"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/subscription/seed"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/btwitsvirendra/airavat-webhooks/worker"
	"github.com/go-chi/httplog"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* main wires every package together: storage, the HTTP API, the worker pool and the reaper
 * Imports only go downwards: the binaries import the business packages,
 * which import the storage layer
 */
func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := httplog.NewLogger("airavat-webhooks", httplog.Options{
		JSON: true,
	}).Level(cfg.Level())

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close(context.Background())

	if cfg.SubscriptionsSeedFile != "" {
		if err := applySeed(ctx, cfg.SubscriptionsSeedFile, backend.Subscriptions, logger); err != nil {
			return err
		}
	}

	collector := metrics.NewLedgerCollector(backend.Deliveries, backend.Queue, backend.Heartbeats)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		return err
	}
	defer exporter.Shutdown(context.Background())

	dispatcher := dispatch.NewDispatcher(backend.Subscriptions, backend.Deliveries, backend.Events, backend.Queue, logger)

	w := worker.New(backend.Deliveries, backend.Subscriptions, cfg.WebhookTimeout(), logger)
	w.Policy.MaxRetries = cfg.WebhookMaxRetries
	w.Recorder = exporter
	if err := w.Policy.Validate(); err != nil {
		return fmt.Errorf("retry policy: %w", err)
	}

	pool := worker.NewPool(w, backend.Queue, backend.Heartbeats, cfg.WebhookWorkers, cfg.WebhookRateLimit, logger)
	// consumer names must be unique across replicas sharing the stream
	if host, err := os.Hostname(); err == nil && host != "" {
		pool.Name = host
	}

	scheduler := retry.NewScheduler(backend.Deliveries, backend.Events, backend.Queue, logger)
	scheduler.Interval = cfg.ReaperInterval()
	scheduler.ClaimLease = cfg.ClaimLease()
	scheduler.Retention = cfg.Retention()

	r := chi.Handlers(ctx, chi.Services{
		Subscriptions: subscription.NewService(backend.Subscriptions),
		Dispatcher:    dispatcher,
		Deliveries:    webhook.NewService(backend.Deliveries),
		Collector:     collector,
		Metrics:       exporter.ServeHTTP(),
	}, logger)

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		errShutdown := make(chan error, 1)
		go shutdown(srv, gctx, errShutdown)

		logger.Info().
			Str("port", cfg.Port).
			Str("storage", cfg.StorageDriver).
			Int("workers", cfg.WebhookWorkers).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return <-errShutdown
	})

	return g.Wait()
}

func applySeed(ctx context.Context, path string, repo subscription.Repository, logger zerolog.Logger) error {
	loader := seed.NewLoader()
	if err := loader.Load(path); err != nil {
		return err
	}

	res, err := loader.Apply(ctx, repo, time.Now())
	if err != nil {
		return fmt.Errorf("applying seed file: %w", err)
	}

	logger.Info().
		Str("file", path).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Msg("subscriptions seeded")
	return nil
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server: %w", err)
	}
}
