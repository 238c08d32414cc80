package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultPoolName          = "deliveries"
	DefaultHeartbeatInterval = 15 * time.Second

	StatusIdle       = "idle"
	StatusProcessing = "processing"
	StatusStopped    = "stopped"
)

/* Pool runs Size consumers over the delivery queue
 * Size is the upper bound on in-flight HTTP calls
 */
type Pool struct {
	Worker     *Worker
	Queue      webhook.Queue
	Heartbeats webhook.Heartbeats
	Logger     zerolog.Logger

	Name              string
	Size              int
	Limiter           *rate.Limiter // nil means unlimited
	HeartbeatInterval time.Duration
	RetryPause        time.Duration
}

// NewPool creates a pool of size consumers; ratePerSecond <= 0 disables limiting
func NewPool(w *Worker, queue webhook.Queue, heartbeats webhook.Heartbeats, size int, ratePerSecond float64, logger zerolog.Logger) *Pool {
	p := &Pool{
		Worker:            w,
		Queue:             queue,
		Heartbeats:        heartbeats,
		Logger:            logger,
		Name:              DefaultPoolName,
		Size:              size,
		HeartbeatInterval: DefaultHeartbeatInterval,
		RetryPause:        time.Second,
	}
	if ratePerSecond > 0 {
		burst := max(1, int(ratePerSecond))
		p.Limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return p
}

// Run blocks until ctx is done and every consumer has finished its current message
func (p *Pool) Run(ctx context.Context) error {
	if p.Size <= 0 {
		return fmt.Errorf("pool size must be positive, got %d", p.Size)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.Size; i++ {
		id := fmt.Sprintf("%s-%d", p.Name, i)
		g.Go(func() error {
			return p.consume(ctx, id)
		})
	}

	p.Logger.Info().Str("pool", p.Name).Int("size", p.Size).Msg("worker pool started")
	err := g.Wait()
	p.Logger.Info().Str("pool", p.Name).Msg("worker pool stopped")
	return err
}

func (p *Pool) consume(ctx context.Context, consumer string) error {
	log := p.Logger.With().Str("worker_id", consumer).Logger()
	var last time.Time

	beat := func(status string, force bool) {
		if p.Heartbeats == nil || (!force && time.Since(last) < p.HeartbeatInterval) {
			return
		}
		// heartbeats outlive ctx so the stopped state is written on shutdown
		if err := p.Heartbeats.SetWorkerHeartbeat(context.WithoutCancel(ctx), p.Name, consumer, status); err != nil {
			log.Warn().Err(err).Msg("writing heartbeat")
			return
		}
		last = time.Now()
	}
	defer beat(StatusStopped, true)

	beat(StatusIdle, true)
	for {
		if ctx.Err() != nil {
			return nil
		}

		msgs, err := p.Queue.Consume(ctx, consumer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("consuming queue")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.RetryPause):
			}
			continue
		}

		if len(msgs) == 0 {
			beat(StatusIdle, false)
			continue
		}

		beat(StatusProcessing, false)
		for _, msg := range msgs {
			if p.Limiter != nil {
				if err := p.Limiter.Wait(ctx); err != nil {
					// unacknowledged messages are redelivered to another consumer
					return nil
				}
			}
			p.handle(ctx, log, msg)
		}
	}
}

// handle processes one message and always acknowledges it; the ledger, not the queue, owns retries
func (p *Pool) handle(ctx context.Context, log zerolog.Logger, msg webhook.Message) {
	// an attempt in flight finishes even when shutdown begins
	actx := context.WithoutCancel(ctx)

	p.Worker.Process(actx, msg.DeliveryID)

	if err := p.Queue.Acknowledge(actx, msg); err != nil {
		log.Warn().Err(err).Str("delivery_id", msg.DeliveryID).Msg("acknowledging message")
	}
}
