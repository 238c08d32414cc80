package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval   = 30 * time.Second
	DefaultClaimLease = 5 * time.Minute
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultBatchSize  = 500
)

/* Scheduler is the reaper: it turns persisted retry times back into queue messages
 * It holds no timers of its own, so a restart loses nothing; the first sweep
 * after start picks up everything that became due while the process was down
 */
type Scheduler struct {
	Deliveries webhook.Writer
	Events     event.Log
	Queue      webhook.Queue
	Logger     zerolog.Logger

	Interval   time.Duration
	ClaimLease time.Duration
	Retention  time.Duration // 0 disables purging
	BatchSize  int
	Now        func() time.Time
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Released         int64
	Admitted         int
	PurgedDeliveries int64
	PurgedEvents     int64
}

// NewScheduler creates a scheduler with default timings
func NewScheduler(deliveries webhook.Writer, events event.Log, queue webhook.Queue, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		Deliveries: deliveries,
		Events:     events,
		Queue:      queue,
		Logger:     logger,
		Interval:   DefaultInterval,
		ClaimLease: DefaultClaimLease,
		Retention:  DefaultRetention,
		BatchSize:  DefaultBatchSize,
		Now:        time.Now,
	}
}

// Run sweeps once immediately and then every Interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Scheduler) sweepAndLog(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("retry sweep failed")
		return
	}
	if res.Released > 0 || res.Admitted > 0 || res.PurgedDeliveries > 0 || res.PurgedEvents > 0 {
		s.Logger.Info().
			Int64("released", res.Released).
			Int("admitted", res.Admitted).
			Int64("purged_deliveries", res.PurgedDeliveries).
			Int64("purged_events", res.PurgedEvents).
			Msg("retry sweep")
	}
}

// Sweep releases abandoned claims, re-enqueues due deliveries and purges settled history
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.Now().UTC()
	leaseBefore := now.Add(-s.ClaimLease)

	released, err := s.Deliveries.ReleaseStale(ctx, leaseBefore, now)
	if err != nil {
		return res, fmt.Errorf("releasing stale claims: %w", err)
	}
	res.Released = released

	ids, err := s.Deliveries.ListDue(ctx, now, leaseBefore, s.BatchSize)
	if err != nil {
		return res, fmt.Errorf("listing due deliveries: %w", err)
	}

	for _, id := range ids {
		ok, err := s.Deliveries.Admit(ctx, id, now, leaseBefore)
		if err != nil {
			return res, fmt.Errorf("admitting delivery %s: %w", id, err)
		}
		if !ok {
			// another sweep took it
			continue
		}
		if err := s.Queue.Enqueue(ctx, id); err != nil {
			// the lease expires and a later sweep tries again
			s.Logger.Warn().Err(err).Str("delivery_id", id).Msg("enqueueing due delivery")
			continue
		}
		res.Admitted++
	}

	if s.Retention <= 0 {
		return res, nil
	}

	cutoff := now.Add(-s.Retention)
	res.PurgedDeliveries, err = s.Deliveries.PurgeTerminal(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("purging deliveries: %w", err)
	}
	res.PurgedEvents, err = s.Events.PurgeSettled(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("purging events: %w", err)
	}

	return res, nil
}
