package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UseCase defines the operations business code uses to publish events
type UseCase interface {
	Trigger(ctx context.Context, t event.Type, data any, scope Scope) (Result, error)
	TriggerNamed(ctx context.Context, name string, data any, scope Scope) (Result, error)
	SendTest(ctx context.Context, subscriptionID, ownerID string) (Result, error)
}

// Scope narrows a trigger to one tenant; the zero value reaches every owner
type Scope struct {
	OwnerID string
}

// Result reports what a trigger persisted
type Result struct {
	EventID         string `json:"event_id"`
	DispatchedCount int    `json:"dispatched_count"`
}

/* Dispatcher fans one event out to every matching subscription
 * It returns once the deliveries are persisted; sending happens in the worker pool
 */
type Dispatcher struct {
	Subscriptions subscription.Repository
	Deliveries    webhook.Writer
	Events        event.Log
	Queue         webhook.Queue
	Logger        zerolog.Logger
	Now           func() time.Time
}

// NewDispatcher creates a dispatcher with dependency injection
func NewDispatcher(subs subscription.Repository, deliveries webhook.Writer, events event.Log, queue webhook.Queue, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Subscriptions: subs,
		Deliveries:    deliveries,
		Events:        events,
		Queue:         queue,
		Logger:        logger,
		Now:           time.Now,
	}
}

// Trigger records the event and one PENDING delivery per active subscription to t
func (d *Dispatcher) Trigger(ctx context.Context, t event.Type, data any, scope Scope) (Result, error) {
	now := d.Now().UTC()

	env, err := event.NewEnvelope(t, data, scope.OwnerID, now)
	if err != nil {
		return Result{}, fmt.Errorf("building envelope: %w", err)
	}

	subs, err := d.Subscriptions.ListActiveForEvent(ctx, t, scope.OwnerID)
	if err != nil {
		return Result{}, fmt.Errorf("listing subscriptions: %w", err)
	}

	if err := d.Events.Append(ctx, env); err != nil {
		return Result{}, fmt.Errorf("appending event: %w", err)
	}

	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		id, err := d.create(ctx, sub.ID, env, now)
		if err != nil {
			return Result{}, err
		}
		ids = append(ids, id)

		if err := d.Subscriptions.TouchTriggered(ctx, sub.ID, now); err != nil {
			d.Logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("updating last triggered")
		}
	}

	d.enqueue(ctx, ids)

	d.Logger.Info().
		Str("event_id", env.ID).
		Str("event_type", t.String()).
		Str("owner_id", scope.OwnerID).
		Int("dispatched", len(ids)).
		Msg("event dispatched")

	return Result{EventID: env.ID, DispatchedCount: len(ids)}, nil
}

// TriggerNamed is Trigger for callers holding a wire name; unknown names dispatch nothing
func (d *Dispatcher) TriggerNamed(ctx context.Context, name string, data any, scope Scope) (Result, error) {
	t, err := event.ParseType(name)
	if err != nil {
		d.Logger.Warn().Err(err).Str("event_type", name).Msg("ignoring unknown event type")
		return Result{}, nil
	}
	return d.Trigger(ctx, t, data, scope)
}

// testData is the payload of a webhook.test delivery
type testData struct {
	SubscriptionID string `json:"subscription_id"`
	Message        string `json:"message"`
}

// SendTest queues a webhook.test delivery to one subscription regardless of its event types
func (d *Dispatcher) SendTest(ctx context.Context, subscriptionID, ownerID string) (Result, error) {
	sub, err := d.Subscriptions.Get(ctx, subscriptionID)
	if err != nil {
		return Result{}, fmt.Errorf("getting subscription: %w", err)
	}
	if sub.OwnerID != ownerID {
		return Result{}, fmt.Errorf("getting subscription: %w", subscription.ErrNotFound)
	}

	now := d.Now().UTC()
	env, err := event.NewEnvelope(event.WebhookTest, testData{
		SubscriptionID: sub.ID,
		Message:        "This is a test webhook",
	}, ownerID, now)
	if err != nil {
		return Result{}, fmt.Errorf("building envelope: %w", err)
	}

	if err := d.Events.Append(ctx, env); err != nil {
		return Result{}, fmt.Errorf("appending event: %w", err)
	}

	id, err := d.create(ctx, sub.ID, env, now)
	if err != nil {
		return Result{}, err
	}
	d.enqueue(ctx, []string{id})

	return Result{EventID: env.ID, DispatchedCount: 1}, nil
}

/* create persists one PENDING delivery
 * admitted_at is stamped because the dispatcher enqueues it itself;
 * if that enqueue is lost the reaper admits it once the lease runs out
 */
func (d *Dispatcher) create(ctx context.Context, subscriptionID string, env event.Envelope, now time.Time) (string, error) {
	admitted := now
	del := webhook.Delivery{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		EventID:        env.ID,
		EventType:      env.Type.String(),
		Payload:        env.Payload,
		OccurredAt:     env.Timestamp,
		Status:         webhook.Pending,
		CreatedAt:      now,
		UpdatedAt:      now,
		AdmittedAt:     &admitted,
	}

	if err := d.Deliveries.Create(ctx, del); err != nil {
		return "", fmt.Errorf("creating delivery: %w", err)
	}
	return del.ID, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, ids []string) {
	var errs []error
	for _, id := range ids {
		if err := d.Queue.Enqueue(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delivery %s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		d.Logger.Warn().Err(errors.Join(errs...)).Int("failed", len(errs)).Msg("enqueueing deliveries, reaper will retry")
	}
}
