package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/btwitsvirendra/airavat-webhooks/retry"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/payload"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/signature"
	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 30 * time.Second
	UserAgent      = "Airavat-Webhooks/1.0"

	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// Recorder receives one observation per finished attempt
type Recorder interface {
	RecordAttempt(ctx context.Context, eventType string, status webhook.Status, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, string, webhook.Status, time.Duration) {}

/* Worker performs one claimed delivery attempt end to end
 * Uses pointer semantics as it's an API, not data
 */
type Worker struct {
	Deliveries    webhook.Repository
	Subscriptions subscription.Repository
	Client        *http.Client
	Policy        retry.Policy
	Recorder      Recorder
	Logger        zerolog.Logger
	Now           func() time.Time
}

// New creates a worker with the default policy and a client bounded by timeout
func New(deliveries webhook.Repository, subs subscription.Repository, timeout time.Duration, logger zerolog.Logger) *Worker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Worker{
		Deliveries:    deliveries,
		Subscriptions: subs,
		Client:        &http.Client{Timeout: timeout},
		Policy:        retry.DefaultPolicy(),
		Recorder:      nopRecorder{},
		Logger:        logger,
		Now:           time.Now,
	}
}

/* Process claims the delivery, sends it once and records the outcome
 * It never returns an error: failures end up in the ledger or the log.
 * When the delivery cannot be claimed the stored status is returned untouched
 */
func (w *Worker) Process(ctx context.Context, deliveryID string) (status webhook.Status) {
	log := w.Logger.With().Str("delivery_id", deliveryID).Logger()

	defer func() {
		if r := recover(); r != nil {
			// the claim stays until the reaper releases it
			log.Error().Interface("panic", r).Msg("delivery attempt panicked")
			status = webhook.Delivering
		}
	}()

	d, ok, err := w.Deliveries.Claim(ctx, deliveryID, w.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("claiming delivery")
		return w.current(ctx, deliveryID)
	}
	if !ok {
		log.Debug().Msg("delivery not claimable")
		return w.current(ctx, deliveryID)
	}

	sub, err := w.Subscriptions.Get(ctx, d.SubscriptionID)
	switch {
	case errors.Is(err, subscription.ErrNotFound) || (err == nil && !sub.Active):
		return w.complete(ctx, log, d, webhook.Outcome{
			Status: webhook.Failed,
			Error:  webhook.ReasonSubscriptionInactive,
			At:     w.Now().UTC(),
		})
	case err != nil:
		log.Error().Err(err).Str("subscription_id", d.SubscriptionID).Msg("loading subscription, leaving claim to the reaper")
		return webhook.Delivering
	}

	outcome := w.attempt(ctx, d, sub)
	status = w.complete(ctx, log, d, outcome)

	var success, failure int64 = 0, 1
	if outcome.Status == webhook.Success {
		success, failure = 1, 0
	}
	if err := w.Subscriptions.IncrementCounters(ctx, sub.ID, success, failure); err != nil {
		log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("updating subscription counters")
	}
	w.Recorder.RecordAttempt(ctx, d.EventType, outcome.Status, outcome.Duration)

	return status
}

// attempt signs and POSTs the body and classifies the response
func (w *Worker) attempt(ctx context.Context, d webhook.Delivery, sub subscription.Subscription) webhook.Outcome {
	outcome := webhook.Outcome{CountAttempt: true}

	body, err := w.body(d)
	if err != nil {
		// a stored payload that cannot be encoded never will be
		outcome.Status = webhook.Failed
		outcome.Error = err.Error()
		outcome.At = w.Now().UTC()
		return outcome
	}

	sentAt := w.Now().UTC()
	sig, err := signature.SignAt(body, sub.Secret, sentAt)
	if err != nil {
		outcome.Status = webhook.Failed
		outcome.Error = fmt.Sprintf("signing payload: %v", err)
		outcome.At = w.Now().UTC()
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		outcome.Status = webhook.Failed
		outcome.Error = fmt.Sprintf("building request: %v", err)
		outcome.At = w.Now().UTC()
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderEvent, d.EventType)
	req.Header.Set(HeaderDelivery, d.ID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(sig.Timestamp, 10))
	req.Header.Set(signature.Header, sig.String())

	start := time.Now()
	resp, err := w.Client.Do(req)
	if err != nil {
		outcome.Duration = time.Since(start)
		outcome.Error = err.Error()
		return w.classify(d, outcome)
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, webhook.ResponseExcerptLimit+utf8.UTFMax))
	outcome.Duration = time.Since(start)
	outcome.ResponseStatus = resp.StatusCode
	outcome.ResponseBody = webhook.Excerpt(excerpt)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Status = webhook.Success
		outcome.At = w.Now().UTC()
		return outcome
	}

	outcome.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	return w.classify(d, outcome)
}

// classify turns a failed attempt into RETRYING or FAILED
func (w *Worker) classify(d webhook.Delivery, outcome webhook.Outcome) webhook.Outcome {
	outcome.At = w.Now().UTC()

	attempts := d.Attempts + 1
	if !w.Policy.ShouldRetry(attempts) {
		outcome.Status = webhook.Failed
		return outcome
	}

	next := w.Policy.NextAt(attempts, outcome.At)
	outcome.Status = webhook.Retrying
	outcome.NextRetryAt = &next
	return outcome
}

func (w *Worker) body(d webhook.Delivery) ([]byte, error) {
	b, err := payload.New(d.EventType, d.OccurredAt, d.Payload)
	if err != nil {
		return nil, fmt.Errorf("building body: %w", err)
	}
	raw, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return raw, nil
}

func (w *Worker) complete(ctx context.Context, log zerolog.Logger, d webhook.Delivery, outcome webhook.Outcome) webhook.Status {
	attempts := d.Attempts
	if outcome.CountAttempt {
		attempts++
	}

	if err := w.Deliveries.Complete(ctx, d.ID, outcome); err != nil {
		log.Error().Err(err).Str("outcome", outcome.Status.String()).Msg("recording delivery outcome")
		return webhook.Delivering
	}

	ev := log.Info()
	if outcome.Status != webhook.Success {
		ev = log.Warn().Str("error", outcome.Error)
	}
	ev.Str("subscription_id", d.SubscriptionID).
		Str("event_type", d.EventType).
		Str("from", webhook.Delivering.String()).
		Str("to", outcome.Status.String()).
		Int("attempts", attempts).
		Int("response_status", outcome.ResponseStatus).
		Dur("duration", outcome.Duration).
		Msg("delivery transition")

	return outcome.Status
}

func (w *Worker) current(ctx context.Context, id string) webhook.Status {
	d, err := w.Deliveries.Get(ctx, id)
	if err != nil {
		return 0
	}
	return d.Status
}
