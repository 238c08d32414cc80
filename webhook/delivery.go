package webhook

import (
	"errors"
	"time"
	"unicode/utf8"
)

// ResponseExcerptLimit caps how much of a subscriber response is kept in the ledger
const ResponseExcerptLimit = 1024

// ReasonSubscriptionInactive is recorded when a delivery is abandoned because its subscription is gone or paused
const ReasonSubscriptionInactive = "SUBSCRIPTION_INACTIVE"

var (
	ErrNotFound   = errors.New("delivery not found")
	ErrNotClaimed = errors.New("delivery is not claimed")
)

/* Delivery is one attempt-tracked send of one event to one subscription
 * Uses value semantics as it represents data, not behavior
 */
type Delivery struct {
	ID             string
	SubscriptionID string
	EventID        string
	EventType      string
	Payload        []byte
	OccurredAt     time.Time
	Status         Status
	Attempts       int
	NextRetryAt    *time.Time
	ResponseStatus int
	ResponseBody   string
	LastError      string
	Duration       time.Duration
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClaimedAt      *time.Time
	AdmittedAt     *time.Time
	DeliveredAt    *time.Time
}

/* Outcome is the result of one claimed attempt, written back in a single update
 * Only a DELIVERING row accepts an outcome
 */
type Outcome struct {
	Status         Status
	CountAttempt   bool
	ResponseStatus int
	ResponseBody   string
	Error          string
	Duration       time.Duration
	NextRetryAt    *time.Time
	At             time.Time
}

// Validate checks that the outcome moves a claimed delivery somewhere legal
func (o Outcome) Validate() error {
	if !Delivering.CanTransition(o.Status) {
		return errors.New("outcome must be success, retrying or failed")
	}
	if o.Status == Retrying && o.NextRetryAt == nil {
		return errors.New("retrying outcome requires next retry time")
	}
	if o.At.IsZero() {
		return errors.New("outcome time is required")
	}
	return nil
}

// Apply folds the outcome into d the way every store does
func (o Outcome) Apply(d *Delivery) {
	d.Status = o.Status
	if o.CountAttempt {
		d.Attempts++
	}
	d.ResponseStatus = o.ResponseStatus
	d.ResponseBody = o.ResponseBody
	d.LastError = o.Error
	d.Duration = o.Duration
	d.NextRetryAt = o.NextRetryAt
	d.ClaimedAt = nil
	d.AdmittedAt = nil
	d.UpdatedAt = o.At
	if o.Status == Success {
		at := o.At
		d.DeliveredAt = &at
	}
}

// Excerpt truncates a response body to ResponseExcerptLimit without splitting a rune
func Excerpt(body []byte) string {
	if len(body) <= ResponseExcerptLimit {
		return string(body)
	}
	cut := body[:ResponseExcerptLimit]
	// only the trailing rune can be split; binary bodies keep the full limit
	for i := len(cut) - 1; i >= 0 && i > len(cut)-utf8.UTFMax; i-- {
		if utf8.RuneStart(cut[i]) {
			if !utf8.FullRune(cut[i:]) {
				cut = cut[:i]
			}
			break
		}
	}
	return string(cut)
}

// Due reports whether d may be claimed at now
func (d Delivery) Due(now time.Time) bool {
	if d.Status != Pending && d.Status != Retrying {
		return false
	}
	if d.NextRetryAt != nil {
		return !d.NextRetryAt.After(now)
	}
	return !d.CreatedAt.After(now)
}
