package subscription

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
)

var (
	// ErrNotFound is returned for missing subscriptions and for subscriptions owned by someone else
	ErrNotFound = errors.New("subscription not found")

	// ErrInvalid wraps every validation failure
	ErrInvalid          = errors.New("invalid subscription")
	ErrInvalidURL       = errors.New("url must be absolute http or https with a host")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrNoEventTypes     = errors.New("at least one event type is required")
	ErrOwnerRequired    = errors.New("owner is required")
)

/* Subscription is a subscriber's registration for a set of event types
 * Uses value semantics as it represents data, not behavior
 */
type Subscription struct {
	ID              string
	OwnerID         string
	URL             string
	Description     string
	Secret          string
	EventTypes      []event.Type
	Active          bool
	SuccessCount    int64
	FailureCount    int64
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscribes reports whether the subscription wants events of type t
func (s Subscription) Subscribes(t event.Type) bool {
	return slices.Contains(s.EventTypes, t)
}

// Redacted returns a copy without the secret
func (s Subscription) Redacted() Subscription {
	s.Secret = ""
	return s
}

// Validate checks the fields a caller controls
func (s Subscription) Validate() error {
	if s.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalid, ErrOwnerRequired)
	}
	if err := ValidateURL(s.URL); err != nil {
		return err
	}
	if err := ValidateEventTypes(s.EventTypes); err != nil {
		return err
	}
	return nil
}

// ValidateURL accepts absolute http(s) URLs with a host
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w: %v", ErrInvalid, ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %w: %q", ErrInvalid, ErrInvalidURL, raw)
	}
	return nil
}

// ValidateEventTypes requires a non-empty list of catalog types
func ValidateEventTypes(types []event.Type) error {
	if len(types) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, ErrNoEventTypes)
	}
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("%w: %w: %d", ErrInvalid, ErrUnknownEventType, int(t))
		}
	}
	return nil
}

// dedupe keeps the first occurrence of each type
func dedupe(types []event.Type) []event.Type {
	out := make([]event.Type, 0, len(types))
	for _, t := range types {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
