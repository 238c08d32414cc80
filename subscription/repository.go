package subscription

import (
	"context"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
)

// Reader provides read operations for subscriptions
type Reader interface {
	Get(ctx context.Context, id string) (Subscription, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Subscription, error)
	/* ListActiveForEvent returns active subscriptions to t
	 * An empty ownerID matches every owner
	 */
	ListActiveForEvent(ctx context.Context, t event.Type, ownerID string) ([]Subscription, error)
}

// Writer provides write operations for subscriptions
type Writer interface {
	Insert(ctx context.Context, s Subscription) error
	// Update replaces url, description, event types and active flag
	Update(ctx context.Context, s Subscription) error
	UpdateSecret(ctx context.Context, id, secret string, at time.Time) error
	Delete(ctx context.Context, id string) error
	// IncrementCounters adds to the success and failure counters in one update
	IncrementCounters(ctx context.Context, id string, success, failure int64) error
	TouchTriggered(ctx context.Context, id string, at time.Time) error
}

type Repository interface {
	Reader
	Writer
}
