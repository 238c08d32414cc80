package memstore

import (
	"sync"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
	"github.com/btwitsvirendra/airavat-webhooks/webhook"
)

/* Store is an in-process backend for every repository, the queue and heartbeats
 * Used by tests and by STORAGE_DRIVER=memory; nothing survives a restart
 * A single lock guards all tables so cross-table reads (event purge) are consistent
 */
type Store struct {
	mu sync.RWMutex

	Subscriptions *Subscriptions
	Deliveries    *Deliveries
	Events        *Events
	Queue         *Queue
}

// New creates an empty store
func New() *Store {
	s := &Store{}
	s.Subscriptions = &Subscriptions{store: s, rows: make(map[string]subscription.Subscription)}
	s.Deliveries = &Deliveries{store: s, rows: make(map[string]webhook.Delivery)}
	s.Events = &Events{store: s, rows: make(map[string]event.Envelope)}
	s.Queue = newQueue()
	return s
}
