package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
)

// Events implements event.Log
type Events struct {
	store *Store
	rows  map[string]event.Envelope
}

func (r *Events) Append(_ context.Context, env event.Envelope) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	env.Payload = slices.Clone(env.Payload)
	r.rows[env.ID] = env
	return nil
}

func (r *Events) Get(_ context.Context, id string) (event.Envelope, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	env, ok := r.rows[id]
	if !ok {
		return event.Envelope{}, event.ErrNotFound
	}
	env.Payload = slices.Clone(env.Payload)
	return env, nil
}

func (r *Events) PurgeSettled(_ context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	live := make(map[string]bool)
	for _, d := range r.store.Deliveries.rows {
		if !d.Status.IsFinal() {
			live[d.EventID] = true
		}
	}

	var n int64
	for id, env := range r.rows {
		if env.Timestamp.Before(before) && !live[id] {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
