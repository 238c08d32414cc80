package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/subscription"
)

// Subscriptions implements subscription.Repository
type Subscriptions struct {
	store *Store
	rows  map[string]subscription.Subscription
}

func clone(s subscription.Subscription) subscription.Subscription {
	s.EventTypes = slices.Clone(s.EventTypes)
	if s.LastTriggeredAt != nil {
		at := *s.LastTriggeredAt
		s.LastTriggeredAt = &at
	}
	return s
}

func (r *Subscriptions) Get(_ context.Context, id string) (subscription.Subscription, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.rows[id]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	return clone(s), nil
}

func (r *Subscriptions) ListByOwner(_ context.Context, ownerID string) ([]subscription.Subscription, error) {
	return r.filter(func(s subscription.Subscription) bool { return s.OwnerID == ownerID }), nil
}

func (r *Subscriptions) ListActiveForEvent(_ context.Context, t event.Type, ownerID string) ([]subscription.Subscription, error) {
	return r.filter(func(s subscription.Subscription) bool {
		return s.Active && s.Subscribes(t) && (ownerID == "" || s.OwnerID == ownerID)
	}), nil
}

func (r *Subscriptions) filter(keep func(subscription.Subscription) bool) []subscription.Subscription {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []subscription.Subscription
	for _, s := range r.rows {
		if keep(s) {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Subscriptions) Insert(_ context.Context, s subscription.Subscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.rows[s.ID] = clone(s)
	return nil
}

func (r *Subscriptions) Update(_ context.Context, s subscription.Subscription) error {
	return r.mutate(s.ID, func(cur *subscription.Subscription) {
		cur.URL = s.URL
		cur.Description = s.Description
		cur.EventTypes = slices.Clone(s.EventTypes)
		cur.Active = s.Active
		cur.UpdatedAt = s.UpdatedAt
	})
}

func (r *Subscriptions) UpdateSecret(_ context.Context, id, secret string, at time.Time) error {
	return r.mutate(id, func(cur *subscription.Subscription) {
		cur.Secret = secret
		cur.UpdatedAt = at
	})
}

func (r *Subscriptions) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.rows[id]; !ok {
		return subscription.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *Subscriptions) IncrementCounters(_ context.Context, id string, success, failure int64) error {
	return r.mutate(id, func(cur *subscription.Subscription) {
		cur.SuccessCount += success
		cur.FailureCount += failure
	})
}

func (r *Subscriptions) TouchTriggered(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(cur *subscription.Subscription) {
		cur.LastTriggeredAt = &at
	})
}

func (r *Subscriptions) mutate(id string, fn func(*subscription.Subscription)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return subscription.ErrNotFound
	}
	fn(&s)
	r.rows[id] = s
	return nil
}
