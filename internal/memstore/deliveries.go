package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook"
)

// Deliveries implements webhook.Repository with the same conditional transitions as PostgreSQL
type Deliveries struct {
	store *Store
	rows  map[string]webhook.Delivery
}

func cloneDelivery(d webhook.Delivery) webhook.Delivery {
	d.Payload = slices.Clone(d.Payload)
	d.NextRetryAt = clonePtr(d.NextRetryAt)
	d.ClaimedAt = clonePtr(d.ClaimedAt)
	d.AdmittedAt = clonePtr(d.AdmittedAt)
	d.DeliveredAt = clonePtr(d.DeliveredAt)
	return d
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *Deliveries) Create(_ context.Context, d webhook.Delivery) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.rows[d.ID] = cloneDelivery(d)
	return nil
}

func (r *Deliveries) Get(_ context.Context, id string) (webhook.Delivery, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	d, ok := r.rows[id]
	if !ok {
		return webhook.Delivery{}, webhook.ErrNotFound
	}
	return cloneDelivery(d), nil
}

func (r *Deliveries) ListBySubscription(_ context.Context, subscriptionID string, limit, offset int) ([]webhook.Delivery, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := []webhook.Delivery{}
	for _, d := range r.rows {
		if d.SubscriptionID == subscriptionID {
			all = append(all, cloneDelivery(d))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []webhook.Delivery{}, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *Deliveries) CountBySubscription(_ context.Context, subscriptionID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := 0
	for _, d := range r.rows {
		if d.SubscriptionID == subscriptionID {
			n++
		}
	}
	return n, nil
}

func (r *Deliveries) CountByStatus(_ context.Context) (map[webhook.Status]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[webhook.Status]int64)
	for _, d := range r.rows {
		counts[d.Status]++
	}
	return counts, nil
}

func (r *Deliveries) CountDeliveredSince(_ context.Context, since time.Time) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int64
	for _, d := range r.rows {
		if d.Status == webhook.Success && d.DeliveredAt != nil && !d.DeliveredAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *Deliveries) Claim(_ context.Context, id string, now time.Time) (webhook.Delivery, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.rows[id]
	if !ok || !d.Due(now) {
		return webhook.Delivery{}, false, nil
	}

	d.Status = webhook.Delivering
	d.ClaimedAt = &now
	d.UpdatedAt = now
	r.rows[id] = d
	return cloneDelivery(d), true, nil
}

func (r *Deliveries) Complete(_ context.Context, id string, o webhook.Outcome) error {
	if err := o.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.rows[id]
	if !ok || d.Status != webhook.Delivering {
		return webhook.ErrNotClaimed
	}

	o.NextRetryAt = clonePtr(o.NextRetryAt)
	o.Apply(&d)
	r.rows[id] = d
	return nil
}

func (r *Deliveries) ReleaseStale(_ context.Context, claimedBefore, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, d := range r.rows {
		if d.Status != webhook.Delivering || d.ClaimedAt == nil || !d.ClaimedAt.Before(claimedBefore) {
			continue
		}
		due := now
		d.Status = webhook.Retrying
		d.NextRetryAt = &due
		d.ClaimedAt = nil
		d.AdmittedAt = nil
		d.UpdatedAt = now
		r.rows[id] = d
		n++
	}
	return n, nil
}

func (r *Deliveries) ListDue(_ context.Context, now, leaseBefore time.Time, limit int) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var due []webhook.Delivery
	for _, d := range r.rows {
		if d.Due(now) && admittable(d, leaseBefore) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return dueAt(due[i]).Before(dueAt(due[j])) })
	if limit <= 0 || limit > len(due) {
		limit = len(due)
	}

	ids := make([]string, 0, limit)
	for _, d := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (r *Deliveries) Admit(_ context.Context, id string, now, leaseBefore time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	d, ok := r.rows[id]
	if !ok || (d.Status != webhook.Pending && d.Status != webhook.Retrying) || !admittable(d, leaseBefore) {
		return false, nil
	}

	d.AdmittedAt = &now
	r.rows[id] = d
	return true, nil
}

func (r *Deliveries) PurgeTerminal(_ context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, d := range r.rows {
		if d.Status.IsFinal() && d.UpdatedAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func admittable(d webhook.Delivery, leaseBefore time.Time) bool {
	return d.AdmittedAt == nil || d.AdmittedAt.Before(leaseBefore)
}

func dueAt(d webhook.Delivery) time.Time {
	if d.NextRetryAt != nil {
		return *d.NextRetryAt
	}
	return d.CreatedAt
}
