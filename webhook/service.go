package webhook

import (
	"context"
	"fmt"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// UseCase defines the ledger queries exposed to the management API
type UseCase interface {
	List(ctx context.Context, subscriptionID string, page Page) (PageResult, error)
	Get(ctx context.Context, id string) (Delivery, error)
}

// Page selects a window of a subscription's deliveries, newest first
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum limit
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PageResult is one page plus the total number of deliveries
type PageResult struct {
	Deliveries []Delivery
	Total      int
	Limit      int
	Offset     int
}

/* Service is the read side of the delivery ledger
 * Uses pointer semantics as it's an API, not data
 * Transitions are written by the delivery worker through Writer
 */
type Service struct {
	Repo Repository
}

// NewService creates a new ledger service with dependency injection
func NewService(repo Repository) *Service {
	return &Service{
		Repo: repo,
	}
}

// List returns a page of the subscription's delivery history
func (s *Service) List(ctx context.Context, subscriptionID string, page Page) (PageResult, error) {
	page = page.Normalize()

	deliveries, err := s.Repo.ListBySubscription(ctx, subscriptionID, page.Limit, page.Offset)
	if err != nil {
		return PageResult{}, fmt.Errorf("listing deliveries: %w", err)
	}

	total, err := s.Repo.CountBySubscription(ctx, subscriptionID)
	if err != nil {
		return PageResult{}, fmt.Errorf("counting deliveries: %w", err)
	}

	return PageResult{
		Deliveries: deliveries,
		Total:      total,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}, nil
}

// Get returns a single delivery
func (s *Service) Get(ctx context.Context, id string) (Delivery, error) {
	d, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	return d, nil
}
