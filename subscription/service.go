package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/webhook/signature"
	"github.com/google/uuid"
)

// UseCase defines the registry operations
type UseCase interface {
	Create(ctx context.Context, ownerID, url string, eventTypes []event.Type, description string) (Subscription, error)
	Update(ctx context.Context, id, ownerID string, patch Patch) (Subscription, error)
	RotateSecret(ctx context.Context, id, ownerID string) (Subscription, error)
	List(ctx context.Context, ownerID string) ([]Subscription, error)
	Get(ctx context.Context, id, ownerID string) (Subscription, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// Patch holds the mutable fields; nil means unchanged
type Patch struct {
	URL         *string
	EventTypes  []event.Type
	Description *string
	Active      *bool
}

/* Service is the subscription registry
 * Secrets leave the registry only from Create and RotateSecret
 */
type Service struct {
	Repo Repository
	Now  func() time.Time
}

// NewService creates a new registry with dependency injection
func NewService(repo Repository) *Service {
	return &Service{
		Repo: repo,
		Now:  time.Now,
	}
}

// Create registers an active subscription with a fresh secret
func (s *Service) Create(ctx context.Context, ownerID, url string, eventTypes []event.Type, description string) (Subscription, error) {
	secret, err := signature.GenerateSecret(signature.DefaultSecretBytes)
	if err != nil {
		return Subscription{}, fmt.Errorf("generating secret: %w", err)
	}

	now := s.Now().UTC()
	sub := Subscription{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		URL:         url,
		Description: description,
		Secret:      secret.String(),
		EventTypes:  dedupe(eventTypes),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := sub.Validate(); err != nil {
		return Subscription{}, err
	}

	if err := s.Repo.Insert(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("inserting subscription: %w", err)
	}

	return sub, nil
}

// Update applies patch to an owned subscription
func (s *Service) Update(ctx context.Context, id, ownerID string, patch Patch) (Subscription, error) {
	sub, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return Subscription{}, err
	}

	if patch.URL != nil {
		sub.URL = *patch.URL
	}
	if patch.EventTypes != nil {
		sub.EventTypes = dedupe(patch.EventTypes)
	}
	if patch.Description != nil {
		sub.Description = *patch.Description
	}
	if patch.Active != nil {
		sub.Active = *patch.Active
	}

	if err := sub.Validate(); err != nil {
		return Subscription{}, err
	}

	sub.UpdatedAt = s.Now().UTC()
	if err := s.Repo.Update(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("updating subscription: %w", err)
	}

	return sub.Redacted(), nil
}

// RotateSecret replaces the secret; the new one is returned once
func (s *Service) RotateSecret(ctx context.Context, id, ownerID string) (Subscription, error) {
	sub, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return Subscription{}, err
	}

	secret, err := signature.GenerateSecret(signature.DefaultSecretBytes)
	if err != nil {
		return Subscription{}, fmt.Errorf("generating secret: %w", err)
	}

	now := s.Now().UTC()
	if err := s.Repo.UpdateSecret(ctx, id, secret.String(), now); err != nil {
		return Subscription{}, fmt.Errorf("updating secret: %w", err)
	}

	sub.Secret = secret.String()
	sub.UpdatedAt = now
	return sub, nil
}

// List returns the owner's subscriptions without secrets
func (s *Service) List(ctx context.Context, ownerID string) ([]Subscription, error) {
	subs, err := s.Repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	for i := range subs {
		subs[i] = subs[i].Redacted()
	}
	return subs, nil
}

// Get returns one owned subscription without its secret
func (s *Service) Get(ctx context.Context, id, ownerID string) (Subscription, error) {
	sub, err := s.owned(ctx, id, ownerID)
	if err != nil {
		return Subscription{}, err
	}
	return sub.Redacted(), nil
}

// Delete removes an owned subscription; scheduled retries fail at their next claim
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.owned(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// owned hides subscriptions of other owners behind ErrNotFound
func (s *Service) owned(ctx context.Context, id, ownerID string) (Subscription, error) {
	sub, err := s.Repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("getting subscription: %w", err)
	}

	if sub.OwnerID != ownerID {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}
