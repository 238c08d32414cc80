package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/btwitsvirendra/airavat-webhooks/webhook/payload"
	"github.com/google/uuid"
)

/* Envelope is one immutable business occurrence
 * It is fanned out to zero or more subscriptions and never mutated afterwards
 */
type Envelope struct {
	ID        string
	Type      Type
	OwnerID   string // empty when the event is not tenant scoped
	Timestamp time.Time
	Payload   json.RawMessage // canonical JSON
}

// ErrNotFound is returned by Log implementations for unknown envelope ids
var ErrNotFound = errors.New("event not found")

// NewEnvelope builds an envelope with a fresh id and the canonical encoding of data
func NewEnvelope(t Type, data any, ownerID string, now time.Time) (Envelope, error) {
	if !t.Valid() {
		return Envelope{}, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling event data: %w", err)
	}
	canonical, err := payload.Canonicalize(raw)
	if err != nil {
		return Envelope{}, fmt.Errorf("canonicalizing event data: %w", err)
	}

	return Envelope{
		ID:        uuid.New().String(),
		Type:      t,
		OwnerID:   ownerID,
		Timestamp: now.UTC(),
		Payload:   canonical,
	}, nil
}

/* Log is the append-only event store
 * Envelopes are removed only by PurgeSettled once no live delivery references them
 */
type Log interface {
	Append(ctx context.Context, env Envelope) error
	Get(ctx context.Context, id string) (Envelope, error)
	// PurgeSettled deletes envelopes older than before whose deliveries are all terminal
	PurgeSettled(ctx context.Context, before time.Time) (int64, error)
}
