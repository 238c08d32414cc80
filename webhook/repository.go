package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 */

// Reader provides read operations over the delivery ledger
type Reader interface {
	Get(ctx context.Context, id string) (Delivery, error)
	ListBySubscription(ctx context.Context, subscriptionID string, limit, offset int) ([]Delivery, error)
	CountBySubscription(ctx context.Context, subscriptionID string) (int, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
	CountDeliveredSince(ctx context.Context, since time.Time) (int64, error)
}

// Writer provides the state transitions of the delivery ledger
type Writer interface {
	Create(ctx context.Context, d Delivery) error
	/* Claim moves a due Pending/Retrying delivery to Delivering in one conditional update
	 * Returns false when another worker won, the delivery is terminal or not yet due
	 */
	Claim(ctx context.Context, id string, now time.Time) (Delivery, bool, error)
	// Complete writes an outcome to a Delivering row; ErrNotClaimed otherwise
	Complete(ctx context.Context, id string, o Outcome) error
	/* ReleaseStale returns deliveries claimed before claimedBefore to Retrying, due at now
	 * Attempts are left unchanged
	 */
	ReleaseStale(ctx context.Context, claimedBefore, now time.Time) (int64, error)
	// ListDue lists ids claimable at now whose admission lease expired before leaseBefore
	ListDue(ctx context.Context, now, leaseBefore time.Time, limit int) ([]string, error)
	// Admit takes the admission lease so only one sweep re-enqueues a delivery
	Admit(ctx context.Context, id string, now, leaseBefore time.Time) (bool, error)
	// PurgeTerminal deletes Success/Failed deliveries last updated before before
	PurgeTerminal(ctx context.Context, before time.Time) (int64, error)
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	Reader
	Writer
}

// Message is one queued delivery id together with the broker handle needed to acknowledge it
type Message struct {
	ID         string
	DeliveryID string
}

// Queue hands delivery ids to workers
type Queue interface {
	Enqueue(ctx context.Context, deliveryID string) error
	/* Consume blocks briefly until messages are available or ctx is cancelled
	 * An empty slice with nil error means nothing arrived in time
	 */
	Consume(ctx context.Context, consumer string) ([]Message, error)
	// Acknowledge removes a message from the pending set
	Acknowledge(ctx context.Context, msg Message) error
	Len(ctx context.Context) (int64, error)
}

// WorkerHeartbeat represents the liveness record of a pool worker
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Pool          string    `json:"pool"`
	Status        string    `json:"status"` // "idle", "processing"
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Heartbeats tracks which workers are alive
type Heartbeats interface {
	SetWorkerHeartbeat(ctx context.Context, pool, workerID, status string) error
	GetActiveWorkers(ctx context.Context) ([]WorkerHeartbeat, error)
}
