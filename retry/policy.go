package retry

import (
	"fmt"
	"time"
)

// DefaultMaxRetries is the attempt budget of a delivery
const DefaultMaxRetries = 5

// DefaultBackoff is indexed by attempts-1: 1m, 5m, 15m, 1h, 2h
var DefaultBackoff = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

/* Policy decides whether a failed delivery gets another attempt and when
 * A delivery that has failed attempts times is retried while attempts < MaxRetries
 */
type Policy struct {
	MaxRetries int
	Backoff    []time.Duration
}

// DefaultPolicy returns the standard five attempt schedule
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		Backoff:    append([]time.Duration(nil), DefaultBackoff...),
	}
}

// Validate checks the policy can schedule every retry it allows
func (p Policy) Validate() error {
	if p.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", p.MaxRetries)
	}
	if len(p.Backoff) == 0 {
		return fmt.Errorf("backoff schedule is empty")
	}
	for i, d := range p.Backoff {
		if d <= 0 {
			return fmt.Errorf("backoff[%d] must be positive, got %s", i, d)
		}
	}
	return nil
}

// ShouldRetry reports whether a delivery with attempts failed attempts is retried
func (p Policy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxRetries
}

// Delay returns Backoff[attempts-1], clamped to the schedule
func (p Policy) Delay(attempts int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	i := attempts - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.Backoff) {
		i = len(p.Backoff) - 1
	}
	return p.Backoff[i]
}

// NextAt is the earliest claim time of the next attempt
func (p Policy) NextAt(attempts int, now time.Time) time.Time {
	return now.Add(p.Delay(attempts))
}
