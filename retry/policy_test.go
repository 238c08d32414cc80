package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()

	t.Run("delay follows the schedule", func(t *testing.T) {
		assert.Equal(t, time.Minute, p.Delay(1))
		assert.Equal(t, 5*time.Minute, p.Delay(2))
		assert.Equal(t, 15*time.Minute, p.Delay(3))
		assert.Equal(t, time.Hour, p.Delay(4))
		assert.Equal(t, 2*time.Hour, p.Delay(5))
	})

	t.Run("delay is clamped", func(t *testing.T) {
		assert.Equal(t, time.Minute, p.Delay(0))
		assert.Equal(t, 2*time.Hour, p.Delay(9))
	})

	t.Run("delays never shrink", func(t *testing.T) {
		for k := 2; k <= 8; k++ {
			assert.GreaterOrEqual(t, p.Delay(k), p.Delay(k-1))
		}
	})

	t.Run("retry budget", func(t *testing.T) {
		for k := 1; k < DefaultMaxRetries; k++ {
			assert.True(t, p.ShouldRetry(k), "attempt %d", k)
		}
		assert.False(t, p.ShouldRetry(DefaultMaxRetries))
		assert.False(t, Policy{MaxRetries: 1, Backoff: DefaultBackoff}.ShouldRetry(1))
	})

	t.Run("next at", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, now.Add(15*time.Minute), p.NextAt(3, now))
	})

	t.Run("validate", func(t *testing.T) {
		assert.NoError(t, p.Validate())
		assert.Error(t, Policy{MaxRetries: 0, Backoff: DefaultBackoff}.Validate())
		assert.Error(t, Policy{MaxRetries: 3}.Validate())
		assert.Error(t, Policy{MaxRetries: 3, Backoff: []time.Duration{time.Minute, 0}}.Validate())
	})

	t.Run("default backoff is not shared", func(t *testing.T) {
		q := DefaultPolicy()
		q.Backoff[0] = time.Hour
		assert.Equal(t, time.Minute, DefaultBackoff[0])
	})
}
