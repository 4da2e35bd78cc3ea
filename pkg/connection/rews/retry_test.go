package rews

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func delays(t *testing.T, r Retryer, attempts int) []time.Duration {
	t.Helper()
	out := make([]time.Duration, 0, attempts)
	for attempt := 0; attempt < attempts; attempt++ {
		d, ok := r.NextDelay(attempt, nil)
		require.True(t, ok, "attempt %d", attempt)
		out = append(out, d)
	}
	return out
}

func TestExponentialBackoffRetryer(t *testing.T) {
	t.Run("notification channel pacing", func(t *testing.T) {
		r := NewExponentialBackoffRetryer()

		assert.Equal(t, []time.Duration{
			3 * time.Second,
			4500 * time.Millisecond,
			6750 * time.Millisecond,
			10125 * time.Millisecond,
			15187500 * time.Microsecond,
		}, delays(t, r, 5))

		d, ok := r.NextDelay(5, nil)
		assert.False(t, ok)
		assert.Zero(t, d)
	})

	t.Run("capped and unbounded", func(t *testing.T) {
		r := &ExponentialBackoffRetryer{InitialDelay: 10 * time.Second, MaxDelay: 30 * time.Second, Multiplier: 1.5}

		assert.Equal(t, []time.Duration{
			10 * time.Second, 15 * time.Second, 22500 * time.Millisecond, 30 * time.Second, 30 * time.Second,
		}, delays(t, r, 5))

		_, ok := r.NextDelay(1000, nil)
		assert.True(t, ok)
	})

	t.Run("jitter stays within the factor", func(t *testing.T) {
		r := NewExponentialBackoffRetryer()
		r.Jitter = true

		for i := 0; i < 100; i++ {
			d, ok := r.NextDelay(0, nil)
			require.True(t, ok)
			assert.InDelta(t, float64(3*time.Second), float64(d), float64(901*time.Millisecond))
		}
	})

	t.Run("reset keeps the sequence", func(t *testing.T) {
		r := NewExponentialBackoffRetryer()
		before, _ := r.NextDelay(3, nil)
		r.Reset()
		after, _ := r.NextDelay(3, nil)
		assert.Equal(t, before, after)
	})
}

func TestFixedDelayRetryer(t *testing.T) {
	r := NewFixedDelayRetryer(20*time.Millisecond, 2)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond}, delays(t, r, 2))

	_, ok := r.NextDelay(2, nil)
	assert.False(t, ok)

	unbounded := NewFixedDelayRetryer(time.Second, 0)
	assert.Len(t, delays(t, unbounded, 50), 50)
}
