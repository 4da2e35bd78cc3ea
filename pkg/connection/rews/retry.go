package rews

import (
	"math"
	"math/rand"
	"time"

	"github.com/collabhub/notifyclient/pkg/constants"
)

// Retryer paces reconnection attempts.
type Retryer interface {
	// NextDelay is asked before attempt, counted from 0 since the channel was
	// last open. lastErr describes the closure. ok is false once the budget
	// is spent.
	NextDelay(attempt int, lastErr error) (delay time.Duration, ok bool)
	// Reset is called whenever the channel opens.
	Reset()
}

// budgetSpent reports whether attempt is past budget. A zero budget is unbounded.
func budgetSpent(attempt, budget int) bool {
	return budget > 0 && attempt >= budget
}

// ExponentialBackoffRetryer waits InitialDelay, then Multiplier times longer
// for every further attempt, never more than MaxDelay.
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxAttempts is the budget since the last open; 0 retries forever.
	MaxAttempts int

	// Jitter spreads each delay by up to JitterFactor in either direction,
	// so clients dropped together do not reconnect together.
	Jitter       bool
	JitterFactor float64
}

// NewExponentialBackoffRetryer returns the notification channel's pacing:
// 3s growing 1.5x per attempt up to 30s, five attempts, no jitter.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: constants.DefaultInitialDelay,
		MaxDelay:     constants.DefaultMaxDelay,
		Multiplier:   constants.DefaultMultiplier,
		MaxAttempts:  constants.DefaultMaxAttempts,
		JitterFactor: 0.3,
	}
}

func (r *ExponentialBackoffRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if budgetSpent(attempt, r.MaxAttempts) {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 {
		delay = math.Min(delay, float64(r.MaxDelay))
	}

	if r.Jitter && r.JitterFactor > 0 {
		//nolint:gosec // pacing only
		delay *= 1 + r.JitterFactor*(2*rand.Float64()-1)
		if delay <= 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset is a no-op: the delay depends on the attempt number alone.
func (r *ExponentialBackoffRetryer) Reset() {}

// FixedDelayRetryer waits Delay before every attempt.
type FixedDelayRetryer struct {
	Delay time.Duration
	// MaxAttempts is the budget since the last open; 0 retries forever.
	MaxAttempts int
}

func NewFixedDelayRetryer(delay time.Duration, maxAttempts int) *FixedDelayRetryer {
	return &FixedDelayRetryer{Delay: delay, MaxAttempts: maxAttempts}
}

func (r *FixedDelayRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if budgetSpent(attempt, r.MaxAttempts) {
		return 0, false
	}
	return r.Delay, true
}

func (r *FixedDelayRetryer) Reset() {}
