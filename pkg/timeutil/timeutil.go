package timeutil

import (
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in the given slice, or 0 for an
// empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	for i, d := range durations {
		if i == 0 || d > max {
			max = d
		}
	}
	return max
}

// ExponentialBackoffDelay computes the delay before the next retry attempt,
// given the attempt number (1-indexed), a jitter ceiling, a source of
// randomness and the backoff curve parameters.
//
// delay = min(initial * multiplier^(attempt-1), max) + uniform(0, jitter)
func ExponentialBackoffDelay(attempt int, jitter time.Duration, rng rand.Rand, param BackoffParam) time.Duration {
	exponent := float64(attempt - 1)
	delay := float64(param.initialDuration) * pow(param.multiplier, exponent)
	if max := float64(param.maxDuration); param.maxDuration > 0 && delay > max {
		delay = max
	}
	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}
	return time.Duration(delay)
}

// ComputeJitter returns a uniformly random duration in [0, max), or 0 when
// max is not positive.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

func pow(base float64, exp float64) float64 {
	result := 1.0
	// exp is always a small non-negative integer value in practice (attempt count)
	for i := 0.0; i < exp; i++ {
		result *= base
	}
	return result
}

// Sleeper abstracts time.Sleep so callers can inject a fake in tests.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps using the wall clock.
type RealSleeper struct{}

func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (RealSleeper) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
