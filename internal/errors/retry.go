package errors

import (
	"context"
	"time"
)

// Backoff returns the delay to wait before the given attempt (1-based).
type Backoff func(attempt int) time.Duration

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

// ConstantBackoff waits the same delay before every attempt.
func ConstantBackoff(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// ExponentialBackoff grows the delay by factor per attempt, capped at max.
func ExponentialBackoff(initial time.Duration, factor float64, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		delay := float64(initial)
		for i := 1; i < attempt; i++ {
			delay *= factor
			if max > 0 && time.Duration(delay) >= max {
				return max
			}
		}
		return time.Duration(delay)
	}
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
