package discovery

import (
	"context"
	"math"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// maxRetryDelay caps a single backoff sleep.
const maxRetryDelay = 5 * time.Minute

// retryDelay is unit × base^attempt, with attempt counting from 1, capped at
// maxRetryDelay.
func retryDelay(unit time.Duration, base float64, attempt int) time.Duration {
	if unit <= 0 || attempt <= 0 {
		return 0
	}
	if base <= 0 {
		base = 1
	}
	delay := float64(unit) * math.Pow(base, float64(attempt))
	if math.IsNaN(delay) || delay >= float64(maxRetryDelay) {
		return maxRetryDelay
	}
	return time.Duration(delay)
}
