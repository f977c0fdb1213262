package rotation

import (
	"context"
	"time"
)

// Backoff controls retry pacing for transient provider and store failures.
type Backoff struct {
	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the delay between retries.
	Max time.Duration

	// Factor multiplies the delay after each retry.
	Factor float64

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff returns the standard pacing: 1s doubling up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2.0,
	}
}

// Delay returns the pause before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Wait sleeps for the attempt's delay, or returns early when ctx is done.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	sleep := b.sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return sleep(ctx, b.Delay(attempt))
}
