package util

import (
	"context"
	"errors"
	"time"
)

// RetryBackoffWithContext calls fn up to maxTries times, sleeping between
// attempts with exponential backoff starting at base (base, 2*base, 4*base, ...).
// Used for calls to external model capabilities where transient failures are
// expected. Returns ctx.Err() if the context is canceled during a wait.
func RetryBackoffWithContext[T any](ctx context.Context, maxTries int, base time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	var lastErr error
	var zero T
	delay := base
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err

		if i == maxTries-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return zero, lastErr
}
