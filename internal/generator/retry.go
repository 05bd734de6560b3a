package generator

import (
	"context"
	"time"
)

// RetryPolicy bounds how long a decoration call may keep trying before the
// fallback value is used.
type RetryPolicy[T any] struct {
	MaxAttempts int
	Delay       time.Duration
	Fallback    func() T

	// OnAttempt observes each failed attempt, e.g. for logging.
	OnAttempt func(attempt int, err error)
}

// Do calls fn until it succeeds or attempts run out. It reports false when
// the fallback was returned. Cancelling ctx ends the wait between attempts.
func (p RetryPolicy[T]) Do(ctx context.Context, fn func(ctx context.Context) (T, error)) (T, bool) {
	attempts := max(p.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, true
		}
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, err)
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return p.fallback(), false
		case <-timer.C:
		}
	}

	return p.fallback(), false
}

func (p RetryPolicy[T]) fallback() T {
	if p.Fallback == nil {
		var zero T
		return zero
	}
	return p.Fallback()
}
