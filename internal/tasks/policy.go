package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/zester/internal/shared"
)

// RetryPolicy is the fixed backoff shared by pagination, hydration and downloads.
type RetryPolicy struct {
	// Delay is waited after every transient failure.
	Delay time.Duration
	// MaxRetries bounds consecutive transient failures of one request; negative means unbounded.
	MaxRetries int
}

// wait is swapped out in tests.
var wait = sleepContext

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withRetry runs op until it succeeds or fails with a non-transient error.
// pause is called before each wait with the 1-based retry number.
func withRetry[T any](ctx context.Context, policy RetryPolicy, pause func(attempt int), op func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if !shared.IsTransient(err) {
			return zero, err
		}
		if policy.MaxRetries >= 0 && attempt > policy.MaxRetries {
			return zero, fmt.Errorf("%w after %d attempts: %v", shared.ErrRetriesExhausted, attempt, err)
		}

		pause(attempt)
		if err := wait(ctx, policy.Delay); err != nil {
			return zero, err
		}
	}
}
