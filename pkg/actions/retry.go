package actions

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn up to attempts times. Before retry n it waits n times the
// base delay, so the schedule grows linearly. The last error is returned
// when every attempt fails; ctx cancellation aborts the wait.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * baseDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
