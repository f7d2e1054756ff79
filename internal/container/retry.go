// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"time"
)

// RetryWithBackoff retries op up to maxAttempts times with exponential backoff.
// The wait between attempts is interrupted by ctx cancellation.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On retry exhaustion, the last error is returned.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	maxAttempts = max(maxAttempts, 1)

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			timer := time.NewTimer(baseBackoff * time.Duration(1<<(attempt-1)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// RetryTransient runs op up to maxAttempts times while it fails with a transient error.
func RetryTransient[T any](ctx context.Context, maxAttempts int, baseBackoff time.Duration, op func() (T, error)) (T, error) {
	var result T
	err := RetryWithBackoff(ctx, maxAttempts, baseBackoff, func(int) (bool, error) {
		var opErr error
		result, opErr = op()
		return IsTransientError(opErr), opErr
	})
	return result, err
}
