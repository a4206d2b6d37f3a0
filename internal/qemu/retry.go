package qemu

import (
	"context"
	"time"
)

// retryUntil calls fn repeatedly, sleeping interval between attempts, until
// fn reports done or ctx is cancelled. On done, fn's own error for that final
// attempt is returned (nil if it succeeded) — an earlier transient error
// doesn't outlive the attempt that produced it. lastErr tracks the most
// recent non-nil error only to cover the give-up branch, so callers can
// report "gave up waiting: <cause>" instead of a bare
// "context deadline exceeded".
func retryUntil(ctx context.Context, interval time.Duration, fn func() (done bool, err error)) error {
	var lastErr error
	for {
		done, err := fn()
		if done {
			return err
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}
	}
}
