package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/groupledger/internal/metrics"
)

// ErrStaleWrite is returned by a single read-modify-write attempt whose
// version check failed. Retry turns it into another attempt.
var ErrStaleWrite = errors.New("stale write")

// retryBackoff is the pause before the n-th retry (n starting at 0).
func retryBackoff(n int) time.Duration {
	return time.Duration(n+1) * 5 * time.Millisecond
}

// Retry runs attempt until it returns something other than ErrStaleWrite,
// at most maxRetries times (DefaultMaxRetries when <= 0). When every attempt
// was stale it returns ErrConflict.
func Retry(ctx context.Context, maxRetries int, attempt func() error) error {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	for n := 0; n < maxRetries; n++ {
		err := attempt()
		if !errors.Is(err, ErrStaleWrite) {
			return err
		}
		if n == maxRetries-1 {
			break
		}
		metrics.StoreConflictRetries.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(n)):
		}
	}
	return ErrConflict
}
