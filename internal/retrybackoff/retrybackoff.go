// Package retrybackoff wraps cenkalti/backoff/v4 with the bounded,
// classification-aware retry policy: only
// ProviderTransient and ProviderRateLimited errors are retried, and
// only up to a caller-supplied retry count.
package retrybackoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/concierge/orchestrator/pkg/models"
)

// Policy configures a bounded retry loop.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Do runs fn, retrying while the error is classified Retryable per
// pkg/models, up to MaxRetries retries after the first attempt (at most
// MaxRetries+1 calls), with exponential backoff starting at
// InitialDelay. It respects ctx cancellation.
// Returns the last error if the retries are exhausted.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by attempt count, not elapsed time

	bounded := backoff.WithMaxRetries(b, uint64(p.MaxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	var lastErr error
	op := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !models.KindOf(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, withCtx); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
