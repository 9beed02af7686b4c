package apperr

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
)

type RetryPolicy struct {
	MaxAttempts int
	Min         time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Min:         500 * time.Millisecond,
		Max:         10 * time.Second,
		Factor:      2,
		Jitter:      true,
	}
}

// Retry runs fn until it succeeds, returns a non retryable error, or the attempts run out.
// Only idempotent read-only queries opt in; wallet prompts and transactions are never retried.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	b := &backoff.Backoff{
		Min:    policy.Min,
		Max:    policy.Max,
		Factor: policy.Factor,
		Jitter: policy.Jitter,
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= policy.MaxAttempts {
			return err
		}
		wait := b.Duration()
		log.Debugf("attempt %d failed with retryable error %v, retry in %s", attempt, err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
