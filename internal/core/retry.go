package core

// retry.go implements the per-batch retry policy on top of
// cenkalti/backoff.
//
// A failed batch is retried at the same offset with exponential backoff:
//
//	delay(n) = min(InitialDelay * Multiplier^(n-1), MaxDelay)
//
// optionally jittered by ±50%. The offset loop never waits on a batch's
// success to advance, so a batch that keeps failing ends in
// ErrRetriesExhausted instead of being re-issued forever.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/JonMunkholm/tablexport/internal/config"
)

// ErrRetriesExhausted is returned when every attempt of an operation failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy defines how a failing batch is retried.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool

	// OnRetry, if set, is called before each wait with the failed attempt's
	// error and the delay about to be slept.
	OnRetry func(err error, next time.Duration)
}

// RetryPolicyFromConfig converts the env configuration. Jitter is always on.
func RetryPolicyFromConfig(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		Jitter:       true,
	}
}

// NewBackOff returns a reset exponential backoff for the policy.
func (p RetryPolicy) NewBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: p.InitialDelay,
		Multiplier:      max(p.Multiplier, 1),
		MaxInterval:     max(p.MaxDelay, p.InitialDelay),
	}
	if p.Jitter {
		b.RandomizationFactor = backoff.DefaultRandomizationFactor
	}
	b.Reset()
	return b
}

// Permanent marks err as not worth retrying. Retry returns the wrapped error
// unchanged.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retry runs op until it succeeds, returns a Permanent error, the context is
// done, or MaxAttempts is reached. attempt is 1-based.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	attempts := max(p.MaxAttempts, 1)
	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.NewBackOff()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(p.OnRetry))
	}

	attempt := 0
	permanent := false
	v, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx, attempt)
		var perm *backoff.PermanentError
		permanent = errors.As(err, &perm)
		return v, err
	}, opts...)
	if err == nil {
		return v, nil
	}

	if permanent {
		// The final attempt's permanent error comes back still wrapped.
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return zero, perm.Unwrap()
		}
		return zero, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
}
