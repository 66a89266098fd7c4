// Package retry provides an explicit bounded-retry policy on top of go-retry.
// This is part of the platform layer and contains no business logic.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ErrExhausted is wrapped by Do when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

// BackoffFunc returns the wait before the given retry (1 = wait after the first failure).
type BackoffFunc func(retry int) time.Duration

// Policy bounds a retry loop. MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// Exponential returns base * 2^(retry-1), capped at max. A zero base disables waiting.
func Exponential(base, max time.Duration) BackoffFunc {
	return func(retry int) time.Duration {
		if base <= 0 || retry <= 0 {
			return 0
		}
		d := base
		for i := 1; i < retry; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// NewPolicy builds an exponential policy. Attempts below one are raised to one.
func NewPolicy(maxAttempts int, base, max time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{MaxAttempts: maxAttempts, Backoff: Exponential(base, max)}
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Retryable marks err as transient. Errors not marked stop the loop immediately.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. fn receives the 1-based attempt number. The
// returned count is the number of attempts made.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = func(int) time.Duration { return 0 }
	}

	attempts := 0
	b := goretry.BackoffFunc(func() (time.Duration, bool) {
		if attempts >= maxAttempts {
			return 0, true
		}
		return backoff(attempts), false
	})

	var last error
	err := goretry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		last = fn(ctx, attempts)
		var te *transientError
		if errors.As(last, &te) {
			return goretry.RetryableError(te.err)
		}
		return last
	})
	switch {
	case err == nil:
		return attempts, nil
	case !IsRetryable(last):
		return attempts, err
	case attempts >= maxAttempts:
		var te *transientError
		errors.As(last, &te)
		return attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, te.err)
	default:
		// context ended during a backoff wait
		return attempts, err
	}
}
