// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, first one included.
	// Zero is treated as one.
	MaxAttempts uint
	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// Operation is one attempt. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, next time.Duration)

// Predicate reports whether an error is worth another attempt.
type Predicate func(error) bool

// Always retries every error.
func Always(error) bool { return true }

// Do runs op until it succeeds, returns an error rejected by retryable,
// exhausts the policy, or ctx is done. It returns the last error seen,
// or ctx.Err() if the context ended first.
func Do(ctx context.Context, p Policy, retryable Predicate, op Operation, notify Notify) error {
	if retryable == nil {
		retryable = Always
	}
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if attempts > 1 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	}
	b := backoff.WithContext(policy, ctx)

	attempt := 0
	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, next time.Duration) {
			notify(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(operation, b, onRetry)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
