package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) IsRetryable() bool {
	return true
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func NewRetryableError(err error) RetryableError {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  1 * time.Minute,
	}
}

func newBackOff(ctx context.Context, policy Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	// Zero disables the elapsed-time cap; attempts are bounded below.
	exp.MaxElapsedTime = policy.MaxElapsedTime

	b := backoff.WithContext(exp, ctx)
	return backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
}

// nextBackoffDelay mirrors the exponential schedule for the onRetry
// callback without advancing the real backoff state.
func nextBackoffDelay(attempt int, policy Policy) time.Duration {
	d := float64(policy.InitialInterval) * math.Pow(policy.Multiplier, float64(attempt))
	if d > float64(policy.MaxInterval) {
		return policy.MaxInterval
	}
	return time.Duration(d)
}

// classify maps errors onto backoff semantics. FatalError stops the loop,
// anything else is retried.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return backoff.Permanent(err)
	}

	var retryableErr RetryableError
	if !errors.As(err, &retryableErr) {
		return NewRetryableError(err)
	}

	return err
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := newBackOff(ctx, policy)

	attempt := 0
	operation := func() error {
		attempt++
		err := classify(fn())

		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return err
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			nextDelay := nextBackoffDelay(attempt, policy)
			onRetry(attempt, err, nextDelay)
		}

		return err
	}

	return backoff.Retry(operation, b)
}
