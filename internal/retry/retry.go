package retry

import (
	"context"
	"math"
	"time"
)

// Options configures one Do invocation. Retries is a hard upper bound on the
// number of times the operation runs; it is never exceeded.
type Options struct {
	Retries       int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// OnRetry is an observability hook invoked before each wait. It has no
	// effect on control flow and may be nil.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// Result reports the outcome of a Do invocation, including how many attempts
// were consumed. It is ephemeral; callers inspect it and move on.
type Result[T any] struct {
	Data     T
	Err      error
	Attempts int
}

// Success reports whether the operation eventually succeeded.
func (r Result[T]) Success() bool {
	return r.Err == nil
}

// Do runs op with bounded retries and pure exponential backoff. The wait
// before retry n is InitialDelay * BackoffFactor^(n-1), capped at MaxDelay.
// Do returns on the first success, once the retry budget is exhausted, or when
// ctx is cancelled during a backoff wait. Do knows nothing about what it is
// retrying; it is reused by every source chain.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) Result[T] {
	retries := opts.Retries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		if attempt > 1 {
			wait := backoffDelay(opts, attempt-1)
			if opts.OnRetry != nil {
				opts.OnRetry(attempt, wait, lastErr)
			}
			select {
			case <-ctx.Done():
				var zero T
				return Result[T]{Data: zero, Err: ctx.Err(), Attempts: attempt - 1}
			case <-time.After(wait):
			}
		}

		data, err := op(ctx)
		if err == nil {
			return Result[T]{Data: data, Attempts: attempt}
		}
		lastErr = err
	}

	var zero T
	return Result[T]{Data: zero, Err: lastErr, Attempts: retries}
}

// backoffDelay computes the wait before the (failedAttempts+1)th attempt.
// No jitter: delays are deterministic so whole-chain passes stay reproducible.
func backoffDelay(opts Options, failedAttempts int) time.Duration {
	factor := opts.BackoffFactor
	if factor <= 0 {
		factor = 2
	}
	delay := float64(opts.InitialDelay) * math.Pow(factor, float64(failedAttempts-1))
	if opts.MaxDelay > 0 && delay > float64(opts.MaxDelay) {
		delay = float64(opts.MaxDelay)
	}
	return time.Duration(delay)
}
