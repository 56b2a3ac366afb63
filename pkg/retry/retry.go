// Package retry runs an operation a bounded number of times with a linear
// backoff between failed attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultStep is the backoff increment between attempts.
const DefaultStep = 100 * time.Millisecond

// ExhaustedError is returned when every attempt failed. Err is the failure of
// the final attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// LinearBackOff waits n*Step after the n-th failure, counting from zero, so
// the first retry is immediate.
type LinearBackOff struct {
	Step     time.Duration
	failures int
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	next := time.Duration(b.failures) * b.Step
	b.failures++
	return next
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() {
	b.failures = 0
}

type options struct {
	step   time.Duration
	notify func(attempt int, err error, wait time.Duration)
}

// Option configures Run.
type Option func(*options)

// WithStep overrides DefaultStep.
func WithStep(step time.Duration) Option {
	return func(o *options) {
		o.step = step
	}
}

// WithNotify registers a callback invoked after each failed attempt that will
// be retried. attempt is 1-indexed.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(o *options) {
		o.notify = fn
	}
}

// Run calls op up to maxAttempts times. maxAttempts <= 0 means exactly one
// attempt. If ctx is cancelled, Run returns the context's cause immediately,
// abandoning any pending backoff wait.
func Run[T any](ctx context.Context, maxAttempts int, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	o := options{step: DefaultStep}
	for _, opt := range opts {
		opt(&o)
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if err := ctx.Err(); err != nil {
		return zero, context.Cause(ctx)
	}

	attempt := 0
	value, err := backoff.Retry(ctx,
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		backoff.WithBackOff(&LinearBackOff{Step: o.step}),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if o.notify != nil {
				o.notify(attempt, err, wait)
			}
		}),
	)
	if err == nil {
		return value, nil
	}
	if ctx.Err() != nil {
		return zero, context.Cause(ctx)
	}
	return zero, &ExhaustedError{Attempts: attempt, Err: err}
}
