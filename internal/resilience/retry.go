package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/custodia-labs/sizhen/internal/logger"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds how often and how patiently an operation is retried.
type RetryPolicy struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// StandardRetryPolicy is used for modality back-end calls.
func StandardRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BackoffBase:       200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

// LongRunningRetryPolicy is used for fusion and reasoning.
func LongRunningRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       2,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 3.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	b := p.exponential()
	var d time.Duration
	for range attempt {
		d = b.NextBackOff()
	}
	return d
}

// Permanent marks err as not worth retrying. Permanent errors do not
// count against a circuit breaker either.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// exponential returns the backoff schedule of p without jitter.
func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = time.Duration(math.MaxInt64)
	}
	return &backoff.ExponentialBackOff{
		InitialInterval: max(p.BackoffBase, 0),
		Multiplier:      mult,
		MaxInterval:     maxBackoff,
	}
}

// CallOption customises a single Call.
type CallOption func(*callConfig)

type callConfig struct {
	attemptTimeout time.Duration
}

// WithAttemptTimeout bounds each attempt. A timed-out attempt counts as a failure.
func WithAttemptTimeout(d time.Duration) CallOption {
	return func(c *callConfig) {
		c.attemptTimeout = d
	}
}

// Call runs fn under breaker b and retry policy p.
// An open breaker fails fast with ErrCircuitOpen and stops the retries,
// as do permanent errors and cancellation of ctx. b may be nil.
func Call[T any](ctx context.Context, b *CircuitBreaker, p RetryPolicy, fn func(context.Context) (T, error), opts ...CallOption) (T, error) {
	var zero T
	cfg := callConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	name := "call"
	if b != nil {
		name = b.Name()
	}
	attempts := max(p.MaxAttempts, 1)

	// stopErr is set when an attempt ends the loop early and is returned
	// as is rather than as an exhausted retry.
	var stopErr error
	stop := func(err error) (T, error) {
		stopErr = err
		return zero, backoff.Permanent(err)
	}
	op := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return stop(err)
		}
		v, err := attempt(ctx, b, cfg.attemptTimeout, fn)
		switch {
		case err == nil:
			return v, nil
		case ctx.Err() != nil:
			return stop(ctx.Err())
		case errors.Is(err, ErrCircuitOpen):
			return stop(fmt.Errorf("%s: %w", name, err))
		case IsPermanent(err):
			return stop(err)
		}
		return zero, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.exponential()),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Debug("%s: attempt failed, retrying in %v: %v", name, delay, err)
		}),
	)
	switch {
	case err == nil:
		return v, nil
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case stopErr != nil:
		return zero, stopErr
	}
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, attempts, err)
}

// attempt runs fn once under b. Failures caused by the caller's context are
// not held against the breaker.
func attempt[T any](ctx context.Context, b *CircuitBreaker, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if b == nil {
		return runAttempt(ctx, timeout, fn)
	}
	var zero T
	v, err := b.execute(func() (any, error) {
		v, err := runAttempt(ctx, timeout, fn)
		if err != nil && ctx.Err() != nil {
			return v, &abandoned{err: err}
		}
		return v, err
	})
	if err != nil {
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
