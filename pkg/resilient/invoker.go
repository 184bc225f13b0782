package resilient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrCancelled is returned when the caller's context is cancelled while an
// attempt or a backoff wait is in progress. No further attempts are made.
var ErrCancelled = errors.New("invocation cancelled")

// ExhaustedError is returned when every attempt allowed by the policy failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err is an *ExhaustedError.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Operation is one attempt at a remote call. It must honor ctx.
type Operation[T any] func(ctx context.Context) (T, error)

// WaitFunc blocks for d or until ctx is done, whichever comes first.
type WaitFunc func(ctx context.Context, d time.Duration) error

// Invoker runs operations under a retry policy.
type Invoker struct {
	logger *zap.Logger
	wait   WaitFunc
}

type Option func(*Invoker)

func WithLogger(logger *zap.Logger) Option {
	return func(i *Invoker) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithWaitFunc replaces the timer-based wait between attempts.
func WithWaitFunc(wait WaitFunc) Option {
	return func(i *Invoker) {
		if wait != nil {
			i.wait = wait
		}
	}
}

func New(opts ...Option) *Invoker {
	inv := &Invoker{
		logger: zap.NewNop(),
		wait:   SleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke calls op until it succeeds, the policy's attempts are used up, or ctx
// is cancelled.
//
// A failure that coincides with ctx being done is a cancellation: Invoke
// returns an error matching ErrCancelled straight away, whatever attempts are
// left. When the last allowed attempt fails Invoke returns *ExhaustedError.
func Invoke[T any](ctx context.Context, inv *Invoker, policy Policy, op Operation[T]) (T, error) {
	var zero T

	if inv == nil {
		inv = New()
	}
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	schedule := newSchedule(policy)
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := schedule.NextBackOff()
			inv.logger.Debug("retrying after backoff",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			if err := inv.wait(ctx, delay); err != nil || ctx.Err() != nil {
				return zero, cancelled(ctx, attempt-1)
			}
		}

		if ctx.Err() != nil {
			return zero, cancelled(ctx, attempt-1)
		}

		value, err := runAttempt(ctx, policy, op)
		if err == nil {
			if attempt > 1 {
				inv.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return value, nil
		}

		if ctx.Err() != nil {
			return zero, cancelled(ctx, attempt)
		}

		lastErr = err
		inv.logger.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err))
	}

	return zero, &ExhaustedError{Attempts: policy.MaxAttempts, Last: lastErr}
}

func runAttempt[T any](ctx context.Context, policy Policy, op Operation[T]) (T, error) {
	if policy.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, policy.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// newSchedule yields BaseDelay, BaseDelay*m, BaseDelay*m^2, ... with no jitter.
func newSchedule(policy Policy) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.Multiplier = policy.BackoffMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(1<<63 - 1)
	b.Reset()
	return b
}

func cancelled(ctx context.Context, attempts int) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w after %d attempt(s): %w", ErrCancelled, attempts, cause)
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
