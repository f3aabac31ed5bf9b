// Package retry runs an operation a bounded number of times with a constant
// delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy is a fixed-delay retry policy. There is no backoff and no jitter.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy makes three attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second}
}

// ExhaustedRetriesError is returned once every attempt has failed. Err is the
// error of the final attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// Option customizes a single Do call.
type Option func(*settings)

type settings struct {
	onRetry func(attempt int, err error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithOnRetry registers a hook invoked after each failed attempt that will be
// retried. attempt is 1-based.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(s *settings) {
		s.onRetry = fn
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *settings) {
		s.sleep = fn
	}
}

// Do calls op until it succeeds or p.MaxAttempts calls have failed. Every
// error is retried. A cancelled context stops the loop and its error is
// returned unwrapped.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	s := settings{sleep: sleepWithContext}
	for _, opt := range opts {
		opt(&s)
	}

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt == maxAttempts {
			break
		}
		if s.onRetry != nil {
			s.onRetry(attempt, err)
		}
		if err := s.sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedRetriesError{Attempts: maxAttempts, Err: lastErr}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
