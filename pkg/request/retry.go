package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy retries an operation with exponential backoff.
// The delay before retry n (1-based) is BaseDelay * 2^(n-1), capped by MaxDelay.
type RetryPolicy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	// Retryable decides whether err is worth another attempt. Nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
	// Sleep is replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Delay returns the backoff before retry n (1-based), without jitter.
func (p *RetryPolicy) Delay(n int) time.Duration {
	return expDelay(p.BaseDelay, p.MaxDelay, n, 0)
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. Context errors are never retried.
func (p *RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return abort(err, lastErr)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := expDelay(p.BaseDelay, p.MaxDelay, attempt, p.Jitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		} else {
			slog.Debug("Retrying", "policy", p.Name, "attempt", attempt, "delay", delay, "error", err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return abort(serr, lastErr)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func abort(ctxErr, lastErr error) error {
	if lastErr == nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ctxErr, lastErr)
}

// Retry is Do for operations that return a value.
func Retry[T any](ctx context.Context, p *RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
