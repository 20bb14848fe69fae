package request

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum spacing between the end of one call and the
// start of the next. It is a single-slot gate, not a token bucket: the
// interval is measured from Done, not from Wait.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastDone    time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter. An interval <= 0 never waits.
func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Wait blocks until minInterval has elapsed since the last Done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	var wait time.Duration
	if !l.lastDone.IsZero() {
		wait = l.minInterval - l.now().Sub(l.lastDone)
	}
	l.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, wait)
}

// Done records the completion of a call.
func (l *Limiter) Done() {
	l.mu.Lock()
	l.lastDone = l.now()
	l.mu.Unlock()
}

// Call runs fn between Wait and Done. Done is recorded even when fn fails.
func (l *Limiter) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	defer l.Done()
	return fn(ctx)
}
