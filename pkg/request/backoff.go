package request

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ProviderBackoff manages exponential backoff per provider. It spaces out
// calls to a provider that has recently reported overload, independent of
// any per-call retry loop.
type ProviderBackoff struct {
	mu        sync.RWMutex
	providers map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
}

type backoffState struct {
	failureCount int
	nextAllowed  time.Time
}

// NewProviderBackoff creates a new backoff manager.
func NewProviderBackoff(baseDelay, maxDelay time.Duration) *ProviderBackoff {
	return &ProviderBackoff{
		providers: make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Wait blocks until the provider is allowed to make a request or ctx ends.
func (b *ProviderBackoff) Wait(ctx context.Context, provider string) error {
	b.mu.RLock()
	state, exists := b.providers[provider]
	var next time.Time
	if exists {
		next = state.nextAllowed
	}
	b.mu.RUnlock()

	if !exists {
		return nil
	}
	return sleepCtx(ctx, time.Until(next))
}

// RecordFailure increases the backoff delay for a provider.
func (b *ProviderBackoff) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.providers[provider]
	if !exists {
		state = &backoffState{}
		b.providers[provider] = state
	}

	state.failureCount++
	state.nextAllowed = time.Now().Add(expDelay(b.baseDelay, b.maxDelay, state.failureCount, 0.1))
}

// RecordSuccess decreases the backoff delay (gradual recovery).
func (b *ProviderBackoff) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.providers[provider]
	if !exists {
		return
	}

	if state.failureCount > 0 {
		state.failureCount--
	}
	if state.failureCount == 0 {
		state.nextAllowed = time.Time{}
	}
}

// GetState returns current backoff state for a provider (for debugging/metrics).
func (b *ProviderBackoff) GetState(provider string) (failureCount int, nextAllowed time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if state, exists := b.providers[provider]; exists {
		return state.failureCount, state.nextAllowed
	}
	return 0, time.Time{}
}

// expDelay returns base * 2^(n-1), capped at max when max > 0, plus up to
// jitter*delay of random extra.
func expDelay(base, max time.Duration, n int, jitter float64) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(n-1)))
	if max > 0 && delay > max {
		delay = max
	}
	if jitter > 0 {
		delay += time.Duration(rand.Float64() * jitter * float64(delay))
	}
	return delay
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
