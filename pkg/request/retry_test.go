package request

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

// recordSleep captures requested delays without sleeping.
func recordSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestRetryPolicy_SucceedsAfterFailures(t *testing.T) {
	var delays []time.Duration
	p := &RetryPolicy{MaxAttempts: 5, BaseDelay: 3 * time.Second, Sleep: recordSleep(&delays)}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, delays)
}

func TestRetryPolicy_Exhaustion(t *testing.T) {
	tests := []struct {
		name       string
		attempts   int
		base       time.Duration
		max        time.Duration
		wantDelays []time.Duration
	}{
		{"Text", 5, 3 * time.Second, 0, []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second, 24 * time.Second}},
		{"Audio", 3, 3 * time.Second, 0, []time.Duration{3 * time.Second, 6 * time.Second}},
		{"Transport", 4, time.Second, 0, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}},
		{"Capped", 4, time.Second, 3 * time.Second, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}},
		{"Single", 1, time.Second, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			p := &RetryPolicy{MaxAttempts: tt.attempts, BaseDelay: tt.base, MaxDelay: tt.max, Sleep: recordSleep(&delays)}

			calls := 0
			err := p.Do(context.Background(), func(ctx context.Context) error {
				calls++
				return errFlaky
			})

			assert.Equal(t, tt.attempts, calls)
			assert.Equal(t, tt.wantDelays, delays)
			assert.ErrorIs(t, err, ErrRetriesExhausted)
			assert.ErrorIs(t, err, errFlaky, "last error must be preserved")
		})
	}
}

func TestRetryPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	var delays []time.Duration
	fatal := errors.New("bad request")
	p := &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
		Sleep:       recordSleep(&delays),
	}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetryPolicy_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		OnRetry:     func(int, time.Duration, error) { cancel() },
	}

	calls := 0
	start := time.Now()
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errFlaky)
}

func TestRetryGeneric(t *testing.T) {
	p := &RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	calls := 0
	got, err := Retry(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "outline", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "outline", got)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := &RetryPolicy{BaseDelay: 3 * time.Second, MaxDelay: 20 * time.Second}
	assert.Equal(t, 3*time.Second, p.Delay(1))
	assert.Equal(t, 12*time.Second, p.Delay(3))
	assert.Equal(t, 20*time.Second, p.Delay(4))
}
