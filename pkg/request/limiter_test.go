package request

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newFakeLimiter(interval time.Duration) (*Limiter, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(interval)
	l.now = clk.Now
	l.sleep = clk.Sleep
	return l, clk
}

func TestLimiter_FirstCallDoesNotWait(t *testing.T) {
	l, clk := newFakeLimiter(2 * time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clk.slept) != 0 {
		t.Errorf("first call slept %v", clk.slept)
	}
}

func TestLimiter_SpacingMeasuredFromCompletion(t *testing.T) {
	l, clk := newFakeLimiter(2 * time.Second)
	ctx := context.Background()

	// A call that itself takes 5s still forces a 2s gap after it ends.
	_ = l.Call(ctx, func(ctx context.Context) error {
		clk.now = clk.now.Add(5 * time.Second)
		return nil
	})
	doneAt := clk.now

	clk.now = clk.now.Add(500 * time.Millisecond)
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if len(clk.slept) != 1 || clk.slept[0] != 1500*time.Millisecond {
		t.Fatalf("slept %v, want [1.5s]", clk.slept)
	}
	if got := clk.now.Sub(doneAt); got < 2*time.Second {
		t.Errorf("next call started %v after completion, want >= 2s", got)
	}
}

func TestLimiter_DoneRecordedOnFailure(t *testing.T) {
	l, clk := newFakeLimiter(2 * time.Second)
	ctx := context.Background()

	boom := errors.New("boom")
	if err := l.Call(ctx, func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Call error = %v", err)
	}
	_ = l.Wait(ctx)
	if len(clk.slept) != 1 || clk.slept[0] != 2*time.Second {
		t.Errorf("failed call must still space the next one, slept %v", clk.slept)
	}
}

func TestLimiter_NoWaitAfterInterval(t *testing.T) {
	l, clk := newFakeLimiter(2 * time.Second)
	l.Done()
	clk.now = clk.now.Add(3 * time.Second)
	_ = l.Wait(context.Background())
	if len(clk.slept) != 0 {
		t.Errorf("should not wait once the interval elapsed, slept %v", clk.slept)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := NewLimiter(time.Hour)
	l.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
