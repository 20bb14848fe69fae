package request

import (
	"context"
	"testing"
	"time"
)

func TestProviderBackoff_ExponentialDelay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		baseDelay time.Duration
		maxDelay  time.Duration
		wantMinMs int64
		wantMaxMs int64
	}{
		{"First failure", 1, 1 * time.Second, 60 * time.Second, 900, 1200},
		{"Second failure", 2, 1 * time.Second, 60 * time.Second, 1900, 2400},
		{"Third failure", 3, 1 * time.Second, 60 * time.Second, 3900, 4800},
		{"Max cap hit", 10, 1 * time.Second, 60 * time.Second, 59900, 66000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewProviderBackoff(tt.baseDelay, tt.maxDelay)

			for i := 0; i < tt.failures; i++ {
				b.RecordFailure("test-provider")
			}

			fc, nextAllowed := b.GetState("test-provider")
			if fc != tt.failures {
				t.Errorf("failureCount = %d, want %d", fc, tt.failures)
			}

			delayMs := time.Until(nextAllowed).Milliseconds()
			if delayMs < tt.wantMinMs || delayMs > tt.wantMaxMs {
				t.Errorf("delay = %dms, want between %dms and %dms", delayMs, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}
}

func TestProviderBackoff_GradualRecovery(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("provider")
	b.RecordFailure("provider")
	b.RecordFailure("provider")

	if fc, _ := b.GetState("provider"); fc != 3 {
		t.Errorf("after 3 failures, count = %d, want 3", fc)
	}

	b.RecordSuccess("provider")
	if fc, _ := b.GetState("provider"); fc != 2 {
		t.Errorf("after 1 success, count = %d, want 2", fc)
	}

	b.RecordSuccess("provider")
	b.RecordSuccess("provider")
	fc, next := b.GetState("provider")
	if fc != 0 || !next.IsZero() {
		t.Errorf("after full recovery, count = %d next = %v, want 0 and zero time", fc, next)
	}
}

func TestProviderBackoff_IsolatedProviders(t *testing.T) {
	b := NewProviderBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("gemini-text")
	b.RecordFailure("gemini-text")

	fc1, _ := b.GetState("gemini-text")
	fc2, _ := b.GetState("gemini-tts")

	if fc1 != 2 {
		t.Errorf("gemini-text failures = %d, want 2", fc1)
	}
	if fc2 != 0 {
		t.Errorf("gemini-tts failures = %d, want 0 (isolated)", fc2)
	}
}

func TestProviderBackoff_WaitHonoursContext(t *testing.T) {
	b := NewProviderBackoff(time.Hour, time.Hour)
	if err := b.Wait(context.Background(), "fresh"); err != nil {
		t.Fatalf("unknown provider should not wait: %v", err)
	}

	b.RecordFailure("slow")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx, "slow"); err == nil {
		t.Error("expected context error while backing off")
	}
}
