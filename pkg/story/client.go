package story

import (
	"context"
	"errors"
	"time"

	"echopaths/pkg/model"
	"echopaths/pkg/request"
)

// SegmentRequest carries everything needed to write one segment.
type SegmentRequest struct {
	Journey      *model.Journey
	Index        int // 1-based
	Total        int
	ChapterGoal  string
	PriorContext string // empty for the first segment
}

// GenerationClient produces the outline, segment text and segment audio.
// Implementations classify their failures with the errors of this package.
type GenerationClient interface {
	GenerateOutline(ctx context.Context, j *model.Journey, total int) ([]string, error)
	GenerateSegmentText(ctx context.Context, req SegmentRequest) (string, error)
	GenerateSegmentAudio(ctx context.Context, text, voice string) (*model.Audio, error)
}

// Timeouts bounds a single attempt of each call kind.
type Timeouts struct {
	Outline time.Duration
	Text    time.Duration
	Audio   time.Duration
}

// DefaultTimeouts returns 60s for text work and 100s for audio.
func DefaultTimeouts() Timeouts {
	return Timeouts{Outline: 60 * time.Second, Text: 60 * time.Second, Audio: 100 * time.Second}
}

// invoke runs one attempt: rate limit slot, then a bounded call. A deadline
// hit by the attempt itself becomes ErrTimeout so the retry policy sees a
// retryable error; cancellation of ctx passes through.
func invoke[T any](ctx context.Context, lim *request.Limiter, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := lim.Call(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		v, err := fn(callCtx)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// attempt is invoke wrapped in a retry policy.
func attempt[T any](ctx context.Context, p *request.RetryPolicy, lim *request.Limiter, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	return request.Retry(ctx, p, func(ctx context.Context) (T, error) {
		return invoke(ctx, lim, timeout, fn)
	})
}
