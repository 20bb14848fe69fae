package story

import (
	"context"
	"strings"
	"time"

	"echopaths/pkg/model"
	"echopaths/pkg/request"
	"echopaths/pkg/tracker"
)

// Policies are the narrative-level retry policies. Each attempt is one
// timed, rate-limited call.
type Policies struct {
	Text  *request.RetryPolicy
	Audio *request.RetryPolicy
}

// generator runs the outline and segment pipelines shared by the initial
// generation and the buffer.
type generator struct {
	client   GenerationClient
	limiter  *request.Limiter
	timeouts Timeouts
	policies Policies
	tracker  *tracker.Tracker
}

func (g *generator) outline(ctx context.Context, j *model.Journey, total int) ([]string, error) {
	start := time.Now()
	out, err := attempt(ctx, g.policies.Text, g.limiter, g.timeouts.Outline, func(ctx context.Context) ([]string, error) {
		return g.client.GenerateOutline(ctx, j, total)
	})
	g.track(string(StageOutline), start, err)
	return out, err
}

func (g *generator) text(ctx context.Context, req SegmentRequest) (string, error) {
	start := time.Now()
	text, err := attempt(ctx, g.policies.Text, g.limiter, g.timeouts.Text, func(ctx context.Context) (string, error) {
		t, err := g.client.GenerateSegmentText(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(t) == "" {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(t), nil
	})
	g.track(string(StageText), start, err)
	return text, err
}

func (g *generator) audio(ctx context.Context, text, voice string) (*model.Audio, error) {
	start := time.Now()
	a, err := attempt(ctx, g.policies.Audio, g.limiter, g.timeouts.Audio, func(ctx context.Context) (*model.Audio, error) {
		a, err := g.client.GenerateSegmentAudio(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		if a == nil || len(a.Data) == 0 {
			return nil, &AudioError{Err: ErrEmptyResponse}
		}
		return a, nil
	})
	g.track(string(StageAudio), start, err)
	return a, err
}

// segment produces a complete segment: text first, then its audio.
func (g *generator) segment(ctx context.Context, req SegmentRequest) (model.Segment, Stage, error) {
	text, err := g.text(ctx, req)
	if err != nil {
		return model.Segment{}, StageText, err
	}
	a, err := g.audio(ctx, text, req.Journey.Voice)
	if err != nil {
		return model.Segment{}, StageAudio, err
	}
	return model.Segment{Index: req.Index, Text: text, Audio: a}, StageReady, nil
}

func (g *generator) track(stage string, start time.Time, err error) {
	if g.tracker != nil {
		g.tracker.TrackGeneration(stage, time.Since(start), err)
	}
}
