package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"echopaths/pkg/geo"
	"echopaths/pkg/llm"
	"echopaths/pkg/llm/prompts"
	"echopaths/pkg/model"
	"echopaths/pkg/request"
	"echopaths/pkg/store"
	"echopaths/pkg/story"
	"echopaths/pkg/tracker"
	"echopaths/pkg/tts"
)

// PadChapterGoal fills outline positions the model did not provide.
const PadChapterGoal = "Continue the journey towards the destination."

// LLM profile names.
const (
	ProfileOutline = "outline"
	ProfileSegment = "segment"
)

// Backoff keys.
const (
	llmBackoffKey = "llm"
	ttsBackoffKey = "tts"
)

// Options configures a Client. Zero values fall back to the defaults of
// DefaultOptions.
type Options struct {
	Fallback           tts.Provider // used for the rest of the session once the primary engine is overloaded
	Cache              store.CacheStore
	Backoff            *request.ProviderBackoff
	Transport          request.RetryPolicy
	Tracker            *tracker.Tracker
	SegmentSeconds     int
	WordsPerMinute     int
	PromptContextChars int
}

// DefaultOptions returns 60 second segments at 145 words per minute with a
// 1500 character context tail and four overload-only transport attempts.
func DefaultOptions() Options {
	return Options{
		Transport: request.RetryPolicy{
			Name:        "transport",
			MaxAttempts: 4,
			BaseDelay:   time.Second,
			MaxDelay:    8 * time.Second,
		},
		SegmentSeconds:     60,
		WordsPerMinute:     145,
		PromptContextChars: 1500,
	}
}

// Client implements story.GenerationClient on top of an LLM and a TTS engine.
type Client struct {
	llm     llm.Provider
	prompts *prompts.Manager
	tts     tts.Provider
	opts    Options

	mu          sync.RWMutex
	useFallback bool
}

var _ story.GenerationClient = (*Client)(nil)

// NewClient creates a generation client.
func NewClient(l llm.Provider, pm *prompts.Manager, t tts.Provider, opts Options) *Client {
	def := DefaultOptions()
	if opts.Transport.MaxAttempts < 1 {
		opts.Transport.MaxAttempts = def.Transport.MaxAttempts
	}
	if opts.Transport.BaseDelay <= 0 {
		opts.Transport.BaseDelay = def.Transport.BaseDelay
		opts.Transport.MaxDelay = def.Transport.MaxDelay
	}
	if opts.Transport.Name == "" {
		opts.Transport.Name = def.Transport.Name
	}
	opts.Transport.Retryable = story.Overloaded
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = def.SegmentSeconds
	}
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = def.WordsPerMinute
	}
	if opts.PromptContextChars <= 0 {
		opts.PromptContextChars = def.PromptContextChars
	}
	return &Client{llm: l, prompts: pm, tts: t, opts: opts}
}

// GenerateOutline asks for exactly total chapter goals. Short or long
// answers are padded or truncated; an unparseable answer is ErrOutline.
func (c *Client) GenerateOutline(ctx context.Context, j *model.Journey, total int) ([]string, error) {
	prompt, err := c.prompts.Render(prompts.Outline, prompts.OutlineData{
		Journey:  j,
		Total:    total,
		Duration: j.DurationLabel(),
		Style:    j.Style.Instruction(),
	})
	if err != nil {
		return nil, fmt.Errorf("render outline prompt: %w", err)
	}

	var chapters []string
	err = c.transport(ctx, llmBackoffKey, func(ctx context.Context) error {
		return classify(c.llm.GenerateJSON(ctx, ProfileOutline, prompt, &chapters))
	})
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no chapters in response", story.ErrOutline)
	}
	if len(chapters) != total {
		slog.Warn("Narrator: Outline length mismatch", "got", len(chapters), "want", total)
	}
	return normalizeOutline(chapters, total), nil
}

func normalizeOutline(chapters []string, total int) []string {
	out := make([]string, total)
	for i := range out {
		if i < len(chapters) {
			out[i] = strings.TrimSpace(chapters[i])
		}
		if out[i] == "" {
			out[i] = PadChapterGoal
		}
	}
	return out
}

// GenerateSegmentText writes the narration for one segment.
func (c *Client) GenerateSegmentText(ctx context.Context, req story.SegmentRequest) (string, error) {
	j := req.Journey
	prompt, err := c.prompts.Render(prompts.Segment, prompts.SegmentData{
		Journey:      j,
		Index:        req.Index,
		Total:        req.Total,
		Style:        j.Style.Instruction(),
		ChapterGoal:  req.ChapterGoal,
		Context:      req.PriorContext,
		ContextChars: c.opts.PromptContextChars,
		Seconds:      c.opts.SegmentSeconds,
		Words:        c.opts.SegmentSeconds * c.opts.WordsPerMinute / 60,
		Progress:     geo.DescribeProgress(j.Path, req.Index, req.Total),
	})
	if err != nil {
		return "", fmt.Errorf("render segment prompt: %w", err)
	}

	var text string
	err = c.transport(ctx, llmBackoffKey, func(ctx context.Context) error {
		out, err := c.llm.GenerateText(ctx, ProfileSegment, prompt)
		if err != nil {
			return classify(err)
		}
		text = strings.TrimSpace(tts.StripSpeakerLabels(out))
		return nil
	})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", story.ErrEmptyResponse
	}
	return text, nil
}

// transport retries overload errors and keeps the shared provider backoff
// informed.
func (c *Client) transport(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	p := c.opts.Transport
	return p.Do(ctx, func(ctx context.Context) error {
		if c.opts.Backoff != nil {
			if err := c.opts.Backoff.Wait(ctx, key); err != nil {
				return err
			}
		}
		err := fn(ctx)
		if c.opts.Backoff != nil {
			switch {
			case err == nil:
				c.opts.Backoff.RecordSuccess(key)
			case story.Overloaded(err):
				c.opts.Backoff.RecordFailure(key)
			}
		}
		return err
	})
}

// UsingFallback reports whether audio is currently produced by the fallback engine.
func (c *Client) UsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.useFallback
}
