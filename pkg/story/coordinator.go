// Package story generates and sequences a chapter-structured audio
// narrative for a journey: outline, first segment, then look-ahead
// buffering in step with playback.
package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"echopaths/pkg/config"
	"echopaths/pkg/geo"
	"echopaths/pkg/logging"
	"echopaths/pkg/model"
	"echopaths/pkg/playback"
	"echopaths/pkg/request"
	"echopaths/pkg/store"
	"echopaths/pkg/tracker"
)

// FallbackOutlineGoal fills the outline when no usable outline was produced.
const FallbackOutlineGoal = "Continue the immersive narrative of the journey."

// ErrStopped is returned once the coordinator loop has exited.
var ErrStopped = errors.New("story coordinator stopped")

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Lookahead     int
	Timeouts      Timeouts
	Policies      Policies
	ContextChars  int
	SegmentLength time.Duration
	AutoPlay      bool

	Limiter  *request.Limiter
	Settings config.Provider  // runtime lookahead, default style and voice
	Archive  store.StoryStore // optional
	Tracker  *tracker.Tracker // optional
}

// Coordinator owns the story session. All state lives on its loop; public
// methods are safe for concurrent use.
type Coordinator struct {
	loop     *Loop
	opts     Options
	gen      *generator
	segments *SegmentStore
	buffer   *Buffer
	player   *playback.Controller

	runCtx     context.Context
	id         string
	journey    *model.Journey
	stage      Stage
	errMsg     string
	epoch      uint64
	initCancel context.CancelFunc
	nowPlaying *model.NowPlaying
	subs       map[chan model.StorySnapshot]struct{}
}

// NewCoordinator wires the generation client and the audio backend.
func NewCoordinator(client GenerationClient, backend playback.Backend, opts Options) *Coordinator {
	if opts.Lookahead < 1 {
		opts.Lookahead = 2
	}
	if opts.Timeouts == (Timeouts{}) {
		opts.Timeouts = DefaultTimeouts()
	}
	if opts.SegmentLength <= 0 {
		opts.SegmentLength = time.Minute
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = 3000
	}
	if opts.Limiter == nil {
		opts.Limiter = request.NewLimiter(2 * time.Second)
	}
	opts.Policies.Text = withDefaults(opts.Policies.Text, "text", 5, opts.Tracker)
	opts.Policies.Audio = withDefaults(opts.Policies.Audio, "audio", 3, opts.Tracker)

	c := &Coordinator{
		loop:     NewLoop(),
		opts:     opts,
		segments: NewSegmentStore(),
		runCtx:   context.Background(),
		stage:    StageIdle,
		subs:     make(map[chan model.StorySnapshot]struct{}),
	}
	c.gen = &generator{
		client:   client,
		limiter:  opts.Limiter,
		timeouts: opts.Timeouts,
		policies: opts.Policies,
		tracker:  opts.Tracker,
	}
	c.buffer = newBuffer(c.segments, c.gen, c.loop.Post, c.lookahead, opts.ContextChars)
	c.buffer.OnReady = c.segmentReady
	c.buffer.OnFailed = func(*SegmentFailure) { c.publish() }
	c.player = playback.NewController(c.segments, backend, c.loop.Post, playback.Hooks{
		OnIndex: func(pos int) { c.buffer.Maybe(pos) },
		OnStart: c.segmentStarted,
		OnState: func(model.PlaybackState) { c.publish() },
		OnBufferingWait: func(pos int) {
			if c.opts.Tracker != nil {
				c.opts.Tracker.TrackBufferingWait()
			}
			logging.Event("buffering", fmt.Sprintf("Waiting for segment %d", pos+1))
		},
	})
	return c
}

// withDefaults copies p, or builds a policy when p is nil, and attaches
// the error classification and retry accounting.
func withDefaults(p *request.RetryPolicy, name string, attempts int, tr *tracker.Tracker) *request.RetryPolicy {
	var out request.RetryPolicy
	if p != nil {
		out = *p
	} else {
		out = request.RetryPolicy{MaxAttempts: attempts, BaseDelay: 3 * time.Second, MaxDelay: 30 * time.Second}
	}
	if out.Name == "" {
		out.Name = name
	}
	if out.Retryable == nil {
		out.Retryable = Retryable
	}
	if out.OnRetry == nil {
		policy := out.Name
		out.OnRetry = func(attempt int, delay time.Duration, err error) {
			slog.Warn("Story: Retrying generation", "policy", policy, "attempt", attempt, "delay", delay, "error", err)
			if tr != nil {
				tr.TrackRetry(policy)
			}
		}
	}
	return &out
}

// Run processes story events until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.runCtx = ctx
	slog.Info("Story: Coordinator started")
	err := c.loop.Run(ctx)
	slog.Info("Story: Coordinator stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Coordinator) lookahead() int {
	if c.opts.Settings != nil {
		return c.opts.Settings.Lookahead(c.runCtx)
	}
	return c.opts.Lookahead
}

// initialRun is an armed story whose outline and first segment are still
// to be generated.
type initialRun struct {
	journey *model.Journey
	epoch   uint64
	total   int
	ctx     context.Context
	cancel  context.CancelFunc
}

// Start generates the outline and the first segment synchronously, then
// seeds the story and starts buffering. Any previous story is discarded.
func (c *Coordinator) Start(ctx context.Context, j model.Journey) (model.StorySnapshot, error) {
	run, _, err := c.arm(ctx, j)
	if err != nil {
		return model.StorySnapshot{}, err
	}
	return c.generateInitial(run)
}

// StartAsync arms the story and returns its snapshot at the outline stage.
// Generation continues in the background; progress is published to
// subscribers.
func (c *Coordinator) StartAsync(ctx context.Context, j model.Journey) (model.StorySnapshot, error) {
	run, snap, err := c.arm(ctx, j)
	if err != nil {
		return model.StorySnapshot{}, err
	}
	go func() {
		_, err := c.generateInitial(run)
		if err != nil && !errors.Is(err, ErrDiscarded) && !errors.Is(err, context.Canceled) {
			slog.Warn("Story: Background generation failed", "error", err)
		}
	}()
	return snap, nil
}

// arm validates the journey, discards any previous story and moves to the
// outline stage.
func (c *Coordinator) arm(ctx context.Context, j model.Journey) (*initialRun, model.StorySnapshot, error) {
	if err := j.Validate(); err != nil {
		return nil, model.StorySnapshot{}, err
	}
	c.applyDefaults(ctx, &j)
	run := &initialRun{
		journey: &j,
		total:   TotalSegments(time.Duration(j.DurationSeconds)*time.Second, c.opts.SegmentLength),
	}

	var (
		busy bool
		snap model.StorySnapshot
	)
	if !c.loop.Do(func() {
		switch c.stage {
		case StageOutline, StageText, StageAudio:
			busy = true
			return
		}
		c.reset()
		run.epoch = c.epoch
		run.ctx, run.cancel = context.WithCancel(ctx)
		c.initCancel = run.cancel
		c.id = uuid.NewString()
		c.journey = run.journey
		c.stage = StageOutline
		c.publish()
		snap = c.snapshot()
	}) {
		return nil, model.StorySnapshot{}, ErrStopped
	}
	if busy {
		return nil, model.StorySnapshot{}, ErrBusy
	}
	return run, snap, nil
}

func (c *Coordinator) generateInitial(run *initialRun) (model.StorySnapshot, error) {
	defer run.cancel()
	j, total, epoch := run.journey, run.total, run.epoch

	slog.Info("Story: Generating", "from", j.StartAddress, "to", j.EndAddress, "mode", j.TravelMode, "style", j.Style, "segments", total)
	logging.Event("story", fmt.Sprintf("Planning %d segments from %s to %s", total, j.StartAddress, j.EndAddress))

	outline, err := c.gen.outline(run.ctx, j, total)
	if err != nil && outlineRecoverable(run.ctx, err) {
		slog.Warn("Story: Outline failed, falling back to generic chapters", "error", err)
		outline, err = fallbackOutline(total), nil
	}
	if err != nil {
		return c.fail(epoch, StageOutline, err)
	}

	c.setStage(epoch, StageText)
	req := SegmentRequest{Journey: j, Index: 1, Total: total, ChapterGoal: firstGoal(outline)}
	text, err := c.gen.text(run.ctx, req)
	if err != nil {
		return c.fail(epoch, StageText, err)
	}
	c.setStage(epoch, StageAudio)
	audio, err := c.gen.audio(run.ctx, text, j.Voice)
	if err != nil {
		return c.fail(epoch, StageAudio, err)
	}
	first := model.Segment{Index: 1, Text: text, Audio: audio}

	var (
		snap      model.StorySnapshot
		discarded bool
		seedErr   error
	)
	if !c.loop.Do(func() {
		if c.epoch != epoch {
			discarded = true
			return
		}
		c.initCancel = nil
		if seedErr = c.segments.Seed(outline, total, first); seedErr != nil {
			return
		}
		c.stage = StageReady
		c.buffer.Begin(c.runCtx, j)
		c.player.Load()
		c.archive(j, outline, total, first)
		if c.opts.Tracker != nil {
			c.opts.Tracker.TrackSegmentReady()
		}
		logging.Event("story", "Story ready")
		c.buffer.Maybe(0)
		if c.opts.AutoPlay {
			c.player.Play()
		}
		c.publish()
		snap = c.snapshot()
	}) {
		return model.StorySnapshot{}, ErrStopped
	}
	if discarded {
		return model.StorySnapshot{}, ErrDiscarded
	}
	if seedErr != nil {
		return model.StorySnapshot{}, seedErr
	}
	return snap, nil
}

// outlineRecoverable reports whether a failed outline can be replaced by
// generic chapters. Rejections and cancellation stay fatal.
func outlineRecoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !errors.Is(err, ErrRejected)
}

func (c *Coordinator) applyDefaults(ctx context.Context, j *model.Journey) {
	style, voice := string(j.Style), j.Voice
	if c.opts.Settings != nil {
		if style == "" {
			style = c.opts.Settings.DefaultStyle(ctx)
		}
		if voice == "" {
			voice = c.opts.Settings.DefaultVoice(ctx)
		}
	}
	j.Style = model.ParseStyle(style)
	j.Voice = voice
}

func fallbackOutline(total int) []string {
	out := make([]string, total)
	for i := range out {
		out[i] = FallbackOutlineGoal
	}
	return out
}

func firstGoal(outline []string) string {
	if len(outline) == 0 || strings.TrimSpace(outline[0]) == "" {
		return FallbackChapterGoal
	}
	return outline[0]
}

func (c *Coordinator) setStage(epoch uint64, s Stage) {
	c.loop.Post(func() {
		if c.epoch == epoch {
			c.stage = s
			c.publish()
		}
	})
}

func (c *Coordinator) fail(epoch uint64, stage Stage, err error) (model.StorySnapshot, error) {
	if errors.Is(err, context.Canceled) {
		discarded := false
		c.loop.Do(func() { discarded = c.epoch != epoch })
		if discarded {
			return model.StorySnapshot{}, ErrDiscarded
		}
	}
	f := &InitialFailure{Stage: stage, Err: err}
	slog.Error("Story: Initial generation failed", "stage", stage, "error", err)
	logging.Event("error", f.UserMessage())
	c.loop.Post(func() {
		if c.epoch != epoch {
			return
		}
		c.initCancel = nil
		c.stage = StageFailed
		c.errMsg = f.UserMessage()
		c.publish()
	})
	return model.StorySnapshot{}, f
}

func (c *Coordinator) segmentReady(seg model.Segment) {
	logging.Event("segment", fmt.Sprintf("Segment %d ready", seg.Index))
	c.player.SegmentAvailable()
	c.archiveSegment(seg)
	c.publish()
}

func (c *Coordinator) segmentStarted(pos int, seg model.Segment, d time.Duration) {
	np := &model.NowPlaying{
		Title:    fmt.Sprintf("Part %d of %d", seg.Index, c.segments.Total()),
		Index:    pos,
		Total:    c.segments.Total(),
		Duration: d,
	}
	if c.journey != nil {
		np.Artist = fmt.Sprintf("%s to %s", c.journey.StartAddress, c.journey.EndAddress)
	}
	c.nowPlaying = np
	slog.Debug("Story: Now playing", "index", seg.Index, "duration", d)
	c.publish()
}

func (c *Coordinator) archive(j *model.Journey, outline []string, total int, first model.Segment) {
	if c.opts.Archive == nil {
		return
	}
	rec := &store.StoryRecord{
		ID:              c.id,
		StartAddress:    j.StartAddress,
		EndAddress:      j.EndAddress,
		TravelMode:      string(j.TravelMode),
		Style:           string(j.Style),
		Voice:           j.Voice,
		DurationSeconds: j.DurationSeconds,
		TotalSegments:   total,
		RouteKm:         geo.RouteLength(j.Path) / 1000,
		Outline:         outline,
		CreatedAt:       time.Now(),
	}
	archive, ctx := c.opts.Archive, c.runCtx
	go func() {
		if err := archive.SaveStory(ctx, rec); err != nil {
			slog.Warn("Story: Failed to archive story", "id", rec.ID, "error", err)
			return
		}
		if err := archive.SaveStorySegment(ctx, rec.ID, first.Index, first.Text); err != nil {
			slog.Warn("Story: Failed to archive segment", "id", rec.ID, "index", first.Index, "error", err)
		}
	}()
}

func (c *Coordinator) archiveSegment(seg model.Segment) {
	if c.opts.Archive == nil || c.id == "" {
		return
	}
	archive, ctx, id := c.opts.Archive, c.runCtx, c.id
	go func() {
		if err := archive.SaveStorySegment(ctx, id, seg.Index, seg.Text); err != nil {
			slog.Warn("Story: Failed to archive segment", "id", id, "index", seg.Index, "error", err)
		}
	}()
}

// Reset stops playback and drops the story. In-flight generation results
// are discarded when they arrive.
func (c *Coordinator) Reset() {
	c.loop.Do(func() {
		c.reset()
		c.publish()
	})
}

func (c *Coordinator) reset() {
	if c.initCancel != nil {
		c.initCancel()
		c.initCancel = nil
	}
	c.epoch++
	c.buffer.Reset()
	c.segments.Reset()
	c.player.Reset()
	c.id = ""
	c.journey = nil
	c.stage = StageIdle
	c.errMsg = ""
	c.nowPlaying = nil
}

// TogglePlayback switches between playing and paused.
func (c *Coordinator) TogglePlayback() (model.PlaybackPosition, error) {
	return c.control((*playback.Controller).Toggle)
}

// Next skips to the next segment.
func (c *Coordinator) Next() (model.PlaybackPosition, error) {
	return c.control((*playback.Controller).Next)
}

// Previous returns to the previous segment.
func (c *Coordinator) Previous() (model.PlaybackPosition, error) {
	return c.control((*playback.Controller).Previous)
}

func (c *Coordinator) control(fn func(*playback.Controller)) (model.PlaybackPosition, error) {
	var pos model.PlaybackPosition
	var err error
	if !c.loop.Do(func() {
		if c.segments.Total() == 0 {
			err = ErrNoStory
			return
		}
		fn(c.player)
		pos = c.player.Position()
	}) {
		return pos, ErrStopped
	}
	return pos, err
}

// RetryFailedSegments clears the failure banner and retries generation.
func (c *Coordinator) RetryFailedSegments() error {
	var err error
	if !c.loop.Do(func() {
		if c.segments.Total() == 0 {
			err = ErrNoStory
			return
		}
		c.buffer.RetryFailed()
		c.publish()
	}) {
		return ErrStopped
	}
	return err
}

// IsGenerating reports whether any generation is in flight.
func (c *Coordinator) IsGenerating() bool {
	var busy bool
	c.loop.Do(func() { busy = c.generating() })
	return busy
}

func (c *Coordinator) generating() bool {
	switch c.stage {
	case StageOutline, StageText, StageAudio:
		return true
	}
	return c.buffer.Generating()
}

// Snapshot returns a consistent view of the story.
func (c *Coordinator) Snapshot() model.StorySnapshot {
	snap := model.StorySnapshot{Stage: string(StageIdle)}
	c.loop.Do(func() { snap = c.snapshot() })
	return snap
}

func (c *Coordinator) snapshot() model.StorySnapshot {
	snap := model.StorySnapshot{
		ID:             c.id,
		Stage:          string(c.stage),
		Message:        c.stage.Message(),
		Outline:        c.segments.Outline(),
		TotalSegments:  c.segments.Total(),
		Playback:       c.player.Position(),
		IsGenerating:   c.generating(),
		FailedSegments: c.buffer.Failed(),
		Error:          c.errMsg,
	}
	if c.journey != nil {
		j := *c.journey
		snap.Journey = &j
	}
	if c.nowPlaying != nil {
		np := *c.nowPlaying
		snap.NowPlaying = &np
	}
	for _, seg := range c.segments.Segments() {
		snap.Segments = append(snap.Segments, model.SegmentStatus{Index: seg.Index, Text: seg.Text, Ready: seg.Ready()})
	}
	if snap.Segments == nil {
		snap.Segments = []model.SegmentStatus{}
	}
	if len(snap.FailedSegments) > 0 && snap.Error == "" {
		snap.Error = fmt.Sprintf("Segment %d could not be generated. Retry to continue.", snap.FailedSegments[0])
	}
	return snap
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only see the newest one. Call cancel to unsubscribe.
func (c *Coordinator) Subscribe() (<-chan model.StorySnapshot, func()) {
	ch := make(chan model.StorySnapshot, 1)
	c.loop.Do(func() {
		c.subs[ch] = struct{}{}
		ch <- c.snapshot()
	})
	return ch, func() {
		c.loop.Post(func() { delete(c.subs, ch) })
	}
}

func (c *Coordinator) publish() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshot()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
