// Package playback drives sequential segment playback over a pluggable
// audio backend.
package playback

import (
	"log/slog"
	"time"

	"echopaths/pkg/model"
)

// Source provides the ready segments by playback position (0-based).
type Source interface {
	Segment(pos int) (model.Segment, bool)
	Total() int
}

// Backend plays one clip at a time. Callbacks may fire on any goroutine.
type Backend interface {
	Load(a *model.Audio, onFinished func(), onError func(error)) (time.Duration, error)
	Play()
	Pause()
	Stop()
}

// Hooks observe controller transitions. All are optional.
type Hooks struct {
	// OnIndex is called whenever playback moves to a position, ready or not.
	OnIndex func(pos int)
	// OnStart is called when a segment starts playing from its beginning.
	OnStart func(pos int, seg model.Segment, d time.Duration)
	// OnState is called after every state change.
	OnState func(model.PlaybackState)
	// OnBufferingWait is called when playback stalls on a missing segment.
	OnBufferingWait func(pos int)
}

// Controller is the playback state machine. It is not safe for concurrent
// use; backend callbacks are routed through post so the owner can
// serialize them.
type Controller struct {
	src     Source
	backend Backend
	post    func(func()) bool
	hooks   Hooks

	state  model.PlaybackState
	index  int
	intent bool // user wants audio
	loaded int  // position loaded into the backend, -1 if none
	token  uint64
}

// NewController creates an idle controller. post may be nil, in which case
// backend callbacks are handled on the calling goroutine.
func NewController(src Source, backend Backend, post func(func()) bool, hooks Hooks) *Controller {
	return &Controller{
		src:     src,
		backend: backend,
		post:    post,
		hooks:   hooks,
		state:   model.StateIdle,
		loaded:  -1,
	}
}

// Load prepares a freshly seeded story: Idle becomes Paused at position 0.
func (c *Controller) Load() {
	c.stop()
	c.index = 0
	c.intent = false
	c.setState(model.StatePaused)
}

// Play starts or resumes playback at the current position.
func (c *Controller) Play() {
	if c.state == model.StateIdle || c.state == model.StatePlaying {
		return
	}
	c.intent = true
	if c.loaded == c.index && c.state == model.StatePaused {
		c.backend.Play()
		c.setState(model.StatePlaying)
		return
	}
	c.enter(c.index)
}

// Pause halts playback. A buffering wait is abandoned.
func (c *Controller) Pause() {
	switch c.state {
	case model.StatePlaying:
		c.backend.Pause()
	case model.StateBufferingWait:
	default:
		return
	}
	c.intent = false
	c.setState(model.StatePaused)
}

// Toggle switches between playing and paused.
func (c *Controller) Toggle() {
	if c.IsPlaying() {
		c.Pause()
		return
	}
	c.Play()
}

// Next skips to the following position. It does nothing unless that
// segment is ready.
func (c *Controller) Next() {
	if c.state == model.StateIdle {
		return
	}
	if _, ok := c.src.Segment(c.index + 1); !ok {
		return
	}
	c.seek(c.index + 1)
}

// Previous returns to the preceding position.
func (c *Controller) Previous() {
	if c.state == model.StateIdle || c.index == 0 {
		return
	}
	c.seek(c.index - 1)
}

// SegmentAvailable resumes a buffering wait once the awaited segment exists.
func (c *Controller) SegmentAvailable() {
	if c.state != model.StateBufferingWait || !c.intent {
		return
	}
	if _, ok := c.src.Segment(c.index); ok {
		c.start(c.index)
	}
}

// Reset stops audio and returns to Idle.
func (c *Controller) Reset() {
	c.stop()
	c.index = 0
	c.intent = false
	c.setState(model.StateIdle)
}

// State returns the current state.
func (c *Controller) State() model.PlaybackState { return c.state }

// Index returns the current position.
func (c *Controller) Index() int { return c.index }

// IsPlaying reports whether the user expects audio, including while buffering.
func (c *Controller) IsPlaying() bool {
	return c.state == model.StatePlaying || c.state == model.StateBufferingWait
}

// Position returns the externally visible position.
func (c *Controller) Position() model.PlaybackPosition {
	return model.PlaybackPosition{
		State:        c.state,
		CurrentIndex: c.index,
		IsPlaying:    c.IsPlaying(),
		IsBuffering:  c.state == model.StateBufferingWait,
	}
}

func (c *Controller) seek(pos int) {
	c.stop()
	if c.intent {
		c.enter(pos)
		return
	}
	c.index = pos
	c.report(pos)
	c.setState(model.StatePaused)
}

// enter moves to pos and plays it, or waits for it.
func (c *Controller) enter(pos int) {
	c.index = pos
	if _, ok := c.src.Segment(pos); ok {
		c.start(pos)
		return
	}
	c.report(pos)
	c.setState(model.StateBufferingWait)
	slog.Info("Playback: Waiting for segment", "position", pos)
	if c.hooks.OnBufferingWait != nil {
		c.hooks.OnBufferingWait(pos)
	}
}

func (c *Controller) start(pos int) {
	seg, ok := c.src.Segment(pos)
	if !ok {
		return
	}
	if c.loaded >= 0 {
		c.backend.Stop()
	}
	c.token++
	token := c.token
	c.index = pos
	c.loaded = pos

	d, err := c.backend.Load(seg.Audio, c.callback(func() { c.Finished(token) }), func(err error) {
		c.callback(func() { c.Failed(token, err) })()
	})
	c.report(pos)
	if err != nil {
		slog.Error("Playback: Failed to load segment", "index", seg.Index, "error", err)
		c.setState(model.StatePlaying)
		c.advance()
		return
	}
	c.backend.Play()
	c.setState(model.StatePlaying)
	if c.hooks.OnStart != nil {
		c.hooks.OnStart(pos, seg, d)
	}
}

// Finished handles the end of the clip identified by token.
func (c *Controller) Finished(token uint64) {
	if token != c.token || c.state != model.StatePlaying {
		return
	}
	c.advance()
}

// Failed handles a backend error. The segment is skipped like a finished one.
func (c *Controller) Failed(token uint64, err error) {
	if token != c.token || c.state != model.StatePlaying {
		return
	}
	slog.Warn("Playback: Backend error, skipping segment", "position", c.index, "error", err)
	c.advance()
}

func (c *Controller) advance() {
	c.loaded = -1
	next := c.index + 1
	if next >= c.src.Total() {
		c.intent = false
		c.setState(model.StatePaused)
		slog.Info("Playback: Story finished", "segments", c.src.Total())
		return
	}
	c.enter(next)
}

func (c *Controller) stop() {
	c.token++
	if c.loaded >= 0 {
		c.backend.Stop()
	}
	c.loaded = -1
}

func (c *Controller) callback(fn func()) func() {
	if c.post == nil {
		return fn
	}
	return func() { c.post(fn) }
}

func (c *Controller) report(pos int) {
	if c.hooks.OnIndex != nil {
		c.hooks.OnIndex(pos)
	}
}

func (c *Controller) setState(s model.PlaybackState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.hooks.OnState != nil {
		c.hooks.OnState(s)
	}
}
