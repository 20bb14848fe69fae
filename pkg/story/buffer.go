package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"echopaths/pkg/logging"
	"echopaths/pkg/model"
)

// Buffer keeps generation ahead of playback. It is confined to the story
// loop: every method must run there, and background results are posted back.
type Buffer struct {
	store        *SegmentStore
	gen          *generator
	post         func(func()) bool
	lookahead    func() int
	contextChars int

	// OnReady is called on the loop after a segment was appended.
	OnReady func(seg model.Segment)
	// OnFailed is called on the loop when an index exhausted its retries.
	OnFailed func(f *SegmentFailure)

	ctx        context.Context
	cancel     context.CancelFunc
	journey    *model.Journey
	epoch      uint64
	current    int
	generating bool
	failed     map[int]*SegmentFailure
	attempts   map[int]int
}

func newBuffer(store *SegmentStore, gen *generator, post func(func()) bool, lookahead func() int, contextChars int) *Buffer {
	return &Buffer{
		store:        store,
		gen:          gen,
		post:         post,
		lookahead:    lookahead,
		contextChars: contextChars,
		ctx:          context.Background(),
		cancel:       func() {},
		failed:       make(map[int]*SegmentFailure),
		attempts:     make(map[int]int),
	}
}

// Begin arms the buffer for a freshly seeded story.
func (b *Buffer) Begin(ctx context.Context, j *model.Journey) {
	b.Reset()
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.journey = j
}

// Reset abandons any in-flight generation. Its result will be discarded.
func (b *Buffer) Reset() {
	b.cancel()
	b.ctx, b.cancel = context.Background(), func() {}
	b.epoch++
	b.journey = nil
	b.current = 0
	b.generating = false
	b.failed = make(map[int]*SegmentFailure)
	b.attempts = make(map[int]int)
}

// Maybe starts generating the next segment when playback at position
// current is closer than the look-ahead to the end of the ready segments.
// At most one generation runs at a time. It reports whether one started.
func (b *Buffer) Maybe(current int) bool {
	b.current = current
	if b.journey == nil || b.generating {
		return false
	}

	ready, total := b.store.Len(), b.store.Total()
	lookahead := 1
	if b.lookahead != nil {
		lookahead = max(1, b.lookahead())
	}
	if ready >= total || ready >= current+lookahead {
		logging.Trace(slog.Default(), "Buffer: Lookahead satisfied", "ready", ready, "total", total, "current", current)
		return false
	}

	target := ready + 1
	req := SegmentRequest{
		Journey:      b.journey,
		Index:        target,
		Total:        total,
		ChapterGoal:  b.store.ChapterGoal(target),
		PriorContext: b.store.ContextBefore(target, b.contextChars),
	}
	b.generating = true
	b.attempts[target]++
	epoch, ctx := b.epoch, b.ctx

	slog.Debug("Buffer: Generating segment", "index", target, "total", total, "current", current, "attempt", b.attempts[target])
	go func() {
		var seg model.Segment
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("segment generation panicked: %v", r)
			}
			b.post(func() { b.complete(epoch, target, seg, err) })
		}()
		seg, _, err = b.gen.segment(ctx, req)
	}()
	return true
}

func (b *Buffer) complete(epoch uint64, target int, seg model.Segment, err error) {
	if epoch != b.epoch {
		slog.Debug("Buffer: Discarding stale result", "index", target)
		return
	}
	b.generating = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		f := &SegmentFailure{Index: target, Err: err}
		b.failed[target] = f
		if b.gen.tracker != nil {
			b.gen.tracker.TrackSegmentFailed()
		}
		slog.Error("Buffer: Segment failed", "index", target, "attempts", b.attempts[target], "error", err)
		logging.Event("error", fmt.Sprintf("Segment %d could not be generated", target))
		if b.OnFailed != nil {
			b.OnFailed(f)
		}
		return
	}

	delete(b.failed, target)
	delete(b.attempts, target)
	if !b.store.Append(seg) {
		slog.Warn("Buffer: Duplicate segment ignored", "index", seg.Index)
	} else {
		if b.gen.tracker != nil {
			b.gen.tracker.TrackSegmentReady()
		}
		slog.Info("Buffer: Segment ready", "index", seg.Index, "ready", b.store.Len(), "total", b.store.Total())
		if b.OnReady != nil {
			b.OnReady(seg)
		}
	}
	b.Maybe(b.current)
}

// RetryFailed clears the failure banner and triggers generation again.
func (b *Buffer) RetryFailed() bool {
	for i := range b.failed {
		delete(b.failed, i)
	}
	return b.Maybe(b.current)
}

// Generating reports whether a segment is being generated.
func (b *Buffer) Generating() bool { return b.generating }

// Failed returns the indices whose last generation failed, ascending.
func (b *Buffer) Failed() []int {
	out := make([]int, 0, len(b.failed))
	for i := range b.failed {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Attempts returns how many pipeline runs index has had since its last success.
func (b *Buffer) Attempts(index int) int { return b.attempts[index] }
