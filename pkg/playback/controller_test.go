package playback

import (
	"errors"
	"testing"
	"time"

	"echopaths/pkg/model"
)

type fakeSource struct {
	segs  []model.Segment
	total int
}

func (s *fakeSource) Segment(pos int) (model.Segment, bool) {
	if pos < 0 || pos >= len(s.segs) {
		return model.Segment{}, false
	}
	return s.segs[pos], true
}

func (s *fakeSource) Total() int { return s.total }

func (s *fakeSource) add(index int) {
	s.segs = append(s.segs, model.Segment{Index: index, Text: "text", Audio: &model.Audio{Format: "wav", Data: []byte{1}}})
}

type fakeBackend struct {
	loads    int
	plays    int
	pauses   int
	stops    int
	loadErr  error
	finished func()
	failed   func(error)
}

func (b *fakeBackend) Load(a *model.Audio, onFinished func(), onError func(error)) (time.Duration, error) {
	b.loads++
	if b.loadErr != nil {
		return 0, b.loadErr
	}
	b.finished, b.failed = onFinished, onError
	return time.Minute, nil
}

func (b *fakeBackend) Play()  { b.plays++ }
func (b *fakeBackend) Pause() { b.pauses++ }
func (b *fakeBackend) Stop()  { b.stops++ }

func newTestController(ready, total int) (*Controller, *fakeSource, *fakeBackend, *[]int) {
	src := &fakeSource{total: total}
	for i := 1; i <= ready; i++ {
		src.add(i)
	}
	be := &fakeBackend{}
	var indices []int
	c := NewController(src, be, nil, Hooks{OnIndex: func(pos int) { indices = append(indices, pos) }})
	return c, src, be, &indices
}

func TestController_PlayBeforeLoadIsIgnored(t *testing.T) {
	c, _, be, _ := newTestController(1, 2)
	c.Play()
	if c.State() != model.StateIdle || be.loads != 0 {
		t.Errorf("expected idle without loads, got %s (%d loads)", c.State(), be.loads)
	}
}

func TestController_Sequence(t *testing.T) {
	c, src, be, indices := newTestController(1, 2)
	c.Load()
	if c.State() != model.StatePaused {
		t.Fatalf("expected paused after load, got %s", c.State())
	}

	c.Play()
	if c.State() != model.StatePlaying || be.loads != 1 {
		t.Fatalf("expected playing segment 0, got %s", c.State())
	}

	be.finished()
	if c.State() != model.StateBufferingWait {
		t.Fatalf("expected buffering wait, got %s", c.State())
	}
	if c.Index() != 1 {
		t.Errorf("expected index 1 while buffering, got %d", c.Index())
	}
	if !c.Position().IsBuffering || !c.IsPlaying() {
		t.Errorf("buffering position should report playing intent: %+v", c.Position())
	}

	src.add(2)
	c.SegmentAvailable()
	if c.State() != model.StatePlaying || c.Index() != 1 {
		t.Fatalf("expected playing index 1, got %s at %d", c.State(), c.Index())
	}

	be.finished()
	if c.State() != model.StatePaused {
		t.Errorf("expected paused at end of story, got %s", c.State())
	}
	if c.Index() != 1 {
		t.Errorf("expected index to stay on last segment, got %d", c.Index())
	}

	want := []int{0, 1, 1}
	if len(*indices) != len(want) {
		t.Fatalf("reported indices = %v, want %v", *indices, want)
	}
	for i := range want {
		if (*indices)[i] != want[i] {
			t.Errorf("reported indices = %v, want %v", *indices, want)
		}
	}
}

func TestController_PauseResume(t *testing.T) {
	c, _, be, _ := newTestController(2, 2)
	c.Load()
	c.Toggle()
	c.Toggle()
	if c.State() != model.StatePaused || be.pauses != 1 {
		t.Fatalf("expected paused, got %s", c.State())
	}
	c.Toggle()
	if c.State() != model.StatePlaying {
		t.Fatalf("expected playing, got %s", c.State())
	}
	if be.loads != 1 || be.plays != 2 {
		t.Errorf("resume should not reload: loads=%d plays=%d", be.loads, be.plays)
	}
}

func TestController_PauseDuringBufferingWait(t *testing.T) {
	c, src, be, _ := newTestController(1, 3)
	c.Load()
	c.Play()
	be.finished()
	c.Pause()
	if c.State() != model.StatePaused {
		t.Fatalf("expected paused, got %s", c.State())
	}

	src.add(2)
	c.SegmentAvailable()
	if c.State() != model.StatePaused {
		t.Errorf("segment arrival must not resume a paused controller, got %s", c.State())
	}
}

func TestController_StaleFinishedIgnored(t *testing.T) {
	c, _, be, _ := newTestController(3, 3)
	c.Load()
	c.Play()
	stale := be.finished
	c.Next()
	if c.Index() != 1 {
		t.Fatalf("expected index 1, got %d", c.Index())
	}
	stale()
	if c.Index() != 1 || c.State() != model.StatePlaying {
		t.Errorf("stale callback moved playback: %s at %d", c.State(), c.Index())
	}
}

func TestController_BackendErrorSkips(t *testing.T) {
	c, _, be, _ := newTestController(2, 2)
	c.Load()
	c.Play()
	be.failed(errors.New("device lost"))
	if c.Index() != 1 || c.State() != model.StatePlaying {
		t.Errorf("expected skip to index 1, got %s at %d", c.State(), c.Index())
	}
}

func TestController_LoadErrorSkips(t *testing.T) {
	c, _, be, _ := newTestController(2, 2)
	be.loadErr = errors.New("bad wav")
	c.Load()
	c.Play()
	if c.State() != model.StatePaused || c.Index() != 1 {
		t.Errorf("expected both segments skipped to end, got %s at %d", c.State(), c.Index())
	}
}

func TestController_NextPrevious(t *testing.T) {
	tests := []struct {
		name      string
		ready     int
		total     int
		play      bool
		action    func(c *Controller)
		wantIndex int
		wantState model.PlaybackState
	}{
		{"NextPaused", 2, 3, false, (*Controller).Next, 1, model.StatePaused},
		{"NextPlaying", 2, 3, true, (*Controller).Next, 1, model.StatePlaying},
		{"NextNotReady", 1, 3, true, (*Controller).Next, 0, model.StatePlaying},
		{"NextPausedNotReady", 1, 3, false, (*Controller).Next, 0, model.StatePaused},
		{"NextAtEnd", 1, 1, true, (*Controller).Next, 0, model.StatePlaying},
		{"PreviousAtStart", 2, 2, true, (*Controller).Previous, 0, model.StatePlaying},
		{"NextThenPrevious", 2, 2, true, func(c *Controller) { c.Next(); c.Previous() }, 0, model.StatePlaying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _, _ := newTestController(tt.ready, tt.total)
			c.Load()
			if tt.play {
				c.Play()
			}
			tt.action(c)
			if c.Index() != tt.wantIndex || c.State() != tt.wantState {
				t.Errorf("got %s at %d, want %s at %d", c.State(), c.Index(), tt.wantState, tt.wantIndex)
			}
		})
	}
}

func TestController_Reset(t *testing.T) {
	c, _, be, _ := newTestController(2, 2)
	c.Load()
	c.Play()
	c.Reset()
	if c.State() != model.StateIdle || c.Index() != 0 {
		t.Errorf("expected idle at 0, got %s at %d", c.State(), c.Index())
	}
	if be.stops != 1 {
		t.Errorf("expected backend stop, got %d", be.stops)
	}
}
