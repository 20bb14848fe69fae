package audio

import (
	"errors"
	"math"
	"testing"
	"time"

	"echopaths/pkg/model"
	"echopaths/pkg/tts"
)

// clip returns a mono 16-bit WAV of the given length at 8kHz.
func clip(d time.Duration) *model.Audio {
	samples := int(d.Seconds() * 8000)
	return &model.Audio{Format: "wav", Data: tts.PCMToWAV(make([]byte, samples*2), 8000)}
}

func TestDuration(t *testing.T) {
	d, err := Duration(clip(250 * time.Millisecond))
	if err != nil {
		t.Fatalf("Duration: %v", err)
	}
	if d != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", d)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   *model.Audio
	}{
		{"nil", nil},
		{"empty", &model.Audio{Format: "wav"}},
		{"garbage", &model.Audio{Format: "mp3", Data: []byte("definitely not audio data")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrNoAudio) {
		t.Errorf("nil clip: got %v, want ErrNoAudio", err)
	}
}

func TestVolume(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.5, 0.5},
		{1.5, 1},
	}
	for _, tt := range tests {
		m := New(tt.in)
		if m.Volume() != tt.want {
			t.Errorf("New(%v).Volume() = %v, want %v", tt.in, m.Volume(), tt.want)
		}
		m.SetVolume(tt.in)
		if m.Volume() != tt.want {
			t.Errorf("SetVolume(%v): got %v, want %v", tt.in, m.Volume(), tt.want)
		}
	}

	if got := volumeToPower(1); got != 0 {
		t.Errorf("volumeToPower(1) = %v, want 0", got)
	}
	if got := volumeToPower(0.5); math.Abs(got+1) > 1e-9 {
		t.Errorf("volumeToPower(0.5) = %v, want -1", got)
	}
	if got := volumeToPower(0); got != -10 {
		t.Errorf("volumeToPower(0) = %v, want -10", got)
	}
}

func TestManager_IdleAccessors(t *testing.T) {
	m := New(1)
	if m.Remaining() != 0 {
		t.Error("expected zero remaining without a clip")
	}
	// Play, Pause and Stop are no-ops without a clip.
	m.Play()
	m.Pause()
	m.Stop()
}

func TestSilent_PlaysForClipLength(t *testing.T) {
	s := NewSilent(1, 1)
	done := make(chan struct{})

	d, err := s.Load(clip(50*time.Millisecond), func() { close(done) }, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d != 50*time.Millisecond {
		t.Errorf("Load duration = %v, want 50ms", d)
	}

	start := time.Now()
	s.Play()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired")
	}
	if el := time.Since(start); el < 40*time.Millisecond {
		t.Errorf("finished after %v, expected about 50ms", el)
	}
}

func TestSilent_PauseHoldsCompletion(t *testing.T) {
	s := NewSilent(1, 1)
	done := make(chan struct{})
	if _, err := s.Load(clip(60*time.Millisecond), func() { close(done) }, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Play()
	time.Sleep(10 * time.Millisecond)
	s.Pause()

	select {
	case <-done:
		t.Fatal("finished while paused")
	case <-time.After(120 * time.Millisecond):
	}

	s.Play()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finished callback never fired after resume")
	}
}

func TestSilent_StopSuppressesCallback(t *testing.T) {
	s := NewSilent(1, 1)
	fired := make(chan struct{}, 1)
	if _, err := s.Load(clip(20*time.Millisecond), func() { fired <- struct{}{} }, nil); err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.Play()
	s.Stop()

	select {
	case <-fired:
		t.Fatal("callback fired after Stop")
	case <-time.After(80 * time.Millisecond):
	}

	// Play after Stop has nothing to play.
	s.Play()
	select {
	case <-fired:
		t.Fatal("callback fired without a loaded clip")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestSilent_LoadReplacesClip(t *testing.T) {
	s := NewSilent(1, 10)
	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)

	if _, err := s.Load(clip(200*time.Millisecond), func() { first <- struct{}{} }, nil); err != nil {
		t.Fatal(err)
	}
	s.Play()
	if _, err := s.Load(clip(100*time.Millisecond), func() { second <- struct{}{} }, nil); err != nil {
		t.Fatal(err)
	}
	s.Play()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second clip never finished")
	}
	select {
	case <-first:
		t.Fatal("replaced clip reported completion")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSilent_Remaining(t *testing.T) {
	s := NewSilent(1, 2)
	if s.Remaining() != 0 {
		t.Errorf("expected zero remaining without a clip, got %v", s.Remaining())
	}
	if _, err := s.Load(clip(400*time.Millisecond), func() {}, nil); err != nil {
		t.Fatal(err)
	}
	// Speed 2 halves the wall time.
	if got := s.Remaining(); got != 200*time.Millisecond {
		t.Errorf("Remaining after load = %v, want 200ms", got)
	}

	s.Play()
	time.Sleep(20 * time.Millisecond)
	s.Pause()
	got := s.Remaining()
	if got >= 200*time.Millisecond || got <= 0 {
		t.Errorf("Remaining after partial play = %v, want between 0 and 200ms", got)
	}

	s.Stop()
	if s.Remaining() != 0 {
		t.Errorf("expected zero remaining after Stop, got %v", s.Remaining())
	}
}

func TestSilent_LoadError(t *testing.T) {
	s := NewSilent(1, 1)
	if _, err := s.Load(&model.Audio{Format: "wav", Data: []byte("RIFF")}, func() {}, nil); err == nil {
		t.Error("expected decode error")
	}
}
