package audio

import (
	"sync"
	"time"

	"echopaths/pkg/model"
)

// Silent is a headless backend. It decodes each clip for its length and
// reports completion after that much unpaused wall time.
type Silent struct {
	mu         sync.Mutex
	volume     float64
	speed      float64
	remaining  time.Duration
	startedAt  time.Time
	timer      *time.Timer
	onFinished func()
	generation uint64
}

// NewSilent creates a silent backend. speed > 1 shortens clips, which is
// handy for simulations; values <= 0 mean real time.
func NewSilent(volume, speed float64) *Silent {
	if speed <= 0 {
		speed = 1
	}
	return &Silent{volume: clampVolume(volume), speed: speed}
}

func (s *Silent) Load(a *model.Audio, onFinished func(), onError func(error)) (time.Duration, error) {
	d, err := Duration(a)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.remaining = time.Duration(float64(d) / s.speed)
	s.onFinished = onFinished
	return d, nil
}

func (s *Silent) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onFinished == nil || s.timer != nil {
		return
	}
	gen := s.generation
	done := s.onFinished
	s.startedAt = time.Now()
	s.timer = time.AfterFunc(s.remaining, func() {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.onFinished = nil
		s.remaining = 0
		s.mu.Unlock()
		done()
	})
}

func (s *Silent) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return
	}
	if s.timer.Stop() {
		s.remaining -= time.Since(s.startedAt)
		if s.remaining < 0 {
			s.remaining = 0
		}
	}
	s.timer = nil
}

func (s *Silent) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Silent) stopLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.onFinished = nil
	s.remaining = 0
}

func (s *Silent) SetVolume(vol float64) {
	s.mu.Lock()
	s.volume = clampVolume(vol)
	s.mu.Unlock()
}

func (s *Silent) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Remaining returns the wall time left until the clip reports completion.
func (s *Silent) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return s.remaining
	}
	return max(0, s.remaining-time.Since(s.startedAt))
}

func (s *Silent) Shutdown() { s.Stop() }
