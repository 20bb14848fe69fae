// Package audio plays narration clips through the system speaker or a
// silent clock for headless runs.
package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"

	"echopaths/pkg/model"
	"echopaths/pkg/playback"
)

// Player is a playback backend with volume control.
type Player interface {
	playback.Backend
	SetVolume(vol float64)
	Volume() float64
	// Remaining is the unplayed time of the loaded clip.
	Remaining() time.Duration
	Shutdown()
}

var (
	_ Player = (*Manager)(nil)
	_ Player = (*Silent)(nil)
)

const targetSampleRate = beep.SampleRate(48000)

// Manager plays clips on the speaker using gopxl/beep.
type Manager struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	isPaused           bool
	speakerInitialized bool
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format
	generation         uint64 // bumped on every load and stop
}

// New creates a new Manager instance. The speaker is opened on first load.
func New(volume float64) *Manager {
	return &Manager{volume: clampVolume(volume)}
}

// Load decodes the clip and queues it paused. onFinished fires when the
// clip plays to its end; onError when the decoder fails midway.
func (m *Manager) Load(a *model.Audio, onFinished func(), onError func(error)) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	streamer, format, err := Decode(a)
	if err != nil {
		return 0, err
	}
	if err := m.ensureSpeakerInitialized(); err != nil {
		streamer.Close()
		return 0, err
	}

	resampled := beep.Resample(3, format.SampleRate, targetSampleRate, streamer)
	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(m.volume),
		Silent:   m.volume <= 0.01,
	}

	m.generation++
	gen := m.generation
	m.streamer = volStreamer
	m.trackStreamer = streamer
	m.trackFormat = format
	m.ctrl = &beep.Ctrl{Streamer: volStreamer, Paused: true}
	m.isPaused = true

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		// Never block the speaker goroutine.
		go m.finished(gen, onFinished, onError)
	})))

	d := format.SampleRate.D(streamer.Len())
	slog.Debug("Audio: Loaded clip", "format", a.Format, "duration", d)
	return d, nil
}

func (m *Manager) finished(gen uint64, onFinished func(), onError func(error)) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	var err error
	if m.trackStreamer != nil {
		err = m.trackStreamer.Err()
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
	m.ctrl = nil
	m.streamer = nil
	m.isPaused = false
	m.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if onFinished != nil {
		onFinished()
	}
}

// Play resumes the loaded clip.
func (m *Manager) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil && m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
		m.isPaused = false
	}
}

// Pause pauses current playback.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
		m.isPaused = true
	}
}

// Stop drops the loaded clip without firing its callbacks.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.generation++
	if m.ctrl != nil {
		speaker.Clear()
		m.ctrl = nil
		m.isPaused = false
	}
	if m.trackStreamer != nil {
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
	m.streamer = nil
}

func (m *Manager) ensureSpeakerInitialized() error {
	if m.speakerInitialized {
		return nil
	}
	if err := speaker.Init(targetSampleRate, targetSampleRate.N(time.Second/10)); err != nil {
		slog.Error("Audio: Failed to initialize speaker", "error", err)
		return err
	}
	m.speakerInitialized = true
	return nil
}

// Shutdown stops playback.
func (m *Manager) Shutdown() {
	m.Stop()
}

// SetVolume sets playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = clampVolume(vol)
	if m.streamer != nil {
		speaker.Lock()
		m.streamer.Volume = volumeToPower(m.volume)
		m.streamer.Silent = m.volume <= 0.01
		speaker.Unlock()
	}
}

// Volume returns current volume level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// Remaining returns the remaining time of the current clip.
func (m *Manager) Remaining() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	speaker.Lock()
	defer speaker.Unlock()
	remainingSamples := m.trackStreamer.Len() - m.trackStreamer.Position()
	if remainingSamples < 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(remainingSamples)
}
