package tts

import (
	"context"
	"errors"
	"fmt"

	"echopaths/pkg/model"
)

const (
	// MinAudioSize is the minimum size of synthesized audio (1KB).
	// Anything smaller is likely a failed synthesis attempt.
	MinAudioSize = 1024
)

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	// Synthesize generates audio for text with the given voice.
	Synthesize(ctx context.Context, text, voice string) (*model.Audio, error)

	// Voices returns the voices the provider offers.
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice represents an available TTS voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	IsNeural bool   `json:"is_neural"`
}

// ErrNoAudio is returned when a provider answered without audio data.
var ErrNoAudio = errors.New("no audio data received")

// FatalError is a provider error with an HTTP status.
// Examples: rate limits (429), server errors (5xx), auth failures (401/403).
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a new FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// Verify rejects missing or suspiciously small audio.
func Verify(a *model.Audio) error {
	if a == nil || len(a.Data) == 0 {
		return ErrNoAudio
	}
	if len(a.Data) < MinAudioSize {
		return fmt.Errorf("audio too small (%d bytes)", len(a.Data))
	}
	return nil
}
