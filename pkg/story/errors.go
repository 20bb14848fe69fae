package story

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrOutline marks an unusable outline response. The outline stage
	// recovers from it locally.
	ErrOutline = errors.New("outline unavailable")
	// ErrEmptyResponse is returned when a provider answered with no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrOverloaded is returned for provider rate limiting or overload (429/503).
	ErrOverloaded = errors.New("provider overloaded")
	// ErrTimeout is returned when a single call exceeded its deadline.
	ErrTimeout = errors.New("generation timed out")
	// ErrRejected is returned when a provider refused the request outright
	// (bad key, invalid argument). It is not retried.
	ErrRejected = errors.New("request rejected by provider")

	ErrAlreadySeeded = errors.New("story already seeded")
	ErrBusy          = errors.New("a story is already being generated")
	ErrNoStory       = errors.New("no story loaded")
	// ErrDiscarded is returned by Start when a reset superseded the generation.
	ErrDiscarded = errors.New("story generation discarded by reset")
)

// StoppedError reports a response that ended for a reason other than a
// normal stop (safety, max tokens, recitation).
type StoppedError struct {
	Reason string
}

func (e *StoppedError) Error() string {
	return fmt.Sprintf("generation stopped: %s", e.Reason)
}

// AudioError reports missing or undecodable synthesized audio.
type AudioError struct {
	Err error
}

func (e *AudioError) Error() string {
	if e.Err == nil {
		return "audio generation failed"
	}
	return fmt.Sprintf("audio generation failed: %v", e.Err)
}

func (e *AudioError) Unwrap() error { return e.Err }

// SegmentFailure is recorded for an index whose retries are exhausted.
type SegmentFailure struct {
	Index int
	Err   error
}

func (e *SegmentFailure) Error() string {
	return fmt.Sprintf("segment %d failed: %v", e.Index, e.Err)
}

func (e *SegmentFailure) Unwrap() error { return e.Err }

// Stage names a step of story generation.
type Stage string

const (
	StageIdle    Stage = "idle"
	StageOutline Stage = "outline"
	StageText    Stage = "text"
	StageAudio   Stage = "audio"
	StageReady   Stage = "ready"
	StageFailed  Stage = "failed"
)

// Message is the user-facing progress text for the stage.
func (s Stage) Message() string {
	switch s {
	case StageOutline:
		return "Crafting story arc..."
	case StageText:
		return "Writing first chapter..."
	case StageAudio:
		return "Preparing audio stream..."
	default:
		return ""
	}
}

// InitialFailure is the only error that escapes to the caller: the outline
// or first segment could not be produced, so there is no story to play.
type InitialFailure struct {
	Stage Stage
	Err   error
}

func (e *InitialFailure) Error() string {
	return fmt.Sprintf("initial story generation failed at %s: %v", e.Stage, e.Err)
}

func (e *InitialFailure) Unwrap() error { return e.Err }

// UserMessage is a short explanation suitable for the planning screen.
func (e *InitialFailure) UserMessage() string {
	if errors.Is(e.Err, ErrTimeout) {
		return "Story generation timed out. Please check your connection and try again."
	}
	return "Failed to generate story. Please try again."
}

// Retryable reports whether err is worth another narrative-level attempt.
// Everything is retried except cancellation, provider rejections and
// unusable outlines, which are recovered without another call.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrRejected) && !errors.Is(err, ErrOutline)
}

// Overloaded reports whether err signals provider overload.
func Overloaded(err error) bool {
	return errors.Is(err, ErrOverloaded)
}
