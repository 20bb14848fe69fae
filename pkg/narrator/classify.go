package narrator

import (
	"errors"
	"fmt"
	"net/http"

	"echopaths/pkg/llm"
	"echopaths/pkg/story"
	"echopaths/pkg/tts"
)

// classify maps provider errors onto the story error taxonomy. Context
// errors pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var status *llm.StatusError
	if errors.As(err, &status) {
		if status.Transient() {
			return fmt.Errorf("%w: %w", story.ErrOverloaded, err)
		}
		return fmt.Errorf("%w: %w", story.ErrRejected, err)
	}

	var fatal *tts.FatalError
	if errors.As(err, &fatal) {
		if fatal.StatusCode == http.StatusTooManyRequests || fatal.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", story.ErrOverloaded, err)
		}
		return fmt.Errorf("%w: %w", story.ErrRejected, err)
	}

	var finish *llm.FinishError
	if errors.As(err, &finish) {
		return &story.StoppedError{Reason: finish.Reason}
	}

	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return fmt.Errorf("%w: %w", story.ErrEmptyResponse, err)
	case errors.Is(err, llm.ErrInvalidJSON):
		return fmt.Errorf("%w: %w", story.ErrOutline, err)
	case errors.Is(err, llm.ErrNotConfigured):
		return fmt.Errorf("%w: %w", story.ErrRejected, err)
	case errors.Is(err, tts.ErrNoAudio):
		return &story.AudioError{Err: err}
	}
	return err
}
