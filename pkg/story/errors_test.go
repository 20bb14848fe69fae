package story

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"overloaded", fmt.Errorf("%w: 503", ErrOverloaded), true},
		{"timeout", ErrTimeout, true},
		{"empty response", ErrEmptyResponse, true},
		{"stopped", &StoppedError{Reason: "SAFETY"}, true},
		{"audio", &AudioError{Err: errors.New("bad pcm")}, true},
		{"unusable outline", fmt.Errorf("%w: invalid json", ErrOutline), false},
		{"rejected", fmt.Errorf("%w: 400", ErrRejected), false},
		{"cancelled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
