package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"echopaths/pkg/model"
)

// ErrNoAudio is returned when a segment carries no audio bytes.
var ErrNoAudio = errors.New("no audio data")

// byteSource lets in-memory clips satisfy the decoders' ReadCloser while
// keeping Seek available.
type byteSource struct {
	*bytes.Reader
}

func (byteSource) Close() error { return nil }

// Decode opens an in-memory clip. The format hint is tried first, then the
// other decoder.
func Decode(a *model.Audio) (beep.StreamSeekCloser, beep.Format, error) {
	if a == nil || len(a.Data) == 0 {
		return nil, beep.Format{}, ErrNoAudio
	}

	decoders := []func([]byte) (beep.StreamSeekCloser, beep.Format, error){decodeWAV, decodeMP3}
	if a.Format == "mp3" {
		decoders[0], decoders[1] = decoders[1], decoders[0]
	}

	var firstErr error
	for _, dec := range decoders {
		s, f, err := dec(a.Data)
		if err == nil {
			return s, f, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, beep.Format{}, fmt.Errorf("decode %s audio: %w", a.Format, firstErr)
}

func decodeWAV(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	return wav.Decode(bytes.NewReader(data))
}

func decodeMP3(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(byteSource{bytes.NewReader(data)})
}

// Duration returns the playing time of a clip.
func Duration(a *model.Audio) (time.Duration, error) {
	s, format, err := Decode(a)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return format.SampleRate.D(s.Len()), nil
}
