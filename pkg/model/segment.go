package model

import "time"

// Audio is a synthesized clip ready for the playback backend.
type Audio struct {
	Format string `json:"format"` // "wav" or "mp3"
	Data   []byte `json:"-"`
}

// Segment is one narration unit of roughly a minute.
type Segment struct {
	Index int    `json:"index"` // 1-based
	Text  string `json:"text"`
	Audio *Audio `json:"audio,omitempty"`
}

// Ready reports whether the segment can be played.
func (s *Segment) Ready() bool {
	return s != nil && s.Text != "" && s.Audio != nil && len(s.Audio.Data) > 0
}

// PlaybackState is the state of the playback controller.
type PlaybackState string

const (
	StateIdle          PlaybackState = "idle"
	StatePaused        PlaybackState = "paused"
	StatePlaying       PlaybackState = "playing"
	StateBufferingWait PlaybackState = "buffering"
)

// PlaybackPosition is the externally visible position of playback.
type PlaybackPosition struct {
	State        PlaybackState `json:"state"`
	CurrentIndex int           `json:"current_index"` // 0-based into the ready segments
	IsPlaying    bool          `json:"is_playing"`
	IsBuffering  bool          `json:"is_buffering"`
}

// NowPlaying is the metadata published whenever a segment starts.
type NowPlaying struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// SegmentStatus summarizes a segment for status views.
type SegmentStatus struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Ready bool   `json:"ready"`
}

// StorySnapshot is a consistent read of the whole story state.
type StorySnapshot struct {
	ID             string           `json:"id,omitempty"`
	Journey        *Journey         `json:"journey,omitempty"`
	Stage          string           `json:"stage"`
	Message        string           `json:"message,omitempty"`
	Outline        []string         `json:"outline,omitempty"`
	TotalSegments  int              `json:"total_segments"`
	Segments       []SegmentStatus  `json:"segments"`
	Playback       PlaybackPosition `json:"playback"`
	NowPlaying     *NowPlaying      `json:"now_playing,omitempty"`
	IsGenerating   bool             `json:"is_generating"`
	FailedSegments []int            `json:"failed_segments,omitempty"`
	Error          string           `json:"error,omitempty"`
}
