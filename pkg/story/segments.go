package story

import (
	"sort"
	"strings"
	"sync"
	"time"

	"echopaths/pkg/model"
)

// FallbackChapterGoal is used for indices beyond the outline.
const FallbackChapterGoal = "Continue the journey towards the final destination, wrapping up any loose narrative threads."

// TotalSegments estimates how many segments cover a journey of d, one per
// segmentLen and never fewer than one.
func TotalSegments(d, segmentLen time.Duration) int {
	if segmentLen <= 0 {
		segmentLen = time.Minute
	}
	n := int(d / segmentLen)
	if n < 1 {
		return 1
	}
	return n
}

// SegmentStore holds the outline and the ordered, ready segments of the
// current story. Segments are unique by index and kept sorted.
type SegmentStore struct {
	mu       sync.RWMutex
	outline  []string
	total    int
	segments []model.Segment
}

// NewSegmentStore returns an empty store.
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{}
}

// Seed installs the outline, the segment estimate and the first segment.
func (s *SegmentStore) Seed(outline []string, total int, first model.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total > 0 {
		return ErrAlreadySeeded
	}
	if total < 1 {
		total = 1
	}
	s.outline = append([]string(nil), outline...)
	s.total = total
	s.segments = []model.Segment{first}
	return nil
}

// Append inserts seg in index order. A segment whose index is already
// present is ignored and Append reports false.
func (s *SegmentStore) Append(seg model.Segment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.segments), func(i int) bool { return s.segments[i].Index >= seg.Index })
	if i < len(s.segments) && s.segments[i].Index == seg.Index {
		return false
	}
	s.segments = append(s.segments, model.Segment{})
	copy(s.segments[i+1:], s.segments[i:])
	s.segments[i] = seg
	return true
}

// Reset clears the story.
func (s *SegmentStore) Reset() {
	s.mu.Lock()
	s.outline = nil
	s.total = 0
	s.segments = nil
	s.mu.Unlock()
}

// Len is the number of ready segments.
func (s *SegmentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.segments)
}

// Total is the segment estimate, 0 before Seed.
func (s *SegmentStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Outline returns a copy of the chapter goals.
func (s *SegmentStore) Outline() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.outline...)
}

// Segment returns the segment at playback position pos (0-based).
func (s *SegmentStore) Segment(pos int) (model.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos < 0 || pos >= len(s.segments) {
		return model.Segment{}, false
	}
	return s.segments[pos], true
}

// Segments returns a copy of the ready segments.
func (s *SegmentStore) Segments() []model.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Segment(nil), s.segments...)
}

// ChapterGoal returns the outline entry for a 1-based segment index.
func (s *SegmentStore) ChapterGoal(index int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 1 || index > len(s.outline) || strings.TrimSpace(s.outline[index-1]) == "" {
		return FallbackChapterGoal
	}
	return s.outline[index-1]
}

// ContextBefore returns at most maxChars of the narration that precedes the
// 1-based index, taken from the end.
func (s *SegmentStore) ContextBefore(index, maxChars int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parts []string
	for _, seg := range s.segments {
		if seg.Index < index {
			parts = append(parts, seg.Text)
		}
	}
	return Tail(strings.Join(parts, " "), maxChars)
}

// Tail returns the last n runes of text.
func Tail(text string, n int) string {
	if n <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[len(r)-n:])
}
