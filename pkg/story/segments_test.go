package story

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echopaths/pkg/model"
)

func seg(index int) model.Segment {
	return model.Segment{Index: index, Text: "text", Audio: &model.Audio{Format: "wav", Data: []byte{1}}}
}

func TestTotalSegments(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{30 * time.Second, 1},
		{60 * time.Second, 1},
		{150 * time.Second, 2},
		{25 * time.Minute, 25},
		{0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalSegments(tt.d, time.Minute), "duration %s", tt.d)
	}
}

func TestSegmentStore_AppendIdempotentSorted(t *testing.T) {
	s := NewSegmentStore()
	require.NoError(t, s.Seed([]string{"a", "b", "c"}, 4, seg(1)))

	assert.True(t, s.Append(seg(3)))
	assert.True(t, s.Append(seg(2)))
	assert.False(t, s.Append(seg(2)))
	assert.False(t, s.Append(seg(1)))

	var got []int
	for _, sg := range s.Segments() {
		got = append(got, sg.Index)
	}
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 4, s.Total())
}

func TestSegmentStore_Seed(t *testing.T) {
	s := NewSegmentStore()
	require.NoError(t, s.Seed(nil, 0, seg(1)))
	assert.Equal(t, 1, s.Total())
	assert.ErrorIs(t, s.Seed(nil, 3, seg(1)), ErrAlreadySeeded)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Total())
	_, ok := s.Segment(0)
	assert.False(t, ok)
	require.NoError(t, s.Seed([]string{"x"}, 2, seg(1)))
}

func TestSegmentStore_ChapterGoal(t *testing.T) {
	s := NewSegmentStore()
	require.NoError(t, s.Seed([]string{"Set out", " ", "Arrive"}, 5, seg(1)))

	assert.Equal(t, "Set out", s.ChapterGoal(1))
	assert.Equal(t, FallbackChapterGoal, s.ChapterGoal(2))
	assert.Equal(t, "Arrive", s.ChapterGoal(3))
	assert.Equal(t, FallbackChapterGoal, s.ChapterGoal(4))
	assert.Equal(t, FallbackChapterGoal, s.ChapterGoal(0))
}

func TestSegmentStore_ContextBefore(t *testing.T) {
	s := NewSegmentStore()
	first := seg(1)
	first.Text = "The road began."
	require.NoError(t, s.Seed(nil, 3, first))
	second := seg(2)
	second.Text = "Rain fell."
	s.Append(second)

	assert.Equal(t, "", s.ContextBefore(1, 100))
	assert.Equal(t, "The road began.", s.ContextBefore(2, 100))
	assert.Equal(t, "The road began. Rain fell.", s.ContextBefore(3, 100))
	assert.Equal(t, "Rain fell.", s.ContextBefore(3, 10))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "héé", Tail("aahéé", 3))
	assert.Equal(t, "short", Tail("short", 10))
	assert.Equal(t, "all", Tail("all", 0))
}
