package store

import (
	"context"
	"time"
)

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// StoryRecord is the archived form of a started story.
type StoryRecord struct {
	ID              string    `json:"id"`
	StartAddress    string    `json:"start_address"`
	EndAddress      string    `json:"end_address"`
	TravelMode      string    `json:"travel_mode"`
	Style           string    `json:"style"`
	Voice           string    `json:"voice"`
	DurationSeconds int       `json:"duration_seconds"`
	TotalSegments   int       `json:"total_segments"`
	RouteKm         float64   `json:"route_km"`
	Outline         []string  `json:"outline"`
	CreatedAt       time.Time `json:"created_at"`
	SegmentCount    int       `json:"segment_count"`
}

// StoryStore archives stories and the text of their segments.
type StoryStore interface {
	SaveStory(ctx context.Context, rec *StoryRecord) error
	SaveStorySegment(ctx context.Context, storyID string, index int, text string) error
	GetStory(ctx context.Context, id string) (*StoryRecord, []string, error)
	ListStories(ctx context.Context, limit int) ([]StoryRecord, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
