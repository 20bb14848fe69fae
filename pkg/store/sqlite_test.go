package store

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"echopaths/pkg/db"
)

func TestSQLiteStore(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	defer d.Close()

	store := NewSQLiteStore(d)
	ctx := context.Background()

	testCache(t, ctx, store)
	testState(t, ctx, store)
	testStories(t, ctx, store)
}

func testCache(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Cache", func(t *testing.T) {
		payload := bytes.Repeat([]byte("RIFF-audio-"), 500)
		if err := store.SetCache(ctx, "tts:abc", payload); err != nil {
			t.Fatalf("SetCache failed: %v", err)
		}

		got, ok := store.GetCache(ctx, "tts:abc")
		if !ok {
			t.Fatal("expected cache hit")
		}
		if !bytes.Equal(got, payload) {
			t.Error("cached payload mismatch after compression round trip")
		}

		if _, ok := store.GetCache(ctx, "tts:missing"); ok {
			t.Error("GetCache should miss for unknown key")
		}

		if err := store.SetCache(ctx, "tts:abc", []byte("short")); err != nil {
			t.Fatal(err)
		}
		if got, _ := store.GetCache(ctx, "tts:abc"); string(got) != "short" {
			t.Errorf("SetCache should replace the entry, got %q", got)
		}
	})
}

func testState(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("State", func(t *testing.T) {
		if _, ok := store.GetState(ctx, "volume"); ok {
			t.Error("expected missing state")
		}
		if err := store.SetState(ctx, "volume", "0.5"); err != nil {
			t.Fatal(err)
		}
		if v, ok := store.GetState(ctx, "volume"); !ok || v != "0.5" {
			t.Errorf("GetState = %q, %v", v, ok)
		}
		if err := store.DeleteState(ctx, "volume"); err != nil {
			t.Fatal(err)
		}
		if _, ok := store.GetState(ctx, "volume"); ok {
			t.Error("state should be deleted")
		}
	})
}

func testStories(t *testing.T, ctx context.Context, store *SQLiteStore) {
	t.Run("Stories", func(t *testing.T) {
		rec := &StoryRecord{
			ID:              "s1",
			StartAddress:    "Old Town",
			EndAddress:      "Harbour",
			TravelMode:      "WALKING",
			Style:           "NOIR",
			Voice:           "Kore",
			DurationSeconds: 180,
			TotalSegments:   3,
			RouteKm:         2.4,
			Outline:         []string{"one", "two", "three"},
		}
		if err := store.SaveStory(ctx, rec); err != nil {
			t.Fatalf("SaveStory failed: %v", err)
		}

		// Out of order and duplicated appends.
		for _, seg := range []struct {
			idx  int
			text string
		}{{2, "second"}, {1, "first"}, {2, "second again"}} {
			if err := store.SaveStorySegment(ctx, "s1", seg.idx, seg.text); err != nil {
				t.Fatal(err)
			}
		}

		got, texts, err := store.GetStory(ctx, "s1")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("GetStory returned nil")
		}
		if got.Style != "NOIR" || len(got.Outline) != 3 || got.RouteKm != 2.4 {
			t.Errorf("unexpected record %+v", got)
		}
		if strings.Join(texts, "|") != "first|second" {
			t.Errorf("segments = %v, want [first second]", texts)
		}

		missing, _, err := store.GetStory(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("GetStory(missing) = %v, %v", missing, err)
		}

		list, err := store.ListStories(ctx, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].SegmentCount != 2 {
			t.Errorf("ListStories = %+v", list)
		}
	})
}
