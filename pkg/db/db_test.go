package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"echopaths/pkg/db"
)

func TestDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	defer d.Close()

	var n int
	if err := d.QueryRow("SELECT count(*) FROM pragma_table_info('stories') WHERE name='route_km'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("route_km column missing after migration")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		d, err := db.Init(path)
		if err != nil {
			t.Fatalf("Init() #%d failed: %v", i, err)
		}
		d.Close()
	}
}

func TestPrune(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-40 * 24 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "old", "v", old); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec("INSERT INTO cache (key, value) VALUES (?, ?)", "new", "v"); err != nil {
		t.Fatal(err)
	}
	n, err := d.PruneCache(30 * 24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned cache row, got %d", n)
	}

	for i, ts := range []string{"2024-01-01 00:00:00", "2024-01-02 00:00:00", "2024-01-03 00:00:00"} {
		id := string(rune('a' + i))
		if _, err := d.Exec("INSERT INTO stories (id, created_at) VALUES (?, ?)", id, ts); err != nil {
			t.Fatal(err)
		}
		if _, err := d.Exec("INSERT INTO story_segments (story_id, idx, text) VALUES (?, 1, 'x')", id); err != nil {
			t.Fatal(err)
		}
	}
	n, err = d.PruneStories(2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned story, got %d", n)
	}
	var segs int
	if err := d.QueryRow("SELECT count(*) FROM story_segments WHERE story_id = 'a'").Scan(&segs); err != nil {
		t.Fatal(err)
	}
	if segs != 0 {
		t.Errorf("segments of pruned story should be gone, got %d", segs)
	}
}
