package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"echopaths/pkg/db"
)

// Store defines the repository interface.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	StoryStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Stories ---

func (s *SQLiteStore) SaveStory(ctx context.Context, rec *StoryRecord) error {
	outline, err := json.Marshal(rec.Outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `INSERT OR REPLACE INTO stories
		(id, start_address, end_address, travel_mode, style, voice, duration_seconds, total_segments, route_km, outline, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.StartAddress, rec.EndAddress, rec.TravelMode, rec.Style, rec.Voice,
		rec.DurationSeconds, rec.TotalSegments, rec.RouteKm, string(outline), rec.CreatedAt)
	return err
}

func (s *SQLiteStore) SaveStorySegment(ctx context.Context, storyID string, index int, text string) error {
	query := `INSERT OR IGNORE INTO story_segments (story_id, idx, text, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, storyID, index, text, time.Now())
	return err
}

func (s *SQLiteStore) GetStory(ctx context.Context, id string) (*StoryRecord, []string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, start_address, end_address, travel_mode, style, voice, duration_seconds, total_segments, route_km, outline, created_at
		 FROM stories WHERE id = ?`, id)

	rec, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil // Not found
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT text FROM story_segments WHERE story_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, nil, err
		}
		texts = append(texts, t)
	}
	rec.SegmentCount = len(texts)
	return rec, texts, rows.Err()
}

func (s *SQLiteStore) ListStories(ctx context.Context, limit int) ([]StoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.start_address, s.end_address, s.travel_mode, s.style, s.voice, s.duration_seconds, s.total_segments, s.route_km, s.outline, s.created_at,
		        (SELECT count(*) FROM story_segments g WHERE g.story_id = s.id)
		 FROM stories s ORDER BY s.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoryRecord
	for rows.Next() {
		var rec StoryRecord
		var outline string
		if err := rows.Scan(&rec.ID, &rec.StartAddress, &rec.EndAddress, &rec.TravelMode, &rec.Style, &rec.Voice,
			&rec.DurationSeconds, &rec.TotalSegments, &rec.RouteKm, &outline, &rec.CreatedAt, &rec.SegmentCount); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(outline), &rec.Outline)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (*StoryRecord, error) {
	var rec StoryRecord
	var outline string
	if err := row.Scan(&rec.ID, &rec.StartAddress, &rec.EndAddress, &rec.TravelMode, &rec.Style, &rec.Voice,
		&rec.DurationSeconds, &rec.TotalSegments, &rec.RouteKm, &outline, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if outline != "" {
		if err := json.Unmarshal([]byte(outline), &rec.Outline); err != nil {
			return nil, fmt.Errorf("decode outline: %w", err)
		}
	}
	return &rec, nil
}

// --- Cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		// errors other than ErrNoRows are treated as a miss
		return nil, false
	}

	// Transparent Decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		if decompressed, err := decompress(val); err == nil {
			return decompressed, true
		}
	}

	return val, true
}

var (
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// buf goes back to the pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	if compressed, err := compress(val); err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
