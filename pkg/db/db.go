package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Single connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneCache removes cache entries older than the specified duration.
func (d *DB) PruneCache(olderThan time.Duration) (int64, error) {
	// Matches SQLite CURRENT_TIMESTAMP (YYYY-MM-DD HH:MM:SS)
	deadline := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	res, err := d.Exec("DELETE FROM cache WHERE created_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneStories keeps the newest keep stories and their segments.
func (d *DB) PruneStories(keep int) (int64, error) {
	res, err := d.Exec(`DELETE FROM stories WHERE id NOT IN (
		SELECT id FROM stories ORDER BY created_at DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := d.Exec("DELETE FROM story_segments WHERE story_id NOT IN (SELECT id FROM stories)"); err != nil {
		return n, err
	}
	return n, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			start_address TEXT,
			end_address TEXT,
			travel_mode TEXT,
			style TEXT,
			voice TEXT,
			duration_seconds INTEGER,
			total_segments INTEGER,
			outline TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS story_segments (
			story_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			text TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (story_id, idx)
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: Add route_km if missing
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('stories') WHERE name='route_km'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE stories ADD COLUMN route_km REAL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add route_km column: %w", err)
		}
	}

	return nil
}
