// Package sqlite stores corpus snapshots in a local SQLite file, one row per
// item, using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/image-search/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS corpus_meta (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	version      INTEGER NOT NULL,
	exported_at  TEXT NOT NULL,
	palette_size INTEGER NOT NULL,
	h_blocks     INTEGER NOT NULL,
	v_blocks     INTEGER NOT NULL,
	buckets      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS corpus_items (
	position       INTEGER PRIMARY KEY,
	item_id        TEXT NOT NULL UNIQUE,
	category       TEXT NOT NULL,
	dominant_color TEXT NOT NULL,
	histogram      TEXT NOT NULL,
	moments        TEXT NOT NULL
);`

// Store is a SnapshotWriter backed by one SQLite database file.
type Store struct {
	db *sql.DB
}

// Open creates the file and its parent directory if needed and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Initialize opens path and registers it as the "sqlite" snapshot store.
// The caller closes the returned store.
func Initialize(ctx context.Context, path string) (*Store, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	database.RegisterSnapshotStore("sqlite", func() database.SnapshotWriter { return s })
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when nothing has been saved.
func (s *Store) Load(ctx context.Context) (*database.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		snap     database.Snapshot
		exported string
		buckets  string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT version, exported_at, palette_size, h_blocks, v_blocks, buckets
		FROM corpus_meta WHERE id = 1
	`).Scan(&snap.Version, &exported, &snap.PaletteSize, &snap.HBlocks, &snap.VBlocks, &buckets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot meta: %w", err)
	}
	if snap.ExportedAt, err = time.Parse(time.RFC3339Nano, exported); err != nil {
		return nil, fmt.Errorf("parse exported_at: %w", err)
	}
	snap.ExportedAt = snap.ExportedAt.UTC()
	if err := json.Unmarshal([]byte(buckets), &snap.Buckets); err != nil {
		return nil, fmt.Errorf("decode buckets: %w", err)
	}

	if snap.Items, err = loadItems(ctx, tx); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func loadItems(ctx context.Context, tx *sql.Tx) ([]database.StoredItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, category, dominant_color, histogram, moments
		FROM corpus_items ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := []database.StoredItem{}
	for rows.Next() {
		var (
			it                 database.StoredItem
			histogram, moments string
		)
		if err := rows.Scan(&it.ID, &it.Category, &it.DominantColor, &histogram, &moments); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal([]byte(histogram), &it.Histogram); err != nil {
			return nil, fmt.Errorf("decode histogram of %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(moments), &it.Moments); err != nil {
			return nil, fmt.Errorf("decode moments of %s: %w", it.ID, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *Store) Save(ctx context.Context, snap *database.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	buckets, err := json.Marshal(snap.Buckets)
	if err != nil {
		return fmt.Errorf("encode buckets: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO corpus_meta (id, version, exported_at, palette_size, h_blocks, v_blocks, buckets)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`, snap.Version, snap.ExportedAt.UTC().Format(time.RFC3339Nano), snap.PaletteSize, snap.HBlocks, snap.VBlocks, string(buckets)); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO corpus_items (position, item_id, category, dominant_color, histogram, moments)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range snap.Items {
		histogram, err := json.Marshal(it.Histogram)
		if err != nil {
			return fmt.Errorf("encode histogram of %s: %w", it.ID, err)
		}
		moments, err := json.Marshal(it.Moments)
		if err != nil {
			return fmt.Errorf("encode moments of %s: %w", it.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, it.ID, it.Category, it.DominantColor, string(histogram), string(moments)); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}
