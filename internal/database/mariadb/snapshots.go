package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kozaktomas/image-search/internal/database"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS corpus_snapshots (
	id          BIGINT AUTO_INCREMENT PRIMARY KEY,
	version     INT NOT NULL,
	item_count  INT NOT NULL,
	exported_at DATETIME(6) NOT NULL,
	body        LONGBLOB NOT NULL
)`

// EnsureSchema creates the snapshot table if it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("create corpus_snapshots: %w", err)
	}
	return nil
}

// Load returns the most recent snapshot, or nil when none is stored.
func (p *Pool) Load(ctx context.Context) (*database.Snapshot, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT body FROM corpus_snapshots ORDER BY id DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var snap database.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save stores snap and removes older snapshots in one transaction.
func (p *Pool) Save(ctx context.Context, snap *database.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO corpus_snapshots (version, item_count, exported_at, body) VALUES (?, ?, ?, ?)`,
		snap.Version, len(snap.Items), snap.ExportedAt.UTC(), body)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_snapshots WHERE id < ?`, id); err != nil {
		return fmt.Errorf("delete old snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (p *Pool) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpus_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
