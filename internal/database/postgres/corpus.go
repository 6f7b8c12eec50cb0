package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/features"
)

// CorpusRepository provides PostgreSQL-backed snapshot storage. Histograms are
// stored as pgvector vectors plus an exact float8 copy, moments as flattened
// float arrays.
type CorpusRepository struct {
	pool *Pool
}

// NewCorpusRepository creates a new PostgreSQL corpus repository
func NewCorpusRepository(pool *Pool) *CorpusRepository {
	return &CorpusRepository{pool: pool}
}

// Load returns the latest snapshot, or nil if none has been saved
func (r *CorpusRepository) Load(ctx context.Context) (*database.Snapshot, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var snap database.Snapshot
	var snapshotID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id, version, exported_at, palette_size, h_blocks, v_blocks
		FROM corpus_snapshots
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&snapshotID, &snap.Version, &snap.ExportedAt, &snap.PaletteSize, &snap.HBlocks, &snap.VBlocks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	snap.ExportedAt = snap.ExportedAt.UTC()

	if snap.Items, err = loadItems(ctx, tx, snapshotID); err != nil {
		return nil, err
	}
	if snap.Buckets, err = loadBuckets(ctx, tx, snapshotID); err != nil {
		return nil, err
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot %d: %w", snapshotID, err)
	}
	return &snap, nil
}

func loadItems(ctx context.Context, tx *sql.Tx, snapshotID int64) ([]database.StoredItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, category, dominant_color, histogram, histogram_exact, moments
		FROM corpus_items
		WHERE snapshot_id = $1
		ORDER BY position
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot items: %w", err)
	}
	defer rows.Close()

	items := []database.StoredItem{}
	for rows.Next() {
		var it database.StoredItem
		var hist pgvector.Vector
		var exact, flat pq.Float64Array
		if err := rows.Scan(&it.ID, &it.Category, &it.DominantColor, &hist, &exact, &flat); err != nil {
			return nil, fmt.Errorf("scan snapshot item: %w", err)
		}
		it.Histogram = storedHistogram(exact, hist)
		it.Moments = unflatten(flat)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot items: %w", err)
	}
	return items, nil
}

func loadBuckets(ctx context.Context, tx *sql.Tx, snapshotID int64) ([]database.StoredBucket, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT name, item_ids
		FROM corpus_buckets
		WHERE snapshot_id = $1
		ORDER BY position
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot buckets: %w", err)
	}
	defer rows.Close()

	var buckets []database.StoredBucket
	for rows.Next() {
		var b database.StoredBucket
		var ids pq.StringArray
		if err := rows.Scan(&b.Name, &ids); err != nil {
			return nil, fmt.Errorf("scan snapshot bucket: %w", err)
		}
		b.IDs = append([]string{}, ids...)
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot buckets: %w", err)
	}
	return buckets, nil
}

// Save stores the snapshot as the new latest one and drops older snapshots
// in the same transaction.
func (r *CorpusRepository) Save(ctx context.Context, snap *database.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid snapshot: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var snapshotID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO corpus_snapshots (version, exported_at, palette_size, h_blocks, v_blocks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, snap.Version, snap.ExportedAt, snap.PaletteSize, snap.HBlocks, snap.VBlocks).Scan(&snapshotID)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO corpus_items (snapshot_id, position, item_id, category, dominant_color, histogram, histogram_exact, moments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare item insert: %w", err)
	}
	defer itemStmt.Close()

	for i, it := range snap.Items {
		hist := pgvector.NewVector(toFloat32(it.Histogram))
		if _, err := itemStmt.ExecContext(ctx, snapshotID, i, it.ID, it.Category, it.DominantColor,
			hist, pq.Float64Array(it.Histogram), pq.Float64Array(flatten(it.Moments))); err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}

	for i, b := range snap.Buckets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO corpus_buckets (snapshot_id, position, name, item_ids)
			VALUES ($1, $2, $3, $4)
		`, snapshotID, i, b.Name, pq.Array(b.IDs)); err != nil {
			return fmt.Errorf("insert bucket %s: %w", b.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM corpus_snapshots WHERE id <> $1", snapshotID); err != nil {
		return fmt.Errorf("delete old snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Count returns the number of items in the latest snapshot
func (r *CorpusRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM corpus_items
		WHERE snapshot_id = (SELECT MAX(id) FROM corpus_snapshots)
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count corpus items: %w", err)
	}
	return count, nil
}

// storedHistogram prefers the exact column; rows without it come from the
// float32 vector.
func storedHistogram(exact pq.Float64Array, vec pgvector.Vector) []float64 {
	if exact != nil {
		return append([]float64(nil), exact...)
	}
	return toFloat64(vec.Slice())
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func flatten(moments [][]float64) []float64 {
	out := make([]float64, 0, len(moments)*features.MomentWidth)
	for _, m := range moments {
		out = append(out, m...)
	}
	return out
}

// unflatten splits a stored moment array into per-block tuples. A trailing
// partial tuple is kept so Validate can reject it.
func unflatten(flat []float64) [][]float64 {
	out := make([][]float64, 0, (len(flat)+features.MomentWidth-1)/features.MomentWidth)
	for start := 0; start < len(flat); start += features.MomentWidth {
		end := min(start+features.MomentWidth, len(flat))
		out = append(out, append([]float64(nil), flat[start:end]...))
	}
	return out
}
