package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/database"
)

// Restore rebuilds a generation from the stored snapshot. It returns false
// when nothing has been stored, leaving the engine as it was.
func (e *Engine) Restore(ctx context.Context, r database.SnapshotReader) (bool, error) {
	snap, err := r.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return false, nil
	}
	if err := snap.Validate(); err != nil {
		return false, err
	}
	if snap.PaletteSize != e.opts.PaletteSize || snap.HBlocks != e.opts.HBlocks || snap.VBlocks != e.opts.VBlocks {
		return false, catalog.NewError(catalog.ErrSchemaMismatch, -1, "",
			"snapshot shape palette=%d grid=%dx%d, engine expects palette=%d grid=%dx%d",
			snap.PaletteSize, snap.HBlocks, snap.VBlocks, e.opts.PaletteSize, e.opts.HBlocks, e.opts.VBlocks)
	}

	items, err := snap.CatalogItems()
	if err != nil {
		return false, err
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	corpus, err := catalog.NewCorpus(e.opts)
	if err != nil {
		return false, err
	}
	if err := corpus.Expect(len(items)); err != nil {
		return false, err
	}
	for _, it := range items {
		if err := corpus.Add(it); err != nil {
			return false, err
		}
	}

	idx, err := e.build(corpus, newProgressReporter(nil))
	if err != nil {
		return false, err
	}
	e.publish(idx)
	return true, nil
}

// Snapshot captures the current generation for persistence.
func (e *Engine) Snapshot() (*database.Snapshot, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return database.NewSnapshot(idx, time.Now()), nil
}

// Save persists the current generation.
func (e *Engine) Save(ctx context.Context, w database.SnapshotWriter) error {
	snap, err := e.Snapshot()
	if err != nil {
		return err
	}
	if err := w.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// sanitizeForLog strips newlines from values that may come from user input.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
