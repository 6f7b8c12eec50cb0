package database

import (
	"fmt"
	"math"
	"time"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/features"
)

// SnapshotVersion is the format version written by NewSnapshot.
const SnapshotVersion = 1

// StoredItem is the persisted form of a corpus item. Only raw features are
// stored; normalized vectors are recomputed on restore.
type StoredItem struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	DominantColor string      `json:"dominant_color"` // #rrggbb
	Histogram     []float64   `json:"histogram"`
	Moments       [][]float64 `json:"moments"` // one tuple per block, row-major
}

// StoredBucket lists the items bucketed under one named colour.
type StoredBucket struct {
	Name string   `json:"name"`
	IDs  []string `json:"ids"`
}

// Snapshot is a complete, self-describing copy of one corpus generation.
type Snapshot struct {
	Version     int            `json:"version"`
	ExportedAt  time.Time      `json:"exported_at"`
	PaletteSize int            `json:"palette_size"`
	HBlocks     int            `json:"h_blocks"`
	VBlocks     int            `json:"v_blocks"`
	Items       []StoredItem   `json:"items"`
	Buckets     []StoredBucket `json:"buckets"`
}

// NewSnapshot captures a queryable index.
func NewSnapshot(idx *catalog.Index, exportedAt time.Time) *Snapshot {
	opts := idx.Options()
	s := &Snapshot{
		Version:     SnapshotVersion,
		ExportedAt:  exportedAt.UTC(),
		PaletteSize: opts.PaletteSize,
		HBlocks:     opts.HBlocks,
		VBlocks:     opts.VBlocks,
		Items:       make([]StoredItem, 0, idx.Len()),
	}

	for _, it := range idx.Items() {
		moments := make([][]float64, len(it.Moments))
		for i, m := range it.Moments {
			moments[i] = m.Values()
		}
		s.Items = append(s.Items, StoredItem{
			ID:            it.ID,
			Category:      it.Category,
			DominantColor: it.DominantColor.Hex(),
			Histogram:     append([]float64(nil), it.Histogram...),
			Moments:       moments,
		})
	}

	buckets := idx.Buckets()
	for _, nc := range idx.NamedPalette().Colors() {
		s.Buckets = append(s.Buckets, StoredBucket{Name: nc.Name, IDs: buckets[nc.Name]})
	}
	return s
}

func schemaError(index int, id, format string, args ...any) error {
	return catalog.NewError(catalog.ErrSchemaMismatch, index, id, format, args...)
}

// Validate checks every stored vector against the snapshot shape. A snapshot
// that fails validation must not be restored.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return schemaError(-1, "", "snapshot version %d, want %d", s.Version, SnapshotVersion)
	}
	if s.PaletteSize <= 0 || s.HBlocks <= 0 || s.VBlocks <= 0 {
		return schemaError(-1, "", "invalid shape: palette=%d grid=%dx%d", s.PaletteSize, s.HBlocks, s.VBlocks)
	}

	blocks := s.HBlocks * s.VBlocks
	ids := make(map[string]bool, len(s.Items))
	for i, it := range s.Items {
		if it.ID == "" {
			return schemaError(i, "", "item has no id")
		}
		if ids[it.ID] {
			return schemaError(i, it.ID, "duplicate id")
		}
		ids[it.ID] = true

		if _, err := features.ParseHex(it.DominantColor); err != nil {
			return schemaError(i, it.ID, "dominant color: %v", err)
		}
		if len(it.Histogram) != s.PaletteSize {
			return schemaError(i, it.ID, "histogram length %d, want %d", len(it.Histogram), s.PaletteSize)
		}
		for j, v := range it.Histogram {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return schemaError(i, it.ID, "histogram bin %d = %v outside [0,1]", j, v)
			}
		}
		if len(it.Moments) != blocks {
			return schemaError(i, it.ID, "moments length %d, want %d", len(it.Moments), blocks)
		}
		for b, m := range it.Moments {
			if len(m) != features.MomentWidth {
				return schemaError(i, it.ID, "moment %d has %d values, want %d", b, len(m), features.MomentWidth)
			}
			for _, v := range m {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return schemaError(i, it.ID, "moment %d value %v is not finite", b, v)
				}
			}
		}
	}

	for _, b := range s.Buckets {
		for _, id := range b.IDs {
			if !ids[id] {
				return schemaError(-1, id, "bucket %q references unknown item", b.Name)
			}
		}
	}
	return nil
}

// CatalogItems converts the stored items back into corpus items. The
// snapshot must have passed Validate.
func (s *Snapshot) CatalogItems() ([]*catalog.Item, error) {
	items := make([]*catalog.Item, 0, len(s.Items))
	for i, st := range s.Items {
		dominant, err := features.ParseHex(st.DominantColor)
		if err != nil {
			return nil, schemaError(i, st.ID, "dominant color: %v", err)
		}
		moments := make([]features.Moment, len(st.Moments))
		for b, v := range st.Moments {
			m, err := features.MomentFromValues(v)
			if err != nil {
				return nil, schemaError(i, st.ID, "moment %d: %v", b, err)
			}
			moments[b] = m
		}
		items = append(items, &catalog.Item{
			ID:            st.ID,
			Category:      st.Category,
			DominantColor: dominant,
			Histogram:     append([]float64(nil), st.Histogram...),
			Moments:       moments,
		})
	}
	return items, nil
}

// Options returns the corpus shape stored in the snapshot, bounded by maxSize.
func (s *Snapshot) Options(maxSize int) catalog.Options {
	return catalog.Options{
		MaxSize:     maxSize,
		PaletteSize: s.PaletteSize,
		HBlocks:     s.HBlocks,
		VBlocks:     s.VBlocks,
	}
}

// String summarizes the snapshot for logs.
func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot v%d (%d items, palette %d, grid %dx%d, exported %s)",
		s.Version, len(s.Items), s.PaletteSize, s.HBlocks, s.VBlocks, s.ExportedAt.Format(time.RFC3339))
}
