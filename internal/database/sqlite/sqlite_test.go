package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/database"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "corpus.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(exportedAt time.Time, ids ...string) *database.Snapshot {
	s := &database.Snapshot{
		Version:     database.SnapshotVersion,
		ExportedAt:  exportedAt,
		PaletteSize: 2,
		HBlocks:     1,
		VBlocks:     2,
	}
	for i, id := range ids {
		f := float64(i)
		s.Items = append(s.Items, database.StoredItem{
			ID:            id,
			Category:      "taj mahal",
			DominantColor: "#0a1ef0",
			Histogram:     []float64{0.1, 2.0 / 3.0},
			Moments:       [][]float64{{f, f + 0.5, -3.25}, {f * 3, 1e-9, 255}},
		})
	}
	s.Buckets = []database.StoredBucket{{Name: "blue", IDs: ids}, {Name: "red", IDs: []string{}}}
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openTestStore(t)

	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot, got %v", snap)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := testSnapshot(time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC), "taj/1.jpg", "taj/2.jpg", "taj/3.jpg")

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !got.ExportedAt.Equal(want.ExportedAt) {
		t.Errorf("ExportedAt = %v, want %v", got.ExportedAt, want.ExportedAt)
	}
	got.ExportedAt = want.ExportedAt
	if !reflect.DeepEqual(got, want) {
		t.Errorf("loaded snapshot differs:\n got %+v\nwant %+v", got, want)
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Save(ctx, testSnapshot(now, "a.jpg", "b.jpg", "c.jpg")); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := s.Save(ctx, testSnapshot(now.Add(time.Hour), "d.jpg")); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stored item, got %d", n)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].ID != "d.jpg" {
		t.Errorf("expected only d.jpg, got %+v", got.Items)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snap := testSnapshot(time.Now(), "a.jpg")
	snap.Items[0].Moments = snap.Items[0].Moments[:1]

	if err := s.Save(ctx, snap); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
	if got, err := s.Load(ctx); err != nil || got != nil {
		t.Errorf("expected nothing stored, got %v, %v", got, err)
	}
}

func TestInitializeRegistersStore(t *testing.T) {
	t.Cleanup(func() { database.RegisterSnapshotStore("", nil) })

	s, err := Initialize(context.Background(), filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer s.Close()

	if name := database.BackendName(); name != "sqlite" {
		t.Errorf("expected backend sqlite, got %q", name)
	}
	if _, err := database.GetSnapshotStore(context.Background()); err != nil {
		t.Errorf("GetSnapshotStore failed: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Error("expected error for empty path")
	}
}
