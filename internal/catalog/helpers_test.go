package catalog

import (
	"testing"

	"github.com/kozaktomas/image-search/internal/features"
)

// testOptions is a 2-bin palette with a 1x2 moment grid.
func testOptions(maxSize int) Options {
	return Options{MaxSize: maxSize, PaletteSize: 2, HBlocks: 1, VBlocks: 2}
}

// testItem builds an item whose two moment blocks are uniform grey levels a and b.
func testItem(id, category string, dominant features.RGB, a, b float64) *Item {
	return &Item{
		ID:            id,
		Category:      category,
		DominantColor: dominant,
		Histogram:     []float64{0.5, 0.25},
		Moments: []features.Moment{
			{Mean: [3]float64{a, a, a}},
			{Mean: [3]float64{b, b + 1, b + 2}},
		},
	}
}

func newTestCorpus(t *testing.T, maxSize int, items ...*Item) *Corpus {
	t.Helper()
	c, err := NewCorpus(testOptions(maxSize))
	if err != nil {
		t.Fatalf("NewCorpus failed: %v", err)
	}
	for _, it := range items {
		if err := c.Add(it); err != nil {
			t.Fatalf("Add(%s) failed: %v", it.ID, err)
		}
	}
	return c
}

func newTestIndex(t *testing.T, items ...*Item) *Index {
	t.Helper()
	c := newTestCorpus(t, 100, items...)
	if err := Normalize(c); err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	idx, err := NewIndex(c, DefaultNamedPalette())
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	return idx
}
