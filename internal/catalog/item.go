package catalog

import (
	"github.com/kozaktomas/image-search/internal/features"
)

// Item is one corpus entry.
type Item struct {
	ID            string
	Category      string
	DominantColor features.RGB
	Histogram     []float64
	Moments       []features.Moment
	// Normalized holds the z-scored, flattened moments once the corpus is normalized.
	Normalized []float64
}

// Complete reports whether both extractors have populated the item.
func (it *Item) Complete() bool {
	return len(it.Histogram) > 0 && len(it.Moments) > 0
}

// Feature returns the flattened raw moment vector.
func (it *Item) Feature() []float64 {
	return features.Flatten(it.Moments)
}
