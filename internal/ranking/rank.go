// Package ranking orders corpus items by distance to a query vector.
package ranking

import (
	"errors"
	"sort"

	"github.com/kozaktomas/image-search/internal/catalog"
)

// Result is one ranked item.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Source provides the items to rank. *catalog.Index satisfies it. Sources
// that are not queryable are rejected with ErrIncompleteCorpus.
type Source interface {
	Items() []*catalog.Item
	State() catalog.State
}

func requireQueryable(op string, src Source) error {
	if st := src.State(); st != catalog.StateQueryable {
		return catalog.NewError(catalog.ErrIncompleteCorpus, -1, "", "%s requires a %s corpus, corpus is %s", op, catalog.StateQueryable, st)
	}
	return nil
}

// Rank scores every item's normalized vector against query and returns the
// results in ascending distance. Ties keep corpus order. A nil metric selects
// Default.
func Rank(query []float64, src Source, metric Metric) ([]Result, error) {
	if err := requireQueryable("rank", src); err != nil {
		return nil, err
	}
	if metric == nil {
		metric = Default
	}
	items := src.Items()
	results := make([]Result, 0, len(items))
	for _, it := range items {
		d, err := metric.Distance(query, it.Normalized)
		if err != nil {
			var e *catalog.Error
			if errors.As(err, &e) {
				e.ID = it.ID
			}
			return nil, err
		}
		results = append(results, Result{ID: it.ID, Score: d})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results, nil
}

// RankByBin orders items by the share of pixels in histogram bin, largest
// first. Ties keep corpus order.
func RankByBin(src Source, bin int) ([]Result, error) {
	if err := requireQueryable("rank by bin", src); err != nil {
		return nil, err
	}
	items := src.Items()
	results := make([]Result, 0, len(items))
	for _, it := range items {
		if bin < 0 || bin >= len(it.Histogram) {
			return nil, &catalog.Error{
				Kind:   catalog.ErrDimensionMismatch,
				Index:  bin,
				ID:     it.ID,
				Detail: "histogram bin out of range",
			}
		}
		results = append(results, Result{ID: it.ID, Score: it.Histogram[bin]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Truncate returns at most limit results. limit <= 0 means no limit.
func Truncate(results []Result, limit int) []Result {
	if limit <= 0 || limit >= len(results) {
		return results
	}
	return results[:limit]
}

// Within keeps the results whose score is at most maxDistance. Results must be
// in ascending order.
func Within(results []Result, maxDistance float64) []Result {
	n := sort.Search(len(results), func(i int) bool {
		return results[i].Score > maxDistance
	})
	return results[:n]
}

// IDs extracts the result IDs in order.
func IDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
