// Package engine owns the queryable corpus generation and builds new
// generations from image records or stored snapshots.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/features"
	"github.com/kozaktomas/image-search/internal/pixelsource"
	"github.com/kozaktomas/image-search/internal/ranking"
)

// ErrNotFound is returned when a query names an item that is not in the
// current generation.
var ErrNotFound = errors.New("item not found")

// Config wires an engine to its palettes and pixel source.
type Config struct {
	Palette *features.Palette
	Named   *catalog.NamedPalette
	Options catalog.Options
	Source  pixelsource.Source // needed by Ingest only
}

// Engine serves queries against the current generation while new
// generations are built privately and swapped in on success.
type Engine struct {
	palette *features.Palette
	named   *catalog.NamedPalette
	opts    catalog.Options
	source  pixelsource.Source

	buildMu sync.Mutex // one build at a time

	mu         sync.RWMutex
	current    *catalog.Index
	generation uint64
}

// New validates cfg and returns an engine with no generation.
func New(cfg Config) (*Engine, error) {
	if cfg.Palette == nil {
		return nil, errors.New("engine needs a histogram palette")
	}
	if cfg.Named == nil {
		cfg.Named = catalog.DefaultNamedPalette()
	}
	if cfg.Options.PaletteSize == 0 {
		cfg.Options.PaletteSize = cfg.Palette.Size()
	}
	if cfg.Options.PaletteSize != cfg.Palette.Size() {
		return nil, fmt.Errorf("palette has %d colors but corpus expects %d", cfg.Palette.Size(), cfg.Options.PaletteSize)
	}
	// Validates the remaining options.
	if _, err := catalog.NewCorpus(cfg.Options); err != nil {
		return nil, err
	}

	return &Engine{
		palette: cfg.Palette,
		named:   cfg.Named,
		opts:    cfg.Options,
		source:  cfg.Source,
	}, nil
}

// Palette returns the histogram palette.
func (e *Engine) Palette() *features.Palette {
	return e.palette
}

// NamedPalette returns the anchor colours used for buckets.
func (e *Engine) NamedPalette() *catalog.NamedPalette {
	return e.named
}

// Options returns the corpus shape of every generation.
func (e *Engine) Options() catalog.Options {
	return e.opts
}

// Status describes the current generation.
type Status struct {
	State      string `json:"state"`
	Generation uint64 `json:"generation"`
	Items      int    `json:"items"`
}

// Status reports whether the engine is queryable and how large it is.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return Status{State: catalog.StateEmpty.String()}
	}
	return Status{State: catalog.StateQueryable.String(), Generation: e.generation, Items: e.current.Len()}
}

// Generation returns the number of generations published so far.
func (e *Engine) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}

// publish swaps in a new generation and returns its number.
func (e *Engine) publish(idx *catalog.Index) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = idx
	e.generation++
	return e.generation
}

// index returns the current generation, or ErrIncompleteCorpus before the
// first one is published.
func (e *Engine) index() (*catalog.Index, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, catalog.NewError(catalog.ErrIncompleteCorpus, -1, "", "no queryable generation")
	}
	return e.current, nil
}

// ByCategory returns the IDs whose category contains substring.
func (e *Engine) ByCategory(substring string, limit int) ([]string, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return idx.ByCategory(substring, limit), nil
}

// ByColor returns the IDs bucketed under a named colour.
func (e *Engine) ByColor(name string) ([]string, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return idx.ByColorName(name), nil
}

// Buckets returns every colour bucket of the current generation.
func (e *Engine) Buckets() (map[string][]string, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	return idx.Buckets(), nil
}

// Item returns an item of the current generation.
func (e *Engine) Item(id string) (*catalog.Item, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	it, ok := idx.Item(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return it, nil
}

// SimilarQuery parameterizes a similarity search.
type SimilarQuery struct {
	ID          string
	Limit       int            // <= 0 means no limit
	MaxDistance *float64       // nil means no threshold; 0 keeps exact matches
	Metric      ranking.Metric // nil selects ranking.Default
}

// Similar ranks the corpus by distance to the item q.ID. The query item
// itself is left out of the results.
func (e *Engine) Similar(q SimilarQuery) ([]ranking.Result, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	it, ok := idx.Item(q.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, q.ID)
	}

	results, err := ranking.Rank(it.Normalized, idx, q.Metric)
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, r := range results {
		if r.ID != it.ID {
			filtered = append(filtered, r)
		}
	}
	if q.MaxDistance != nil {
		filtered = ranking.Within(filtered, *q.MaxDistance)
	}
	return ranking.Truncate(filtered, q.Limit), nil
}

// MostOfColor ranks items by the share of pixels matching a histogram
// palette colour. An unknown colour yields no results.
func (e *Engine) MostOfColor(color string, limit int) ([]ranking.Result, error) {
	idx, err := e.index()
	if err != nil {
		return nil, err
	}
	bin := e.palette.IndexOf(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(color), "#")))
	if bin < 0 {
		return []ranking.Result{}, nil
	}
	results, err := ranking.RankByBin(idx, bin)
	if err != nil {
		return nil, err
	}
	return ranking.Truncate(results, limit), nil
}
