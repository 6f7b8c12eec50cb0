// Package catalog holds the image corpus, its normalization and the
// category and colour query index built on top of it.
package catalog

import (
	"fmt"
	"math"
)

// Options fixes the shape of every item in a corpus.
type Options struct {
	MaxSize     int // maximum number of items
	PaletteSize int // histogram length
	HBlocks     int // moment grid columns
	VBlocks     int // moment grid rows
}

// Corpus is an ordered, bounded collection of items for one ingestion
// generation. It is append-only until normalized and read-only afterwards.
// A Corpus has a single writer; it does no locking of its own.
type Corpus struct {
	opts     Options
	items    []*Item
	ids      map[string]int
	state    State
	expected int
}

// NewCorpus returns an empty corpus.
func NewCorpus(opts Options) (*Corpus, error) {
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("corpus max size must be positive, got %d", opts.MaxSize)
	}
	if opts.PaletteSize <= 0 || opts.HBlocks <= 0 || opts.VBlocks <= 0 {
		return nil, fmt.Errorf("invalid corpus shape: palette=%d grid=%dx%d", opts.PaletteSize, opts.HBlocks, opts.VBlocks)
	}
	return &Corpus{
		opts: opts,
		ids:  make(map[string]int),
	}, nil
}

// Options returns the corpus shape.
func (c *Corpus) Options() Options {
	return c.opts
}

// State returns the pipeline state.
func (c *Corpus) State() State {
	return c.state
}

// Len returns the number of items.
func (c *Corpus) Len() int {
	return len(c.items)
}

// Items returns the items in insertion order. Callers must not modify them.
func (c *Corpus) Items() []*Item {
	return c.items
}

// Item returns the item with the given ID.
func (c *Corpus) Item(id string) (*Item, bool) {
	i, ok := c.ids[id]
	if !ok {
		return nil, false
	}
	return c.items[i], true
}

// Expect declares how many items ingestion will deliver in total. Normalize
// refuses to run while fewer items have been added.
func (c *Corpus) Expect(n int) error {
	if c.state > StateIngesting {
		return NewError(ErrIncompleteCorpus, -1, "", "corpus is %s", c.state)
	}
	if n < len(c.items) {
		return fmt.Errorf("expected %d items but %d already added", n, len(c.items))
	}
	c.expected = n
	return nil
}

// Pending returns the number of expected items not yet added.
func (c *Corpus) Pending() int {
	if c.expected <= len(c.items) {
		return 0
	}
	return c.expected - len(c.items)
}

// Add appends a fully extracted item. It fails with ErrCapacityExceeded once
// MaxSize items are held; items already added are unaffected.
func (c *Corpus) Add(it *Item) error {
	if c.state > StateIngesting {
		return NewError(ErrIncompleteCorpus, -1, it.ID, "corpus is %s and no longer accepts items", c.state)
	}
	index := len(c.items)
	if index >= c.opts.MaxSize {
		return NewError(ErrCapacityExceeded, index, it.ID, "corpus holds at most %d items", c.opts.MaxSize)
	}
	if err := c.validate(index, it); err != nil {
		return err
	}

	c.items = append(c.items, it)
	c.ids[it.ID] = index
	c.state = StateIngesting
	return nil
}

func (c *Corpus) validate(index int, it *Item) error {
	if it.ID == "" {
		return NewError(ErrSchemaMismatch, index, "", "item has no id")
	}
	if _, dup := c.ids[it.ID]; dup {
		return NewError(ErrSchemaMismatch, index, it.ID, "duplicate id")
	}
	if !it.Complete() {
		return NewError(ErrIncompleteCorpus, index, it.ID, "histogram or moments not computed")
	}
	if len(it.Histogram) != c.opts.PaletteSize {
		return NewError(ErrSchemaMismatch, index, it.ID, "histogram length %d, want %d", len(it.Histogram), c.opts.PaletteSize)
	}
	if want := c.opts.HBlocks * c.opts.VBlocks; len(it.Moments) != want {
		return NewError(ErrSchemaMismatch, index, it.ID, "moments length %d, want %d", len(it.Moments), want)
	}
	for j, v := range it.Histogram {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return NewError(ErrSchemaMismatch, index, it.ID, "histogram bin %d = %v outside [0,1]", j, v)
		}
	}
	for _, v := range it.Feature() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewError(ErrSchemaMismatch, index, it.ID, "moment value %v is not finite", v)
		}
	}
	return nil
}

// requireState returns ErrIncompleteCorpus unless the corpus is in one of states.
func (c *Corpus) requireState(op string, states ...State) error {
	for _, s := range states {
		if c.state == s {
			return nil
		}
	}
	return NewError(ErrIncompleteCorpus, -1, "", "%s requires a %s corpus, corpus is %s", op, states[0], c.state)
}

