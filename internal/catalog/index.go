package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldText normalizes s for case-insensitive comparison.
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func colorKey(name string) string {
	return foldText(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

// Index answers category and colour queries over a normalized corpus.
// Building an index makes the corpus queryable; the index is read-only and
// safe for concurrent use.
type Index struct {
	corpus     *Corpus
	named      *NamedPalette
	categories []string            // folded categories, by item index
	buckets    map[string][]string // anchor colour name -> item IDs
}

// NewIndex derives the colour buckets of a normalized corpus.
func NewIndex(c *Corpus, named *NamedPalette) (*Index, error) {
	if err := c.requireState("index", StateNormalized); err != nil {
		return nil, err
	}

	idx := &Index{
		corpus:     c,
		named:      named,
		categories: make([]string, len(c.items)),
		buckets:    make(map[string][]string, len(named.colors)),
	}
	for _, nc := range named.colors {
		idx.buckets[nc.Name] = []string{}
	}
	for i, it := range c.items {
		idx.categories[i] = foldText(it.Category)
		name := named.Nearest(it.DominantColor)
		idx.buckets[name] = append(idx.buckets[name], it.ID)
	}

	c.state = StateQueryable
	return idx, nil
}

// Len returns the number of indexed items.
func (idx *Index) Len() int {
	return len(idx.corpus.items)
}

// Items returns the indexed items in corpus order.
func (idx *Index) Items() []*Item {
	return idx.corpus.items
}

// Item returns the item with the given ID.
func (idx *Index) Item(id string) (*Item, bool) {
	return idx.corpus.Item(id)
}

// State returns the state of the indexed corpus.
func (idx *Index) State() State {
	return idx.corpus.state
}

// Options returns the shape of the indexed corpus.
func (idx *Index) Options() Options {
	return idx.corpus.opts
}

// NamedPalette returns the anchor colours used for bucketing.
func (idx *Index) NamedPalette() *NamedPalette {
	return idx.named
}

// ByCategory returns the IDs of items whose category contains substring,
// case-insensitively, in corpus order. limit <= 0 means no limit.
func (idx *Index) ByCategory(substring string, limit int) []string {
	q := foldText(strings.TrimSpace(substring))
	ids := []string{}
	for i, cat := range idx.categories {
		if !strings.Contains(cat, q) {
			continue
		}
		ids = append(ids, idx.corpus.items[i].ID)
		if limit > 0 && len(ids) == limit {
			break
		}
	}
	return ids
}

// ByColorName returns the IDs bucketed under an anchor colour. Unknown names
// yield an empty result.
func (idx *Index) ByColorName(name string) []string {
	nc, ok := idx.named.Lookup(name)
	if !ok {
		return []string{}
	}
	return append([]string{}, idx.buckets[nc.Name]...)
}

// Buckets returns a copy of every colour bucket, including empty ones.
func (idx *Index) Buckets() map[string][]string {
	out := make(map[string][]string, len(idx.buckets))
	for name, ids := range idx.buckets {
		out[name] = append([]string{}, ids...)
	}
	return out
}
