package catalog

import (
	"math"
)

// minStdDev is the smallest standard deviation treated as non-zero.
const minStdDev = 1e-12

// Normalize z-scores the flattened moment vectors of every item across the
// corpus (population standard deviation) and freezes the corpus. It requires
// an ingesting corpus with no pending items. Nothing is written to the items
// unless every dimension normalizes.
func Normalize(c *Corpus) error {
	if err := c.requireState("normalize", StateIngesting); err != nil {
		return err
	}
	if pending := c.Pending(); pending > 0 {
		return NewError(ErrIncompleteCorpus, c.Len(), "", "%d of %d items not ingested", pending, c.expected)
	}

	vectors := make([][]float64, len(c.items))
	dim := -1
	for i, it := range c.items {
		if !it.Complete() {
			return NewError(ErrIncompleteCorpus, i, it.ID, "moments not computed")
		}
		v := it.Feature()
		if dim == -1 {
			dim = len(v)
		}
		if len(v) != dim {
			return NewError(ErrSchemaMismatch, i, it.ID, "moment vector length %d, want %d", len(v), dim)
		}
		vectors[i] = v
	}

	n := float64(len(vectors))
	mean := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= n
	}

	std := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			d := x - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] < minStdDev || math.IsNaN(std[j]) {
			return NewError(ErrDegenerateDimension, j, "", "zero variance across %d items", len(vectors))
		}
	}

	for _, v := range vectors {
		for j := range v {
			v[j] = (v[j] - mean[j]) / std[j]
		}
	}
	for i, it := range c.items {
		it.Normalized = vectors[i]
	}
	c.state = StateNormalized
	return nil
}
