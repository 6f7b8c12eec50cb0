package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/kozaktomas/image-search/internal/catalog"
)

// Metric is a distance between two feature vectors of equal length.
// Smaller is more similar; d(a, a) == 0.
type Metric interface {
	Name() string
	Distance(a, b []float64) (float64, error)
}

// Built-in metric names.
const (
	MetricMeanAbsolute = "mean-abs"
	MetricEuclidean    = "euclidean"
	MetricCosine       = "cosine"
)

// Default is the metric used when none is requested.
var Default Metric = MeanAbsolute{}

// MeanAbsolute is the Manhattan distance divided by the vector length.
type MeanAbsolute struct{}

func (MeanAbsolute) Name() string { return MetricMeanAbsolute }

func (MeanAbsolute) Distance(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a)), nil
}

// Euclidean is the L2 distance.
type Euclidean struct{}

func (Euclidean) Name() string { return MetricEuclidean }

func (Euclidean) Distance(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Cosine is 1 - cosine similarity, in [0, 2]. A zero vector is at maximum
// distance from everything except itself.
type Cosine struct{}

func (Cosine) Name() string { return MetricCosine }

func (Cosine) Distance(a, b []float64) (float64, error) {
	if err := checkLengths(a, b); err != nil {
		return 0, err
	}

	var dot, normA, normB float64
	identical := true
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
		if a[i] != b[i] {
			identical = false
		}
	}
	if identical {
		return 0, nil
	}
	if normA == 0 || normB == 0 {
		return 2, nil
	}

	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to absorb floating point error
	similarity = max(-1, min(1, similarity))
	return 1 - similarity, nil
}

func checkLengths(a, b []float64) error {
	if len(a) == 0 {
		return catalog.DimensionMismatch("", 0, len(b))
	}
	if len(a) != len(b) {
		return catalog.DimensionMismatch("", len(b), len(a))
	}
	return nil
}

// ParseMetric returns the metric registered under name. An empty name selects
// the default.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricMeanAbsolute:
		return Default, nil
	case MetricEuclidean:
		return Euclidean{}, nil
	case MetricCosine:
		return Cosine{}, nil
	default:
		return nil, fmt.Errorf("unknown metric %q (want %s, %s or %s)", name, MetricMeanAbsolute, MetricEuclidean, MetricCosine)
	}
}
