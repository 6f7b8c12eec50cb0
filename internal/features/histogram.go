package features

import (
	"errors"
	"fmt"
)

// Default thresholds of the palette membership test.
const (
	DefaultTotalThreshold   = 160
	DefaultChannelThreshold = 70
)

// Palette is an immutable ordered set of reference colours that defines the
// identity of histogram bins.
type Palette struct {
	names            []string
	colors           []RGB
	totalThreshold   int
	channelThreshold int
}

// NewPalette copies colors and names into a new palette. names may be nil; when
// given it must be the same length as colors.
func NewPalette(colors []RGB, names []string, totalThreshold, channelThreshold int) (*Palette, error) {
	if len(colors) == 0 {
		return nil, errors.New("palette must contain at least one color")
	}
	if names != nil && len(names) != len(colors) {
		return nil, fmt.Errorf("palette has %d colors but %d names", len(colors), len(names))
	}
	if totalThreshold <= 0 || channelThreshold <= 0 {
		return nil, fmt.Errorf("palette thresholds must be positive (total=%d, channel=%d)", totalThreshold, channelThreshold)
	}

	p := &Palette{
		colors:           append([]RGB(nil), colors...),
		names:            make([]string, len(colors)),
		totalThreshold:   totalThreshold,
		channelThreshold: channelThreshold,
	}
	copy(p.names, names)
	return p, nil
}

// Size returns the number of bins.
func (p *Palette) Size() int {
	return len(p.colors)
}

// Color returns the reference colour of bin i.
func (p *Palette) Color(i int) RGB {
	return p.colors[i]
}

// Colors returns a copy of the reference colours.
func (p *Palette) Colors() []RGB {
	return append([]RGB(nil), p.colors...)
}

// Names returns a copy of the bin names (empty strings for unnamed bins).
func (p *Palette) Names() []string {
	return append([]string(nil), p.names...)
}

// IndexOf returns the bin index for a name, or -1.
func (p *Palette) IndexOf(name string) int {
	for i, n := range p.names {
		if n != "" && n == name {
			return i
		}
	}
	return -1
}

// Thresholds returns the total and per-channel difference ceilings.
func (p *Palette) Thresholds() (total, channel int) {
	return p.totalThreshold, p.channelThreshold
}

// Histogram returns, for every palette entry, the proportion of pixels that fall
// within the thresholds of that entry. A pixel may count towards several bins,
// so the sum of the result ranges over [0, Size()].
func (p *Palette) Histogram(px Pixels) []float64 {
	hist := make([]float64, len(p.colors))
	counts := make([]int, len(p.colors))

	data := px.Data
	n := px.Count()
	for i := 0; i < n*4; i += 4 {
		r, g, b := int(data[i]), int(data[i+1]), int(data[i+2])
		for j, ref := range p.colors {
			dr := absDiff(int(ref.R), r)
			dg := absDiff(int(ref.G), g)
			db := absDiff(int(ref.B), b)
			if dr+dg+db < p.totalThreshold &&
				dr < p.channelThreshold && dg < p.channelThreshold && db < p.channelThreshold {
				counts[j]++
			}
		}
	}

	if n == 0 {
		return hist
	}
	for j, c := range counts {
		hist[j] = float64(c) / float64(n)
	}
	return hist
}

// CountPixels is the free-function form of Palette.Histogram.
func CountPixels(px Pixels, palette *Palette) []float64 {
	return palette.Histogram(px)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
