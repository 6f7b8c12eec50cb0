package catalog

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/image-search/internal/features"
)

// NamedColor is an anchor colour used to bucket items by dominant colour.
type NamedColor struct {
	Name string       `json:"name" yaml:"name"`
	RGB  features.RGB `json:"rgb" yaml:"rgb"`
}

// NamedPalette is an ordered set of anchor colours. Order breaks distance ties.
type NamedPalette struct {
	colors []NamedColor
	byName map[string]int
}

// NewNamedPalette validates and copies colors.
func NewNamedPalette(colors []NamedColor) (*NamedPalette, error) {
	if len(colors) == 0 {
		return nil, errors.New("named palette must contain at least one color")
	}
	p := &NamedPalette{
		colors: append([]NamedColor(nil), colors...),
		byName: make(map[string]int, len(colors)),
	}
	for i, c := range p.colors {
		key := foldText(c.Name)
		if key == "" {
			return nil, fmt.Errorf("named color %d has no name", i)
		}
		if _, dup := p.byName[key]; dup {
			return nil, fmt.Errorf("duplicate named color %q", c.Name)
		}
		p.byName[key] = i
	}
	return p, nil
}

// DefaultNamedPalette returns the twelve anchor colours of the colour search buttons.
func DefaultNamedPalette() *NamedPalette {
	p, err := NewNamedPalette([]NamedColor{
		{"red", features.RGB{R: 205, G: 9, B: 12}},
		{"orange", features.RGB{R: 252, G: 148, B: 15}},
		{"yellow", features.RGB{R: 255, G: 255, B: 6}},
		{"green", features.RGB{R: 47, G: 204, B: 21}},
		{"teal", features.RGB{R: 44, G: 193, B: 198}},
		{"blue", features.RGB{R: 3, G: 21, B: 255}},
		{"purple", features.RGB{R: 118, G: 44, B: 168}},
		{"pink", features.RGB{R: 252, G: 152, B: 191}},
		{"white", features.RGB{R: 255, G: 255, B: 255}},
		{"gray", features.RGB{R: 153, G: 153, B: 153}},
		{"black", features.RGB{R: 0, G: 0, B: 0}},
		{"brown", features.RGB{R: 136, G: 84, B: 29}},
	})
	if err != nil {
		panic("invalid default named palette: " + err.Error())
	}
	return p
}

// Colors returns a copy of the anchor colours in declaration order.
func (p *NamedPalette) Colors() []NamedColor {
	return append([]NamedColor(nil), p.colors...)
}

// Lookup resolves a colour name case-insensitively, ignoring a leading '#'.
func (p *NamedPalette) Lookup(name string) (NamedColor, bool) {
	i, ok := p.byName[colorKey(name)]
	if !ok {
		return NamedColor{}, false
	}
	return p.colors[i], true
}

// Nearest returns the name of the anchor colour closest to c. On equal
// distance the first declared colour wins.
func (p *NamedPalette) Nearest(c features.RGB) string {
	best := 0
	bestDist := c.Distance(p.colors[0].RGB)
	for i := 1; i < len(p.colors); i++ {
		if d := c.Distance(p.colors[i].RGB); d < bestDist {
			best, bestDist = i, d
		}
	}
	return p.colors[best].Name
}
