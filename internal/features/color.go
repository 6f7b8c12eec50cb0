// Package features extracts colour feature vectors from decoded RGBA pixel buffers.
package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for malformed hex colour strings.
var ErrInvalidColor = errors.New("invalid color")

// RGB is an 8-bit per channel colour.
type RGB struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Hex formats the colour as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Distance returns the Euclidean distance between two colours in RGB space.
func (c RGB) Distance(o RGB) float64 {
	dr := float64(c.R) - float64(o.R)
	dg := float64(c.G) - float64(o.G)
	db := float64(c.B) - float64(o.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Pixels is a decoded image: row-major straight (non-premultiplied) RGBA
// samples, 4 bytes per pixel.
type Pixels struct {
	Width  int
	Height int
	Data   []byte
}

// Count returns the number of whole pixels in the buffer.
func (p Pixels) Count() int {
	return len(p.Data) / 4
}

// Fill returns a width x height buffer where every pixel is c (alpha 255).
func Fill(width, height int, c RGB) Pixels {
	data := make([]byte, width*height*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = c.R
		data[i+1] = c.G
		data[i+2] = c.B
		data[i+3] = 0xff
	}
	return Pixels{Width: width, Height: height, Data: data}
}
