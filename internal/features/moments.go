package features

import (
	"errors"
	"fmt"
)

// Default block grid used for colour moments.
const (
	DefaultHBlocks = 3
	DefaultVBlocks = 3
)

var (
	// ErrInvalidPixels is returned when a buffer does not match its dimensions.
	ErrInvalidPixels = errors.New("invalid pixel buffer")
	// ErrImageTooSmall is returned when the image has fewer pixels than blocks
	// on either axis, which would leave empty blocks.
	ErrImageTooSmall = errors.New("image smaller than block grid")
)

// Moment is the colour descriptor of one block. Only the mean is computed;
// higher moments extend this struct, blockAccumulator and Values.
type Moment struct {
	Mean [3]float64 `json:"mean"`
}

// MomentWidth is the number of values a Moment contributes to a flattened vector.
const MomentWidth = 3

// Values returns the descriptor as a flat tuple.
func (m Moment) Values() []float64 {
	return []float64{m.Mean[0], m.Mean[1], m.Mean[2]}
}

// MomentFromValues rebuilds a Moment from its flat tuple.
func MomentFromValues(v []float64) (Moment, error) {
	if len(v) != MomentWidth {
		return Moment{}, fmt.Errorf("moment needs %d values, got %d", MomentWidth, len(v))
	}
	return Moment{Mean: [3]float64{v[0], v[1], v[2]}}, nil
}

type blockAccumulator struct {
	sum [3]float64
	n   int
}

func (a *blockAccumulator) add(r, g, b byte) {
	a.sum[0] += float64(r)
	a.sum[1] += float64(g)
	a.sum[2] += float64(b)
	a.n++
}

func (a *blockAccumulator) moment() Moment {
	n := float64(a.n)
	return Moment{Mean: [3]float64{a.sum[0] / n, a.sum[1] / n, a.sum[2] / n}}
}

// Moments partitions the image into hBlocks x vBlocks blocks of
// floor(width/hBlocks) x floor(height/vBlocks) pixels and returns the mean
// colour of each block in row-major block order. Pixels in the right and bottom
// remainder strips belong to no block and are ignored.
func Moments(px Pixels, hBlocks, vBlocks int) ([]Moment, error) {
	if hBlocks <= 0 || vBlocks <= 0 {
		return nil, fmt.Errorf("%w: block grid %dx%d", ErrInvalidPixels, hBlocks, vBlocks)
	}
	if px.Width < 0 || px.Height < 0 || len(px.Data) != px.Width*px.Height*4 {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidPixels, px.Width, px.Height, len(px.Data))
	}

	blockW := px.Width / hBlocks
	blockH := px.Height / vBlocks
	if blockW == 0 || blockH == 0 {
		return nil, fmt.Errorf("%w: %dx%d for %dx%d blocks", ErrImageTooSmall, px.Width, px.Height, hBlocks, vBlocks)
	}

	out := make([]Moment, 0, hBlocks*vBlocks)
	for row := range vBlocks {
		for col := range hBlocks {
			var acc blockAccumulator
			for y := row * blockH; y < (row+1)*blockH; y++ {
				off := (y*px.Width + col*blockW) * 4
				for x := 0; x < blockW; x++ {
					i := off + x*4
					acc.add(px.Data[i], px.Data[i+1], px.Data[i+2])
				}
			}
			out = append(out, acc.moment())
		}
	}
	return out, nil
}

// Flatten concatenates the value tuples of every moment.
func Flatten(moments []Moment) []float64 {
	out := make([]float64, 0, len(moments)*MomentWidth)
	for _, m := range moments {
		out = append(out, m.Values()...)
	}
	return out
}
