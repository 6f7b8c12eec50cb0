package pixelsource

import (
	"errors"
	"fmt"

	"github.com/EdlinOrg/prominentcolor"

	"github.com/kozaktomas/image-search/internal/features"
)

// DominantColor estimates the most prominent colour of px with k-means.
func DominantColor(px features.Pixels) (features.RGB, error) {
	if px.Width <= 0 || px.Height <= 0 || len(px.Data) != px.Width*px.Height*4 {
		return features.RGB{}, features.ErrInvalidPixels
	}

	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, ToImage(px))
	if err != nil {
		return features.RGB{}, fmt.Errorf("failed to extract dominant color: %w", err)
	}
	var best *prominentcolor.ColorItem
	for i, item := range colors {
		if best == nil || item.Cnt > best.Cnt {
			best = &colors[i]
		}
	}
	if best == nil {
		return features.RGB{}, errors.New("no dominant color found")
	}

	c := best.Color
	return features.RGB{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B)}, nil
}
