// Package pixelsource turns stored images into RGBA buffers for feature
// extraction.
package pixelsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/features"
)

// DefaultMaxImageSize bounds the longer side of a decoded image.
const DefaultMaxImageSize = constants.MaxImageSize

// ErrNotFound is returned when an image does not exist in the source.
var ErrNotFound = errors.New("image not found")

// Source yields decoded pixels for an item ID.
type Source interface {
	Pixels(ctx context.Context, id string) (features.Pixels, error)
}

// FileSource reads images from files below Root. IDs are slash-separated
// paths relative to Root.
type FileSource struct {
	Root         string
	MaxImageSize int // <= 0 disables downscaling
}

// NewFileSource creates a FileSource with the default size bound.
func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root, MaxImageSize: DefaultMaxImageSize}
}

// Pixels reads and decodes the image stored under id.
func (s *FileSource) Pixels(ctx context.Context, id string) (features.Pixels, error) {
	path, err := s.resolve(id)
	if err != nil {
		return features.Pixels{}, err
	}

	if err := ctx.Err(); err != nil {
		return features.Pixels{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return features.Pixels{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return features.Pixels{}, fmt.Errorf("failed to read image %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return features.Pixels{}, err
	}

	return Decode(data, s.MaxImageSize)
}

// resolve maps id to a path inside Root, rejecting escapes.
func (s *FileSource) resolve(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("empty image id")
	}
	if filepath.IsAbs(id) {
		return "", fmt.Errorf("image id %q must be relative", id)
	}
	clean := filepath.Clean(filepath.FromSlash(id))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("image id %q escapes the image root", id)
	}
	return filepath.Join(s.Root, clean), nil
}

// Decode decodes image bytes and downscales them to fit within maxSize.
func Decode(data []byte, maxSize int) (features.Pixels, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return features.Pixels{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img, maxSize), nil
}

// FromImage converts img into a row-major, non-premultiplied RGBA buffer,
// scaling it down to fit within maxSize while keeping the aspect ratio.
func FromImage(img image.Image, maxSize int) features.Pixels {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	newWidth, newHeight := fitWithin(width, height, maxSize)

	dst := image.NewNRGBA(image.Rect(0, 0, newWidth, newHeight))
	if newWidth == width && newHeight == height {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	}

	return features.Pixels{Width: newWidth, Height: newHeight, Data: dst.Pix}
}

// fitWithin returns dimensions no larger than maxSize on either side.
func fitWithin(width, height, maxSize int) (int, int) {
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return width, height
	}
	if width > height {
		return maxSize, max(1, int(float64(height)*float64(maxSize)/float64(width)))
	}
	return max(1, int(float64(width)*float64(maxSize)/float64(height))), maxSize
}

// ToImage wraps a pixel buffer as an image without copying.
func ToImage(px features.Pixels) *image.NRGBA {
	return &image.NRGBA{
		Pix:    px.Data,
		Stride: px.Width * 4,
		Rect:   image.Rect(0, 0, px.Width, px.Height),
	}
}
