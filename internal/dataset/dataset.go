// Package dataset reads image manifests of the form
// {"images":[{"path":..., "class":..., "dominantcolor":"#rrggbb"}]}.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kozaktomas/image-search/internal/engine"
)

// Image is one manifest entry.
type Image struct {
	Path          string `json:"path"`
	Class         string `json:"class"`
	DominantColor string `json:"dominantcolor,omitempty"`
}

// Dataset is an ordered image manifest.
type Dataset struct {
	Images []Image `json:"images"`
}

// Read decodes a manifest and checks that every entry has a path.
func Read(r io.Reader) (*Dataset, error) {
	var d Dataset
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	for i, img := range d.Images {
		if strings.TrimSpace(img.Path) == "" {
			return nil, fmt.Errorf("dataset image %d has no path", i)
		}
	}
	return &d, nil
}

// Load reads the manifest at path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dataset %s not found", path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Select keeps at most perCategory images of each listed category, in
// manifest order. Classes are matched case-insensitively. perCategory <= 0
// keeps every image of a listed category; an empty list keeps all classes.
func (d *Dataset) Select(categories []string, perCategory int) *Dataset {
	allowed := make(map[string]bool, len(categories))
	for _, c := range categories {
		allowed[strings.ToLower(strings.TrimSpace(c))] = true
	}

	counts := make(map[string]int)
	out := &Dataset{Images: []Image{}}
	for _, img := range d.Images {
		class := strings.ToLower(strings.TrimSpace(img.Class))
		if len(allowed) > 0 && !allowed[class] {
			continue
		}
		if perCategory > 0 && counts[class] >= perCategory {
			continue
		}
		counts[class]++
		out.Images = append(out.Images, img)
	}
	return out
}

// Records converts the manifest into ingestion records.
func (d *Dataset) Records() []engine.Record {
	records := make([]engine.Record, len(d.Images))
	for i, img := range d.Images {
		records[i] = engine.Record{
			ID:            img.Path,
			Category:      img.Class,
			DominantColor: img.DominantColor,
		}
	}
	return records
}
