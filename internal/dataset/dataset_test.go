package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kozaktomas/image-search/internal/engine"
)

const manifest = `{
  "images": [
    {"path": "eiffel/1.jpg", "class": "eiffel tower", "dominantcolor": "#a0b0c0"},
    {"path": "eiffel/2.jpg", "class": "Eiffel Tower", "dominantcolor": "#ffffff"},
    {"path": "taj/1.jpg", "class": "taj mahal", "dominantcolor": "#fefefe"},
    {"path": "misc/1.jpg", "class": "my cat"},
    {"path": "eiffel/3.jpg", "class": "eiffel tower", "dominantcolor": "#000000"}
  ]
}`

func paths(d *Dataset) []string {
	out := make([]string, len(d.Images))
	for i, img := range d.Images {
		out[i] = img.Path
	}
	return out
}

func TestRead(t *testing.T) {
	d, err := Read(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(d.Images) != 5 {
		t.Fatalf("expected 5 images, got %d", len(d.Images))
	}
	if d.Images[0].DominantColor != "#a0b0c0" || d.Images[3].DominantColor != "" {
		t.Errorf("unexpected dominant colors %+v", d.Images)
	}
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "images: []"},
		{"missing path", `{"images":[{"class":"x"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tc.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(d.Images) != 5 {
		t.Errorf("expected 5 images, got %d", len(d.Images))
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSelect(t *testing.T) {
	d, err := Read(strings.NewReader(manifest))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		categories  []string
		perCategory int
		expected    []string
	}{
		{"all", nil, 0, []string{"eiffel/1.jpg", "eiffel/2.jpg", "taj/1.jpg", "misc/1.jpg", "eiffel/3.jpg"}},
		{"one per category", []string{"eiffel tower", "taj mahal"}, 1, []string{"eiffel/1.jpg", "taj/1.jpg"}},
		{"two per category", []string{"eiffel tower"}, 2, []string{"eiffel/1.jpg", "eiffel/2.jpg"}},
		{"unlimited listed only", []string{"EIFFEL TOWER"}, 0, []string{"eiffel/1.jpg", "eiffel/2.jpg", "eiffel/3.jpg"}},
		{"unknown category", []string{"stonehenge"}, 1, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := paths(d.Select(tc.categories, tc.perCategory))
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Select = %v, want %v", got, tc.expected)
			}
		})
	}
}

func TestRecords(t *testing.T) {
	d := &Dataset{Images: []Image{{Path: "a.jpg", Class: "taj mahal", DominantColor: "#010203"}}}
	expected := []engine.Record{{ID: "a.jpg", Category: "taj mahal", DominantColor: "#010203"}}
	if got := d.Records(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Records = %+v, want %+v", got, expected)
	}
}
