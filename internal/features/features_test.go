package features

import (
	"errors"
	"math"
	"testing"
)

func testPalette(t *testing.T) *Palette {
	t.Helper()
	colors := []RGB{
		{204, 0, 0}, {251, 148, 11}, {255, 255, 0}, {0, 204, 0},
		{3, 192, 198}, {0, 0, 255}, {118, 44, 167}, {255, 152, 191},
		{255, 255, 255}, {153, 153, 153}, {0, 0, 0}, {136, 84, 24},
	}
	p, err := NewPalette(colors, nil, DefaultTotalThreshold, DefaultChannelThreshold)
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}
	return p
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		input    string
		expected RGB
		wantErr  bool
	}{
		{"#ff0000", RGB{255, 0, 0}, false},
		{"00ff00", RGB{0, 255, 0}, false},
		{" #0A0b0C ", RGB{10, 11, 12}, false},
		{"#fff", RGB{}, true},
		{"#gg0000", RGB{}, true},
		{"", RGB{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseHex(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidColor) {
					t.Errorf("ParseHex(%q) error = %v, want ErrInvalidColor", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHex(%q) failed: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseHex(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRGBHexRoundTrip(t *testing.T) {
	c := RGB{136, 84, 29}
	if c.Hex() != "#88541d" {
		t.Errorf("Hex() = %s, want #88541d", c.Hex())
	}
}

func TestNewPaletteValidation(t *testing.T) {
	if _, err := NewPalette(nil, nil, 160, 70); err == nil {
		t.Error("expected error for empty palette")
	}
	if _, err := NewPalette([]RGB{{1, 2, 3}}, []string{"a", "b"}, 160, 70); err == nil {
		t.Error("expected error for mismatched names")
	}
	if _, err := NewPalette([]RGB{{1, 2, 3}}, nil, 0, 70); err == nil {
		t.Error("expected error for zero threshold")
	}
}

func TestPaletteIsImmutable(t *testing.T) {
	colors := []RGB{{255, 0, 0}}
	p, err := NewPalette(colors, []string{"red"}, 160, 70)
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}
	colors[0] = RGB{0, 0, 0}
	got := p.Colors()
	got[0] = RGB{1, 1, 1}
	if p.Color(0) != (RGB{255, 0, 0}) {
		t.Errorf("palette color changed to %v", p.Color(0))
	}
}

func TestHistogramRedBuffer(t *testing.T) {
	p, err := NewPalette([]RGB{{255, 0, 0}, {0, 0, 255}}, nil, 160, 70)
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}

	hist := p.Histogram(Fill(2, 2, RGB{255, 0, 0}))

	expected := []float64{1.0, 0.0}
	for i := range expected {
		if hist[i] != expected[i] {
			t.Errorf("hist[%d] = %f, want %f", i, hist[i], expected[i])
		}
	}
}

func TestHistogramZeroPixels(t *testing.T) {
	p := testPalette(t)
	hist := CountPixels(Pixels{}, p)
	if len(hist) != p.Size() {
		t.Fatalf("expected %d bins, got %d", p.Size(), len(hist))
	}
	for i, v := range hist {
		if v != 0 || math.IsNaN(v) {
			t.Errorf("hist[%d] = %f, want 0", i, v)
		}
	}
}

// matches mirrors the membership rule independently of Palette.Histogram.
func matches(ref, px RGB, total, channel int) bool {
	dr := math.Abs(float64(ref.R) - float64(px.R))
	dg := math.Abs(float64(ref.G) - float64(px.G))
	db := math.Abs(float64(ref.B) - float64(px.B))
	return dr+dg+db < float64(total) && dr < float64(channel) && dg < float64(channel) && db < float64(channel)
}

func TestHistogramReferenceColorBuffers(t *testing.T) {
	p := testPalette(t)
	total, channel := p.Thresholds()

	for k, ref := range p.Colors() {
		hist := p.Histogram(Fill(4, 3, ref))
		if hist[k] != 1.0 {
			t.Errorf("bin %d for its own color = %f, want 1.0", k, hist[k])
		}
		for j, other := range p.Colors() {
			want := 0.0
			if matches(other, ref, total, channel) {
				want = 1.0
			}
			if hist[j] != want {
				t.Errorf("color %d: bin %d = %f, want %f", k, j, hist[j], want)
			}
		}
	}
}

func TestHistogramBounds(t *testing.T) {
	p := testPalette(t)

	// Gradient touching many palette entries.
	px := Pixels{Width: 64, Height: 64, Data: make([]byte, 64*64*4)}
	for y := range 64 {
		for x := range 64 {
			i := (y*64 + x) * 4
			px.Data[i] = byte(x * 4)
			px.Data[i+1] = byte(y * 4)
			px.Data[i+2] = byte((x + y) * 2)
			px.Data[i+3] = 255
		}
	}

	hist := p.Histogram(px)
	var sum float64
	for i, v := range hist {
		if v < 0 || v > 1 {
			t.Errorf("hist[%d] = %f out of [0,1]", i, v)
		}
		sum += v
	}
	if sum < 0 || sum > float64(p.Size()) {
		t.Errorf("sum = %f out of [0,%d]", sum, p.Size())
	}
}

func TestHistogramDeterministic(t *testing.T) {
	p := testPalette(t)
	px := Fill(5, 5, RGB{120, 40, 160})
	a := p.Histogram(px)
	b := p.Histogram(px)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("bin %d differs between calls: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestMomentsUniformImage(t *testing.T) {
	c := RGB{10, 20, 30}
	moments, err := Moments(Fill(31, 17, c), 3, 3)
	if err != nil {
		t.Fatalf("Moments failed: %v", err)
	}
	if len(moments) != 9 {
		t.Fatalf("expected 9 moments, got %d", len(moments))
	}
	for i, m := range moments {
		if m.Mean != [3]float64{10, 20, 30} {
			t.Errorf("moment %d = %v, want [10 20 30]", i, m.Mean)
		}
	}
}

func TestMomentsRowMajorOrder(t *testing.T) {
	// 2x2 grid on a 4x4 image: top-left red, top-right green,
	// bottom-left blue, bottom-right white.
	px := Pixels{Width: 4, Height: 4, Data: make([]byte, 4*4*4)}
	quad := [][]RGB{{{255, 0, 0}, {0, 255, 0}}, {{0, 0, 255}, {255, 255, 255}}}
	for y := range 4 {
		for x := range 4 {
			c := quad[y/2][x/2]
			i := (y*4 + x) * 4
			px.Data[i], px.Data[i+1], px.Data[i+2], px.Data[i+3] = c.R, c.G, c.B, 255
		}
	}

	moments, err := Moments(px, 2, 2)
	if err != nil {
		t.Fatalf("Moments failed: %v", err)
	}

	expected := [][3]float64{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 255}}
	for i, want := range expected {
		if moments[i].Mean != want {
			t.Errorf("moment %d = %v, want %v", i, moments[i].Mean, want)
		}
	}
}

func TestMomentsDropsRemainderStrip(t *testing.T) {
	// 3x1 image with a 2x1 grid: blocks are 1 pixel wide, the third column is dropped.
	px := Pixels{Width: 3, Height: 1, Data: []byte{
		10, 10, 10, 255,
		20, 20, 20, 255,
		250, 250, 250, 255,
	}}

	moments, err := Moments(px, 2, 1)
	if err != nil {
		t.Fatalf("Moments failed: %v", err)
	}
	if moments[0].Mean[0] != 10 || moments[1].Mean[0] != 20 {
		t.Errorf("unexpected means %v, %v", moments[0].Mean, moments[1].Mean)
	}
}

func TestMomentsErrors(t *testing.T) {
	tests := []struct {
		name    string
		px      Pixels
		h, v    int
		wantErr error
	}{
		{"zero grid", Fill(9, 9, RGB{}), 0, 3, ErrInvalidPixels},
		{"short buffer", Pixels{Width: 2, Height: 2, Data: make([]byte, 8)}, 1, 1, ErrInvalidPixels},
		{"too small", Fill(2, 2, RGB{}), 3, 3, ErrImageTooSmall},
		{"empty image", Pixels{}, 3, 3, ErrImageTooSmall},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Moments(tc.px, tc.h, tc.v)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Moments() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestFlattenAndRebuild(t *testing.T) {
	moments := []Moment{{Mean: [3]float64{1, 2, 3}}, {Mean: [3]float64{4, 5, 6}}}
	flat := Flatten(moments)
	if len(flat) != 6 || flat[3] != 4 {
		t.Fatalf("unexpected flat vector %v", flat)
	}
	m, err := MomentFromValues(flat[3:])
	if err != nil {
		t.Fatalf("MomentFromValues failed: %v", err)
	}
	if m != moments[1] {
		t.Errorf("rebuilt %v, want %v", m, moments[1])
	}
	if _, err := MomentFromValues(flat[:2]); err == nil {
		t.Error("expected error for short tuple")
	}
}
