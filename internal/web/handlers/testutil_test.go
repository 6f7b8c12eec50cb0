package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/features"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{
			Categories:   []string{"eiffel tower", "taj mahal"},
			KeywordLimit: 100,
			ShownResults: 30,
		},
		Ingest: config.IngestConfig{Workers: 2},
	}
}

// memorySource serves in-memory pixels to the engine
type memorySource map[string]features.Pixels

func (m memorySource) Pixels(ctx context.Context, id string) (features.Pixels, error) {
	px, ok := m[id]
	if !ok {
		return features.Pixels{}, fmt.Errorf("no pixels for %s", id)
	}
	return px, nil
}

// twoTone is a 2x2 image with one colour per row.
func twoTone(top, bottom features.RGB) features.Pixels {
	data := make([]byte, 0, 16)
	for _, c := range []features.RGB{top, top, bottom, bottom} {
		data = append(data, c.R, c.G, c.B, 255)
	}
	return features.Pixels{Width: 2, Height: 2, Data: data}
}

var testRecords = []engine.Record{
	{ID: "eiffel/1.jpg", Category: "eiffel tower", DominantColor: "#ffffff"},
	{ID: "eiffel/2.jpg", Category: "eiffel tower", DominantColor: "#0000ff"},
	{ID: "taj/1.jpg", Category: "taj mahal", DominantColor: "#fefefe"},
}

func testSource() memorySource {
	return memorySource{
		"eiffel/1.jpg": twoTone(features.RGB{R: 10, G: 20, B: 30}, features.RGB{R: 200, G: 100, B: 50}),
		"eiffel/2.jpg": twoTone(features.RGB{R: 40, G: 10, B: 90}, features.RGB{R: 20, G: 180, B: 60}),
		"taj/1.jpg":    twoTone(features.RGB{R: 250, G: 240, B: 5}, features.RGB{R: 220, G: 20, B: 30}),
	}
}

// newTestEngine creates an engine with a red/blue palette and a 1x2 grid
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	palette, err := features.NewPalette(
		[]features.RGB{{R: 255, G: 0, B: 0}, {R: 0, G: 0, B: 255}},
		[]string{"red", "blue"},
		features.DefaultTotalThreshold, features.DefaultChannelThreshold,
	)
	if err != nil {
		t.Fatalf("NewPalette failed: %v", err)
	}
	eng, err := engine.New(engine.Config{
		Palette: palette,
		Options: catalog.Options{MaxSize: 10, HBlocks: 1, VBlocks: 2},
		Source:  testSource(),
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	return eng
}

// newIngestedEngine creates a test engine holding the three test records
func newIngestedEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := newTestEngine(t)
	if _, err := eng.Ingest(context.Background(), testRecords, engine.IngestOptions{Workers: 2}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	return eng
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
