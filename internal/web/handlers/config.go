package handlers

import (
	"net/http"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/database"
	"github.com/kozaktomas/image-search/internal/engine"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	engine *engine.Engine
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, eng *engine.Engine) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		engine: eng,
	}
}

// ColorInfo is a named colour in a response.
type ColorInfo struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Palette      []ColorInfo   `json:"palette"`
	NamedColors  []ColorInfo   `json:"named_colors"`
	Categories   []string      `json:"categories"`
	HBlocks      int           `json:"h_blocks"`
	VBlocks      int           `json:"v_blocks"`
	MaxSize      int           `json:"max_size"`
	ShownResults int           `json:"shown_results"`
	Store        string        `json:"store,omitempty"`
	Status       engine.Status `json:"status"`
}

// Get returns the search configuration and the state of the corpus
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	palette := h.engine.Palette()
	names := palette.Names()
	colors := make([]ColorInfo, palette.Size())
	for i, c := range palette.Colors() {
		colors[i] = ColorInfo{Name: names[i], Hex: c.Hex()}
	}

	named := h.engine.NamedPalette().Colors()
	namedColors := make([]ColorInfo, len(named))
	for i, c := range named {
		namedColors[i] = ColorInfo{Name: c.Name, Hex: c.RGB.Hex()}
	}

	opts := h.engine.Options()
	categories := h.config.Search.Categories
	if categories == nil {
		categories = []string{}
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Palette:      colors,
		NamedColors:  namedColors,
		Categories:   categories,
		HBlocks:      opts.HBlocks,
		VBlocks:      opts.VBlocks,
		MaxSize:      opts.MaxSize,
		ShownResults: h.config.Search.ShownResults,
		Store:        database.BackendName(),
		Status:       h.engine.Status(),
	})
}
