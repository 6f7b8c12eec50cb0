package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/features"
)

// ItemsHandler serves corpus items
type ItemsHandler struct {
	engine *engine.Engine
}

// NewItemsHandler creates a new items handler
func NewItemsHandler(eng *engine.Engine) *ItemsHandler {
	return &ItemsHandler{engine: eng}
}

// ItemResponse is an item with its features.
type ItemResponse struct {
	ID            string      `json:"id"`
	Category      string      `json:"category"`
	DominantColor string      `json:"dominant_color"`
	Bucket        string      `json:"bucket"`
	Histogram     []float64   `json:"histogram"`
	Moments       [][]float64 `json:"moments"`
	Normalized    []float64   `json:"normalized"`
}

// Get returns one item. IDs are image paths, so the route captures the
// rest of the URL.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing item ID")
		return
	}

	it, err := h.engine.Item(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ItemResponse{
		ID:            it.ID,
		Category:      it.Category,
		DominantColor: it.DominantColor.Hex(),
		Bucket:        h.engine.NamedPalette().Nearest(it.DominantColor),
		Histogram:     it.Histogram,
		Moments:       momentValues(it.Moments),
		Normalized:    it.Normalized,
	})
}

func momentValues(moments []features.Moment) [][]float64 {
	out := make([][]float64, len(moments))
	for i, m := range moments {
		out[i] = m.Values()
	}
	return out
}
