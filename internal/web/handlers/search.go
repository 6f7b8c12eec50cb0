package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/engine"
	"github.com/kozaktomas/image-search/internal/ranking"
)

// SearchHandler handles the query endpoints
type SearchHandler struct {
	config *config.Config
	engine *engine.Engine
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(cfg *config.Config, eng *engine.Engine) *SearchHandler {
	return &SearchHandler{
		config: cfg,
		engine: eng,
	}
}

// IDsResponse lists matching item IDs.
type IDsResponse struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// RankedResponse lists ranked results.
type RankedResponse struct {
	Query   string           `json:"query"`
	Metric  string           `json:"metric,omitempty"`
	Results []ranking.Result `json:"results"`
	Count   int              `json:"count"`
}

func (h *SearchHandler) keywordLimit() int {
	if h.config != nil && h.config.Search.KeywordLimit > 0 {
		return h.config.Search.KeywordLimit
	}
	return constants.DefaultCategoryLimit
}

func (h *SearchHandler) shownResults() int {
	if h.config != nil && h.config.Search.ShownResults > 0 {
		return h.config.Search.ShownResults
	}
	return constants.DefaultSimilarLimit
}

// Category finds items whose category contains the q parameter
func (h *SearchHandler) Category(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, ok := queryLimit(r, h.keywordLimit())
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	ids, err := h.engine.ByCategory(q, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, IDsResponse{Query: q, IDs: ids, Count: len(ids)})
}

// Color lists the bucket of a named colour
func (h *SearchHandler) Color(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "missing color name")
		return
	}

	ids, err := h.engine.ByColor(name)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, IDsResponse{Query: name, IDs: ids, Count: len(ids)})
}

// SimilarRequest represents a similarity search request
type SimilarRequest struct {
	ID          string   `json:"id"`
	Limit       int      `json:"limit"`
	MaxDistance *float64 `json:"max_distance,omitempty"` // omitted means no threshold
	Metric      string   `json:"metric"`
}

// Similar ranks the corpus by distance to an item
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req SimilarRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Limit < 0 || (req.MaxDistance != nil && *req.MaxDistance < 0) {
		respondError(w, http.StatusBadRequest, "limit and max_distance must not be negative")
		return
	}
	if req.Limit == 0 {
		req.Limit = h.shownResults()
	}
	req.Limit = min(req.Limit, constants.MaxResultLimit)

	metric, err := ranking.ParseMetric(req.Metric)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Printf("Similar search for %s (metric=%s, limit=%d)", sanitizeForLog(req.ID), metric.Name(), req.Limit)

	results, err := h.engine.Similar(engine.SimilarQuery{
		ID:          req.ID,
		Limit:       req.Limit,
		MaxDistance: req.MaxDistance,
		Metric:      metric,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RankedResponse{Query: req.ID, Metric: metric.Name(), Results: results, Count: len(results)})
}

// Dominant ranks items by their share of a histogram palette colour
func (h *SearchHandler) Dominant(w http.ResponseWriter, r *http.Request) {
	color := chi.URLParam(r, "color")
	if color == "" {
		respondError(w, http.StatusBadRequest, "missing color")
		return
	}
	limit, ok := queryLimit(r, h.shownResults())
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	results, err := h.engine.MostOfColor(color, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, RankedResponse{Query: color, Results: results, Count: len(results)})
}
