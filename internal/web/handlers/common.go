package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/engine"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps engine and catalog errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrIncompleteCorpus):
		return http.StatusServiceUnavailable
	case errors.Is(err, catalog.ErrDimensionMismatch), errors.Is(err, catalog.ErrSchemaMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, catalog.ErrCapacityExceeded), errors.Is(err, catalog.ErrDegenerateDimension):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError writes err with the status it maps to. Internal errors
// are logged and hidden from the client.
func respondEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// queryLimit parses the limit query parameter. Missing means fallback; the
// value is capped at constants.MaxResultLimit.
func queryLimit(r *http.Request, fallback int) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return min(n, constants.MaxResultLimit), true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
