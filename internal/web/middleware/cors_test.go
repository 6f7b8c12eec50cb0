package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"no origin", nil, http.MethodGet, "", "", http.StatusTeapot},
		{"localhost", nil, http.MethodGet, "http://localhost:5173", "http://localhost:5173", http.StatusTeapot},
		{"localhost lookalike", nil, http.MethodGet, "http://localhost.evil.com", "", http.StatusTeapot},
		{"loopback address", nil, http.MethodGet, "http://127.0.0.1:8080", "http://127.0.0.1:8080", http.StatusTeapot},
		{"loopback other scheme", nil, http.MethodGet, "file://localhost", "", http.StatusTeapot},
		{"listed origin", []string{"https://search.example.com/"}, http.MethodGet, "https://search.example.com", "https://search.example.com", http.StatusTeapot},
		{"unlisted origin", []string{"https://search.example.com"}, http.MethodGet, "https://other.example.com", "", http.StatusTeapot},
		{"wildcard", []string{"*"}, http.MethodGet, "https://other.example.com", "https://other.example.com", http.StatusTeapot},
		{"preflight", nil, http.MethodOptions, "http://localhost", "http://localhost", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/health", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()

			CORS(tc.allowed)(next).ServeHTTP(recorder, req)

			if recorder.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, recorder.Code)
			}
			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tc.wantOrigin, got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := recorder.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %q", got)
	}
}
