// Package api provides the HTTP handlers for the EDUCTOME API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eductome/eductome/internal/session"
	"github.com/eductome/eductome/internal/store"
)

// maxRequestBodySize bounds incoming JSON bodies. Image data URIs ride in
// the body, so the limit is generous.
const maxRequestBodySize = 8 << 20 // 8MB

// Handler carries the shared handler dependencies.
type Handler struct {
	repo     store.Repository
	sessions *session.Service
	limiter  *RateLimiter
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, sessions *session.Service, limiter *RateLimiter) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		limiter:  limiter,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a size-limited JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
