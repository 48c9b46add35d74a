package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eductome/eductome/internal/session"
)

// CreateSessionRequest starts a new chat session for a subject.
type CreateSessionRequest struct {
	Subject string `json:"subject"`
}

// SendMessageRequest submits one student turn. Image, when present, is a
// base64 data URI.
type SendMessageRequest struct {
	Message string `json:"message"`
	Image   string `json:"image,omitempty"`
}

// RegisterSessionRoutes mounts the session and state endpoints.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/api/sessions", h.HandleListSessions)
	r.Post("/api/sessions", h.HandleCreateSession)
	r.Get("/api/sessions/{sessionID}", h.HandleGetSession)
	r.Post("/api/sessions/{sessionID}/messages", h.HandleSendMessage)
	r.Delete("/api/state", h.HandleClearState)
	r.Get("/api/health", h.HandleHealth)
}

// clientKey derives the rate-limit key from the request. RealIP middleware
// rewrites RemoteAddr to the client address; a trailing port is stripped so
// reconnects share one bucket.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// HandleListSessions handles GET /api/sessions.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, sessions)
}

// HandleCreateSession handles POST /api/sessions.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Create(r.Context(), req.Subject)
	if err != nil {
		if errors.Is(err, session.ErrNoProfile) {
			Error(w, http.StatusBadRequest, "complete onboarding first")
			return
		}
		slog.Error("Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	JSON(w, http.StatusCreated, sess)
}

// HandleGetSession handles GET /api/sessions/{sessionID}.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// HandleSendMessage handles POST /api/sessions/{sessionID}/messages. The
// response carries the resolved session; live clients see the intermediate
// placeholder over the WebSocket feed.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !h.limiter.Allow(clientKey(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Message == "" && req.Image == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	slog.Info("Chat turn request", "session_id", sessionID, "message_length", len(req.Message), "has_image", req.Image != "")

	sess, err := h.sessions.Send(r.Context(), sessionID, req.Message, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoProfile):
			Error(w, http.StatusBadRequest, "complete onboarding first")
		case errors.Is(err, session.ErrSessionNotFound):
			Error(w, http.StatusNotFound, "session not found")
		case errors.Is(err, session.ErrTurnInFlight):
			Error(w, http.StatusConflict, "a turn is already in flight")
		default:
			slog.Error("Failed to run chat turn", "session_id", sessionID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to run chat turn")
		}
		return
	}
	JSON(w, http.StatusOK, sess)
}

// HandleClearState handles DELETE /api/state. Wipes the profile and every
// session unconditionally.
func (h *Handler) HandleClearState(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(r.Context()); err != nil {
		slog.Error("Failed to clear state", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear state")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// HandleHealth handles GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
