package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eductome/eductome/internal/domain"
)

// ProfileRequest is the onboarding and settings-edit payload.
type ProfileRequest struct {
	Name       string   `json:"name"`
	GradeClass string   `json:"gradeClass"`
	Weaknesses []string `json:"weaknesses"`
}

// RegisterProfileRoutes mounts the profile endpoints.
func (h *Handler) RegisterProfileRoutes(r chi.Router) {
	r.Get("/api/profile", h.HandleGetProfile)
	r.Put("/api/profile", h.HandleSaveProfile)
}

// HandleGetProfile handles GET /api/profile. A 404 means onboarding has not
// happened yet.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.repo.GetProfile(r.Context())
	if err != nil {
		slog.Error("Failed to load profile", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "no profile")
		return
	}
	JSON(w, http.StatusOK, profile)
}

// HandleSaveProfile handles PUT /api/profile. First call creates the profile
// (onboarding); later calls edit identity fields while earned points,
// mastery, and badges are preserved.
func (h *Handler) HandleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		Error(w, http.StatusBadRequest, "name is required")
		return
	}

	existing, err := h.repo.GetProfile(r.Context())
	if err != nil {
		slog.Error("Failed to load profile", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	profile := &domain.Profile{
		Name:       req.Name,
		GradeClass: req.GradeClass,
		Weaknesses: req.Weaknesses,
	}
	if existing != nil {
		profile.DisciplinePoints = existing.DisciplinePoints
		profile.Mastery = existing.Mastery
		profile.Badges = existing.Badges
	}

	if err := h.repo.SaveProfile(r.Context(), profile); err != nil {
		slog.Error("Failed to save profile", "error", err)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	slog.Info("Profile saved", "name", profile.Name, "grade_class", profile.GradeClass)
	JSON(w, http.StatusOK, profile)
}
