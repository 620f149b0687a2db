package api

import (
	"net/http"
)

// handleGetUser handles GET /api/v1/users/me
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	user, err := s.userRepo.Get(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get user", nil)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "User not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleUpdateNotifications handles PATCH /api/v1/users/me/notifications
func (s *Server) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	userID := s.requireUser(w, r)
	if userID == "" {
		return
	}

	var req struct {
		EmailNotificationsEnabled bool `json:"emailNotificationsEnabled"`
		EmailMinRiskScore         int  `json:"emailMinRiskScore"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.EmailMinRiskScore < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "emailMinRiskScore must be non-negative", nil)
		return
	}

	if err := s.userRepo.UpdateNotificationPrefs(r.Context(), userID, req.EmailNotificationsEnabled, req.EmailMinRiskScore); err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to update notification preferences", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"emailNotificationsEnabled": req.EmailNotificationsEnabled,
		"emailMinRiskScore":         req.EmailMinRiskScore,
	})
}
