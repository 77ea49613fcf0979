// Package api provides HTTP handlers for the chat API.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/unichat/internal/identity"
	"github.com/ashureev/unichat/internal/store"
	"github.com/go-chi/chi/v5"
)

// ServerInfo describes the active chat pipeline for clients.
type ServerInfo struct {
	Gate     string `json:"gate"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Title    string `json:"title"`
}

// Handler serves identity and configuration endpoints.
type Handler struct {
	repo       store.Repository
	info       ServerInfo
	sessionTTL time.Duration
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, info ServerInfo, sessionTTL time.Duration) *Handler {
	return &Handler{
		repo:       repo,
		info:       info,
		sessionTTL: sessionTTL,
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

// RegisterRoutes registers identity and configuration routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/me", h.GetMe)
	r.Get("/api/config", h.GetConfig)
}

// GetMe returns the current anonymous user and chat session.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":     user.UserID,
		"username":    user.Username,
		"session_id":  identity.SessionIDFromContext(r.Context()),
		"session_ttl": int64(h.sessionTTL.Seconds()),
	})
}

// GetConfig returns the chat pipeline configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.info)
}
