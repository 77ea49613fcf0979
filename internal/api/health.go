package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/unichat/internal/store"
	"github.com/go-chi/chi/v5"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	info    ServerInfo
	timeout time.Duration
	conns   func() int
}

// NewHealthHandler creates a new health handler. conns reports open chat
// sockets and may be nil.
func NewHealthHandler(repo store.Repository, info ServerInfo, conns func() int) *HealthHandler {
	return &HealthHandler{repo: repo, info: info, timeout: defaultHealthCheckTimeout, conns: conns}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{
		"api":      "ok",
		"gate":     h.info.Gate,
		"provider": h.info.Provider,
	}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.conns != nil {
		status["connections"] = h.conns()
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
