package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"versus-backend/pkg/logger"
)

// HealthChecker reports whether the service's dependencies answer.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checker HealthChecker
	version string
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker, version string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		version: version,
		logger:  log.Component("health"),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Service   string    `json:"service"`
	Error     string    `json:"error,omitempty"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Service:   "versus-backend",
	}

	status := http.StatusOK
	if err := h.checker.HealthCheck(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		response.Status = "unhealthy"
		response.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}
