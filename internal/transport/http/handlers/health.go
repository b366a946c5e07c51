package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    map[string]ReadinessCheck
}

// HealthOption configures the health handler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck registers a named dependency probe for /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		startedAt: time.Now().UTC(),
		checks:    map[string]ReadinessCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status godoc
// @Summary Service health check
// @Description Returns the status and start time of the service.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness godoc
// @Summary Service readiness check
// @Description Probes Postgres and Redis.
// @Tags Health
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, resp)
}
