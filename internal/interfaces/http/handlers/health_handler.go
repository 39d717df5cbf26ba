package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
)

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes. Readiness runs every
// registered dependency check with a short timeout.
type HealthHandler struct {
	checks map[string]HealthChecker
	logger logging.Logger
}

// NewHealthHandler builds a handler with named dependency checks.
func NewHealthHandler(checks map[string]HealthChecker, logger logging.Logger) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// Liveness reports that the process is up.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness probes all dependencies and reports per-dependency status.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			statuses[name] = err.Error()
			healthy = false
			h.logger.Warn("readiness check failed",
				logging.String("dependency", name),
				logging.Error(err),
			)
			continue
		}
		statuses[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "dependencies": statuses})
}
