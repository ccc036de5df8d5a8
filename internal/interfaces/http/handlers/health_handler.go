package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
)

// Pinger checks one upstream dependency.
type Pinger func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.  Liveness is always
// healthy while the process runs; readiness fans out to every registered
// dependency and reports per-dependency status.
type HealthHandler struct {
	pingers map[string]Pinger
	timeout time.Duration
	logger  logging.Logger
}

// NewHealthHandler builds a HealthHandler over the named dependency checks.
func NewHealthHandler(pingers map[string]Pinger, logger logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{
		pingers: pingers,
		timeout: 5 * time.Second,
		logger:  logger.Named("health"),
	}
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz.  Any failing dependency turns the probe
// into a 503 with the failing names listed.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.pingers))
	healthy := true
	for name, ping := range h.pingers {
		if err := ping(ctx); err != nil {
			healthy = false
			checks[name] = err.Error()
			h.logger.Warn("readiness check failed",
				logging.String("dependency", name),
				logging.Err(err))
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
