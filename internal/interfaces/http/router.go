// Package http assembles the HTTP surface of the estimation service.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/prometheus"
	"github.com/harborintel/portcost/internal/interfaces/http/handlers"
	"github.com/harborintel/portcost/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.  Nil optional fields disable the corresponding routes.
type RouterConfig struct {
	EstimateHandler *handlers.EstimateHandler
	HealthHandler   *handlers.HealthHandler

	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.AppMetrics
	Logger           logging.Logger
}

// NewRouter constructs the complete route tree: public probes, the metrics
// endpoint, and the versioned estimate API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.EstimateHandler != nil {
		api.POST("/estimates", cfg.EstimateHandler.Create)
	}

	return r
}
