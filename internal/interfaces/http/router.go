// Package http assembles the control-plane HTTP server: run submission and
// status, dataset artifact access, health probes, and metrics.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ProtonGraph/internal/interfaces/http/handlers"
	"github.com/turtacn/ProtonGraph/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.
type RouterConfig struct {
	RunHandler     *handlers.RunHandler
	DatasetHandler *handlers.DatasetHandler
	HealthHandler  *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector

	// Mode is the gin mode: "debug", "release" or "test".
	Mode string
}

// NewRouter constructs the complete route tree.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if cfg.Logger != nil {
		r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	{
		if cfg.RunHandler != nil {
			api.POST("/runs", cfg.RunHandler.Submit)
			api.GET("/runs", cfg.RunHandler.List)
			api.GET("/runs/:runID", cfg.RunHandler.Get)
		}
		if cfg.DatasetHandler != nil {
			api.GET("/datasets/:name", cfg.DatasetHandler.Get)
			api.GET("/datasets/:name/summary", cfg.DatasetHandler.Summary)
			api.GET("/datasets/:name/split", cfg.DatasetHandler.Split)
			api.GET("/datasets/:name/folds", cfg.DatasetHandler.Folds)
			api.DELETE("/datasets/:name", cfg.DatasetHandler.Delete)
		}
	}

	return r
}
