// Package http serves the operational endpoints of the catalog worker:
// health checks and Prometheus metrics. It carries no catalog API.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the dependencies of the admin router.
type RouterConfig struct {
	Checks   map[string]Pinger
	Gatherer prometheus.Gatherer
	Version  string
}

// NewRouter creates the admin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Checks, cfg.Version)
	router.GET("/healthz", health.Status)

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	return router
}
