package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/celebration-webhook/internal/metrics"
)

// RegisterMetricRoutes exposes the Prometheus registry.
//
// GET /metrics
// - Unauthenticated, scraped by Prometheus
func RegisterMetricRoutes(r gin.IRoutes, m *metrics.Metrics) {
	r.GET("/metrics", m.Handler())
}
