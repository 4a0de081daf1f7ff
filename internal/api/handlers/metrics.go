package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/machinehub/machinehub/internal/metrics"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

// MetricsStore defines the interface for retrieving metrics data.
type MetricsStore interface {
	Ping(ctx context.Context) error
	Health() map[string]any
	GetAllMachines(ctx context.Context) ([]*models.Machine, error)
	CountSnapshots(ctx context.Context) (int64, error)
	CountSnapshotsBySource(ctx context.Context) (map[models.SnapshotSource]int64, error)
}

// MetricsHandler handles Prometheus-compatible metrics endpoints.
type MetricsHandler struct {
	db                  MetricsStore
	prometheusCollector *metrics.PrometheusCollector
	logger              zerolog.Logger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(db MetricsStore, logger zerolog.Logger) *MetricsHandler {
	h := &MetricsHandler{
		db:     db,
		logger: logger.With().Str("component", "metrics_handler").Logger(),
	}
	if db != nil {
		h.prometheusCollector = metrics.NewPrometheusCollector(db, logger)
	}
	return h
}

// RegisterPublicRoutes registers metrics routes that don't require authentication.
func (h *MetricsHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/metrics", h.Metrics)
}

// Metrics returns metrics in Prometheus exposition format.
// @Summary Prometheus metrics endpoint
// @Description Returns metrics in Prometheus exposition format for scraping
// @Tags Monitoring
// @Produce text/plain
// @Success 200 {string} string "Prometheus metrics"
// @Router /metrics [get]
func (h *MetricsHandler) Metrics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	var sb strings.Builder

	sb.WriteString("# HELP machinehub_info Server information\n")
	sb.WriteString("# TYPE machinehub_info gauge\n")
	sb.WriteString("machinehub_info{component=\"server\"} 1\n")
	sb.WriteString("\n")

	sb.WriteString("# HELP machinehub_up Server health status (1 = healthy, 0 = unhealthy)\n")
	sb.WriteString("# TYPE machinehub_up gauge\n")

	dbHealthy := 1
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbHealthy = 0
			h.logger.Warn().Err(err).Msg("database ping failed for metrics")
		}
	} else {
		dbHealthy = 0
	}
	sb.WriteString(fmt.Sprintf("machinehub_up{component=\"database\"} %d\n", dbHealthy))
	sb.WriteString("\n")

	if h.db != nil {
		poolStats := h.db.Health()

		sb.WriteString("# HELP machinehub_db_connections_total Total number of connections in the pool\n")
		sb.WriteString("# TYPE machinehub_db_connections_total gauge\n")
		if v, ok := poolStats["total_conns"].(int32); ok {
			sb.WriteString(fmt.Sprintf("machinehub_db_connections_total %d\n", v))
		}
		sb.WriteString("\n")

		sb.WriteString("# HELP machinehub_db_connections_acquired Number of currently acquired connections\n")
		sb.WriteString("# TYPE machinehub_db_connections_acquired gauge\n")
		if v, ok := poolStats["acquired_conns"].(int32); ok {
			sb.WriteString(fmt.Sprintf("machinehub_db_connections_acquired %d\n", v))
		}
		sb.WriteString("\n")

		sb.WriteString("# HELP machinehub_db_connections_idle Number of idle connections\n")
		sb.WriteString("# TYPE machinehub_db_connections_idle gauge\n")
		if v, ok := poolStats["idle_conns"].(int32); ok {
			sb.WriteString(fmt.Sprintf("machinehub_db_connections_idle %d\n", v))
		}
		sb.WriteString("\n")

		sb.WriteString("# HELP machinehub_db_connections_max Maximum number of connections in the pool\n")
		sb.WriteString("# TYPE machinehub_db_connections_max gauge\n")
		if v, ok := poolStats["max_conns"].(int32); ok {
			sb.WriteString(fmt.Sprintf("machinehub_db_connections_max %d\n", v))
		}
		sb.WriteString("\n")
	}

	if h.prometheusCollector != nil {
		promMetrics, err := h.prometheusCollector.Collect(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("failed to collect prometheus metrics")
		} else {
			sb.WriteString(h.prometheusCollector.Format(promMetrics))
		}
	}

	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.String(http.StatusOK, sb.String())
}
