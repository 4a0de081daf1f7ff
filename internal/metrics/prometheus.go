// Package metrics provides Prometheus metrics collection for MachineHub.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/machinehub/machinehub/internal/liveness"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

// PrometheusStore defines the interface for retrieving metrics data.
type PrometheusStore interface {
	GetAllMachines(ctx context.Context) ([]*models.Machine, error)
	CountSnapshots(ctx context.Context) (int64, error)
	CountSnapshotsBySource(ctx context.Context) (map[models.SnapshotSource]int64, error)
}

// PrometheusCollector collects and exposes Prometheus metrics.
type PrometheusCollector struct {
	store      PrometheusStore
	thresholds liveness.Thresholds
	logger     zerolog.Logger

	mu            sync.RWMutex
	lastCollected time.Time
	cachedMetrics *PrometheusMetrics
	cacheExpiry   time.Duration
}

// PrometheusMetrics holds all collected Prometheus metrics.
type PrometheusMetrics struct {
	MachinesTotal    int64
	MachinesByState  map[liveness.Status]int64 // collapsed to online/offline
	SnapshotsTotal   int64
	SnapshotsBySource map[models.SnapshotSource]int64
}

// NewPrometheusCollector creates a new PrometheusCollector.
func NewPrometheusCollector(store PrometheusStore, logger zerolog.Logger) *PrometheusCollector {
	return &PrometheusCollector{
		store:       store,
		thresholds:  liveness.DefaultThresholds(),
		logger:      logger.With().Str("component", "prometheus_collector").Logger(),
		cacheExpiry: 15 * time.Second,
	}
}

// Collect gathers all metrics from the database. Results are cached briefly
// so scrapers cannot hammer the database.
func (c *PrometheusCollector) Collect(ctx context.Context) (*PrometheusMetrics, error) {
	c.mu.RLock()
	if c.cachedMetrics != nil && time.Since(c.lastCollected) < c.cacheExpiry {
		metrics := c.cachedMetrics
		c.mu.RUnlock()
		return metrics, nil
	}
	c.mu.RUnlock()

	metrics := &PrometheusMetrics{
		MachinesByState: map[liveness.Status]int64{
			liveness.StatusOnline:  0,
			liveness.StatusOffline: 0,
		},
		SnapshotsBySource: make(map[models.SnapshotSource]int64),
	}

	if err := c.collectMachineMetrics(ctx, metrics); err != nil {
		c.logger.Warn().Err(err).Msg("failed to collect machine metrics")
	}
	if err := c.collectSnapshotMetrics(ctx, metrics); err != nil {
		c.logger.Warn().Err(err).Msg("failed to collect snapshot metrics")
	}

	c.mu.Lock()
	c.cachedMetrics = metrics
	c.lastCollected = time.Now()
	c.mu.Unlock()

	return metrics, nil
}

func (c *PrometheusCollector) collectMachineMetrics(ctx context.Context, metrics *PrometheusMetrics) error {
	machines, err := c.store.GetAllMachines(ctx)
	if err != nil {
		return fmt.Errorf("get machines: %w", err)
	}

	now := time.Now().UTC()
	metrics.MachinesTotal = int64(len(machines))
	for _, m := range machines {
		state := liveness.Classify(m.LastSeen, now, c.thresholds).Collapse()
		metrics.MachinesByState[state]++
	}

	return nil
}

func (c *PrometheusCollector) collectSnapshotMetrics(ctx context.Context, metrics *PrometheusMetrics) error {
	total, err := c.store.CountSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("count snapshots: %w", err)
	}
	metrics.SnapshotsTotal = total

	bySource, err := c.store.CountSnapshotsBySource(ctx)
	if err != nil {
		return fmt.Errorf("count snapshots by source: %w", err)
	}
	metrics.SnapshotsBySource = bySource

	return nil
}

// Format returns the metrics in Prometheus exposition format.
func (c *PrometheusCollector) Format(metrics *PrometheusMetrics) string {
	var sb strings.Builder

	sb.WriteString("# HELP machinehub_machines_total Total number of registered machines\n")
	sb.WriteString("# TYPE machinehub_machines_total gauge\n")
	sb.WriteString(fmt.Sprintf("machinehub_machines_total %d\n", metrics.MachinesTotal))
	sb.WriteString("\n")

	sb.WriteString("# HELP machinehub_machines Number of machines by collapsed liveness state\n")
	sb.WriteString("# TYPE machinehub_machines gauge\n")
	for _, state := range []liveness.Status{liveness.StatusOnline, liveness.StatusOffline} {
		sb.WriteString(fmt.Sprintf("machinehub_machines{state=\"%s\"} %d\n", state, metrics.MachinesByState[state]))
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP machinehub_snapshots_total Total number of stored snapshots\n")
	sb.WriteString("# TYPE machinehub_snapshots_total counter\n")
	sb.WriteString(fmt.Sprintf("machinehub_snapshots_total %d\n", metrics.SnapshotsTotal))
	sb.WriteString("\n")

	sb.WriteString("# HELP machinehub_snapshots_source_total Total number of snapshots by provenance\n")
	sb.WriteString("# TYPE machinehub_snapshots_source_total counter\n")
	for _, source := range []models.SnapshotSource{models.SourceWebhook, models.SourceAPI} {
		sb.WriteString(fmt.Sprintf("machinehub_snapshots_source_total{source=\"%s\"} %d\n", source, metrics.SnapshotsBySource[source]))
	}

	return sb.String()
}
