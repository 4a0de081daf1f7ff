package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

// mockMetricsStore implements MetricsStore for testing.
type mockMetricsStore struct {
	mockDatabaseHealthChecker
	machines []*models.Machine
	total    int64
	bySource map[models.SnapshotSource]int64

	machinesErr error
	countErr    error
}

func (m *mockMetricsStore) GetAllMachines(_ context.Context) ([]*models.Machine, error) {
	if m.machinesErr != nil {
		return nil, m.machinesErr
	}
	return m.machines, nil
}

func (m *mockMetricsStore) CountSnapshots(_ context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.total, nil
}

func (m *mockMetricsStore) CountSnapshotsBySource(_ context.Context) (map[models.SnapshotSource]int64, error) {
	if m.countErr != nil {
		return nil, m.countErr
	}
	return m.bySource, nil
}

func setupMetricsTestRouter(db MetricsStore) *gin.Engine {
	r := gin.New()
	handler := NewMetricsHandler(db, zerolog.Nop())
	handler.RegisterPublicRoutes(r)
	return r
}

func TestMetrics(t *testing.T) {
	t.Run("with healthy db", func(t *testing.T) {
		recent := time.Now().UTC().Add(-1 * time.Minute)
		db := &mockMetricsStore{
			mockDatabaseHealthChecker: mockDatabaseHealthChecker{
				health: map[string]any{
					"total_conns":    int32(10),
					"acquired_conns": int32(2),
					"idle_conns":     int32(8),
					"max_conns":      int32(20),
				},
			},
			machines: []*models.Machine{testMachine(&recent), testMachine(nil)},
			total:    42,
			bySource: map[models.SnapshotSource]int64{
				models.SourceWebhook: 40,
				models.SourceAPI:     2,
			},
		}
		r := setupMetricsTestRouter(db)
		w := DoRequest(r, AuthenticatedRequest("GET", "/metrics"))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		body := w.Body.String()
		for _, want := range []string{
			"machinehub_info",
			"machinehub_up{component=\"database\"} 1",
			"machinehub_db_connections_total 10",
			"machinehub_machines_total 2",
			"machinehub_machines{state=\"online\"} 1",
			"machinehub_machines{state=\"offline\"} 1",
			"machinehub_snapshots_total 42",
			"machinehub_snapshots_source_total{source=\"webhook\"} 40",
			"machinehub_snapshots_source_total{source=\"api\"} 2",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("expected metrics output to contain %q", want)
			}
		}

		contentType := w.Header().Get("Content-Type")
		if !strings.Contains(contentType, "text/plain") {
			t.Fatalf("expected text/plain content type, got %q", contentType)
		}
	})

	t.Run("with unhealthy db", func(t *testing.T) {
		db := &mockMetricsStore{
			mockDatabaseHealthChecker: mockDatabaseHealthChecker{pingErr: errors.New("down")},
		}
		r := setupMetricsTestRouter(db)
		w := DoRequest(r, AuthenticatedRequest("GET", "/metrics"))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "machinehub_up{component=\"database\"} 0") {
			t.Fatal("expected database up metric to be 0")
		}
	})

	t.Run("without db", func(t *testing.T) {
		r := setupMetricsTestRouter(nil)
		w := DoRequest(r, AuthenticatedRequest("GET", "/metrics"))

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "machinehub_up{component=\"database\"} 0") {
			t.Fatal("expected database up metric to be 0")
		}
	})
}
