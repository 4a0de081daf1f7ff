package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/machinehub/machinehub/internal/models"
	"github.com/rs/zerolog"
)

type mockPrometheusStore struct {
	mu       sync.Mutex
	machines []*models.Machine
	total    int64
	bySource map[models.SnapshotSource]int64

	machineCalls int
	machinesErr  error
}

func (m *mockPrometheusStore) GetAllMachines(_ context.Context) ([]*models.Machine, error) {
	m.mu.Lock()
	m.machineCalls++
	m.mu.Unlock()
	if m.machinesErr != nil {
		return nil, m.machinesErr
	}
	return m.machines, nil
}

func (m *mockPrometheusStore) CountSnapshots(_ context.Context) (int64, error) {
	return m.total, nil
}

func (m *mockPrometheusStore) CountSnapshotsBySource(_ context.Context) (map[models.SnapshotSource]int64, error) {
	return m.bySource, nil
}

func (m *mockPrometheusStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machineCalls
}

func testFleet() []*models.Machine {
	now := time.Now().UTC()
	recent := now.Add(-time.Minute)
	stale := now.Add(-2 * time.Hour)

	online := models.NewMachine("web-01", "192.168.1.10")
	online.LastSeen = &recent

	offline := models.NewMachine("db-01", "192.168.1.11")
	offline.LastSeen = &stale

	// Never reported; collapses to offline
	unknown := models.NewMachine("new-01", "192.168.1.12")

	return []*models.Machine{online, offline, unknown}
}

func TestPrometheusCollector_Collect(t *testing.T) {
	store := &mockPrometheusStore{
		machines: testFleet(),
		total:    42,
		bySource: map[models.SnapshotSource]int64{
			models.SourceWebhook: 30,
			models.SourceAPI:     12,
		},
	}
	c := NewPrometheusCollector(store, zerolog.Nop())

	metrics, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if metrics.MachinesTotal != 3 {
		t.Errorf("expected 3 machines, got %d", metrics.MachinesTotal)
	}
	if got := metrics.MachinesByState["online"]; got != 1 {
		t.Errorf("expected 1 online machine, got %d", got)
	}
	if got := metrics.MachinesByState["offline"]; got != 2 {
		t.Errorf("expected 2 offline machines (stale + never-seen), got %d", got)
	}
	if metrics.SnapshotsTotal != 42 {
		t.Errorf("expected 42 snapshots, got %d", metrics.SnapshotsTotal)
	}
	if metrics.SnapshotsBySource[models.SourceAPI] != 12 {
		t.Errorf("expected 12 api snapshots, got %d", metrics.SnapshotsBySource[models.SourceAPI])
	}
}

func TestPrometheusCollector_Cache(t *testing.T) {
	store := &mockPrometheusStore{machines: testFleet()}
	c := NewPrometheusCollector(store, zerolog.Nop())

	for range 5 {
		if _, err := c.Collect(context.Background()); err != nil {
			t.Fatalf("collect: %v", err)
		}
	}

	if store.calls() != 1 {
		t.Errorf("expected 1 store query within the cache window, got %d", store.calls())
	}
}

func TestPrometheusCollector_StoreErrorStillReturnsMetrics(t *testing.T) {
	store := &mockPrometheusStore{
		machinesErr: errors.New("db down"),
		total:       7,
		bySource:    map[models.SnapshotSource]int64{},
	}
	c := NewPrometheusCollector(store, zerolog.Nop())

	metrics, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if metrics.MachinesTotal != 0 {
		t.Errorf("expected 0 machines on store error, got %d", metrics.MachinesTotal)
	}
	if metrics.SnapshotsTotal != 7 {
		t.Errorf("expected snapshot count despite machine error, got %d", metrics.SnapshotsTotal)
	}
}

func TestPrometheusCollector_Format(t *testing.T) {
	store := &mockPrometheusStore{
		machines: testFleet(),
		total:    42,
		bySource: map[models.SnapshotSource]int64{
			models.SourceWebhook: 30,
			models.SourceAPI:     12,
		},
	}
	c := NewPrometheusCollector(store, zerolog.Nop())

	metrics, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	body := c.Format(metrics)

	for _, want := range []string{
		"# TYPE machinehub_machines_total gauge",
		"machinehub_machines_total 3",
		`machinehub_machines{state="online"} 1`,
		`machinehub_machines{state="offline"} 2`,
		"# TYPE machinehub_snapshots_total counter",
		"machinehub_snapshots_total 42",
		`machinehub_snapshots_source_total{source="webhook"} 30`,
		`machinehub_snapshots_source_total{source="api"} 12`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition to contain %q\n%s", want, body)
		}
	}
}
