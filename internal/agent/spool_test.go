package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestSpoolStore(t *testing.T) *SQLiteSpool {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "machinehub-spool-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteSpool(filepath.Join(tmpDir, "spool.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteSpool(t *testing.T) {
	store := newTestSpoolStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := range 3 {
		report := &Report{
			ID:          uuid.New(),
			Payload:     []byte(fmt.Sprintf(`{"uptime": %d}`, i)),
			CollectedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(ctx, report); err != nil {
			t.Fatalf("append report %d: %v", i, err)
		}
		ids = append(ids, report.ID)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("count mismatch: got %d, want 3", count)
	}

	// Oldest first, regardless of insert order guarantees
	reports, err := store.ListOldest(ctx, 10)
	if err != nil {
		t.Fatalf("list oldest: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for i, r := range reports {
		if r.ID != ids[i] {
			t.Errorf("position %d: got %s, want %s", i, r.ID, ids[i])
		}
	}
	if string(reports[0].Payload) != `{"uptime": 0}` {
		t.Errorf("payload mismatch: got %s", reports[0].Payload)
	}

	// Limit is honored
	limited, err := store.ListOldest(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 reports with limit 2, got %d", len(limited))
	}

	if err := store.MarkFailed(ctx, ids[0], 1, "connection refused"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	reports, err = store.ListOldest(ctx, 1)
	if err != nil {
		t.Fatalf("list after mark: %v", err)
	}
	if reports[0].Attempts != 1 || reports[0].LastError != "connection refused" {
		t.Errorf("failure not recorded: attempts=%d last_error=%q", reports[0].Attempts, reports[0].LastError)
	}

	if err := store.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, ids[0]); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound on double delete, got %v", err)
	}
	if err := store.MarkFailed(ctx, ids[0], 2, "x"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("expected ErrReportNotFound marking deleted report, got %v", err)
	}

	count, _ = store.Count(ctx)
	if count != 2 {
		t.Errorf("count after delete mismatch: got %d, want 2", count)
	}
}

// mockReporter implements Reporter for spool tests.
type mockReporter struct {
	mu        sync.Mutex
	healthErr error
	delivered [][]byte

	// errFor returns the delivery error for a given payload, nil to accept.
	errFor func(payload []byte) error
}

func (m *mockReporter) CheckHealth(_ context.Context) error {
	return m.healthErr
}

func (m *mockReporter) ReportRaw(_ context.Context, payload []byte) (*ReportAck, error) {
	if m.errFor != nil {
		if err := m.errFor(payload); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.delivered = append(m.delivered, payload)
	m.mu.Unlock()
	return &ReportAck{MachineID: "m-1", SnapshotID: uuid.NewString()}, nil
}

func (m *mockReporter) deliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

// failingDeleteStore wraps a SpoolStore with a Delete that always fails.
type failingDeleteStore struct {
	SpoolStore
	deleteErr error
}

func (f *failingDeleteStore) Delete(_ context.Context, _ uuid.UUID) error {
	return f.deleteErr
}

func TestSpoolEnqueue(t *testing.T) {
	store := newTestSpoolStore(t)
	spool := NewSpool(store, &mockReporter{}, SpoolConfig{MaxReports: 2, FlushBatch: 10}, zerolog.Nop())
	ctx := context.Background()

	for i := range 2 {
		if _, err := spool.Enqueue(ctx, []byte(`{}`)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	if _, err := spool.Enqueue(ctx, []byte(`{}`)); !errors.Is(err, ErrSpoolFull) {
		t.Fatalf("expected ErrSpoolFull, got %v", err)
	}
}

func TestSpoolFlushNow(t *testing.T) {
	t.Run("drains oldest first", func(t *testing.T) {
		store := newTestSpoolStore(t)
		reporter := &mockReporter{}
		spool := NewSpool(store, reporter, DefaultSpoolConfig(), zerolog.Nop())
		ctx := context.Background()

		for i := range 3 {
			if _, err := spool.Enqueue(ctx, []byte(fmt.Sprintf(`{"uptime": %d}`, i))); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}

		if err := spool.FlushNow(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}

		if reporter.deliveredCount() != 3 {
			t.Fatalf("expected 3 deliveries, got %d", reporter.deliveredCount())
		}
		if string(reporter.delivered[0]) != `{"uptime": 0}` {
			t.Errorf("expected oldest report first, got %s", reporter.delivered[0])
		}
		count, _ := store.Count(ctx)
		if count != 0 {
			t.Errorf("expected empty spool after flush, got %d", count)
		}
	})

	t.Run("rejected reports are dropped", func(t *testing.T) {
		store := newTestSpoolStore(t)
		reporter := &mockReporter{
			errFor: func(payload []byte) error {
				if string(payload) == `{"bad": true}` {
					return fmt.Errorf("%w: status 400", ErrRejected)
				}
				return nil
			},
		}
		spool := NewSpool(store, reporter, DefaultSpoolConfig(), zerolog.Nop())
		ctx := context.Background()

		_, _ = spool.Enqueue(ctx, []byte(`{"bad": true}`))
		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 1}`))

		if err := spool.FlushNow(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}

		if reporter.deliveredCount() != 1 {
			t.Errorf("expected 1 delivery, got %d", reporter.deliveredCount())
		}
		count, _ := store.Count(ctx)
		if count != 0 {
			t.Errorf("expected rejected report to be dropped, spool has %d", count)
		}
	})

	t.Run("transport failure keeps remainder", func(t *testing.T) {
		store := newTestSpoolStore(t)
		reporter := &mockReporter{
			errFor: func(payload []byte) error {
				if string(payload) == `{"uptime": 1}` {
					return errors.New("connection reset")
				}
				return nil
			},
		}
		spool := NewSpool(store, reporter, DefaultSpoolConfig(), zerolog.Nop())
		ctx := context.Background()

		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 0}`))
		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 1}`))
		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 2}`))

		if err := spool.FlushNow(ctx); err == nil {
			t.Fatal("expected an error")
		}

		if reporter.deliveredCount() != 1 {
			t.Errorf("expected 1 delivery before the failure, got %d", reporter.deliveredCount())
		}
		count, _ := store.Count(ctx)
		if count != 2 {
			t.Errorf("expected 2 reports still spooled, got %d", count)
		}

		reports, _ := store.ListOldest(ctx, 1)
		if len(reports) != 1 || reports[0].Attempts != 1 {
			t.Errorf("expected failed report to record an attempt, got %+v", reports)
		}
		if spool.IsServerReachable() {
			t.Error("expected spool to mark server unreachable after transport failure")
		}
	})

	t.Run("delete failure stops the pass", func(t *testing.T) {
		store := newTestSpoolStore(t)
		reporter := &mockReporter{}
		cfg := DefaultSpoolConfig()
		cfg.FlushBatch = 1
		broken := &failingDeleteStore{SpoolStore: store, deleteErr: errors.New("disk i/o error")}
		spool := NewSpool(broken, reporter, cfg, zerolog.Nop())
		ctx := context.Background()

		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 0}`))
		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 1}`))

		if err := spool.FlushNow(ctx); err == nil {
			t.Fatal("expected an error")
		}

		// The undeletable report must not be re-sent in the same pass.
		if reporter.deliveredCount() != 1 {
			t.Errorf("expected 1 delivery, got %d", reporter.deliveredCount())
		}
		count, _ := store.Count(ctx)
		if count != 2 {
			t.Errorf("expected 2 reports still spooled, got %d", count)
		}
	})

	t.Run("unreachable server skips flush", func(t *testing.T) {
		store := newTestSpoolStore(t)
		reporter := &mockReporter{healthErr: errors.New("dial tcp: connection refused")}
		spool := NewSpool(store, reporter, DefaultSpoolConfig(), zerolog.Nop())
		ctx := context.Background()

		_, _ = spool.Enqueue(ctx, []byte(`{"uptime": 0}`))

		if err := spool.FlushNow(ctx); !errors.Is(err, ErrServerUnreachable) {
			t.Fatalf("expected ErrServerUnreachable, got %v", err)
		}
		if reporter.deliveredCount() != 0 {
			t.Errorf("expected no delivery attempts, got %d", reporter.deliveredCount())
		}
	})
}

func TestSpoolStartStop(t *testing.T) {
	store := newTestSpoolStore(t)
	reporter := &mockReporter{}
	cfg := DefaultSpoolConfig()
	cfg.FlushInterval = time.Hour

	spool := NewSpool(store, reporter, cfg, zerolog.Nop())
	spool.Start(context.Background())

	if !spool.IsServerReachable() {
		t.Error("expected server to be reachable after start")
	}

	spool.Stop()
}
