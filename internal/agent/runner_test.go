package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerReportOnce(t *testing.T) {
	t.Run("delivers directly when server is up", func(t *testing.T) {
		var reports atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/webhook/telemetry" {
				reports.Add(1)
			}
			_, _ = w.Write([]byte(`{"machine_id": "m-1", "snapshot_id": "s-1"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "hub-secret", "m-1")
		runner := NewRunner(NewCollector(), client, nil, time.Hour, zerolog.Nop())

		if err := runner.ReportOnce(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reports.Load() != 1 {
			t.Errorf("expected 1 report, got %d", reports.Load())
		}
	})

	t.Run("spools when server is unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		store := newTestSpoolStore(t)
		client := NewClient(srv.URL, "hub-secret", "m-1")
		spool := NewSpool(store, client, DefaultSpoolConfig(), zerolog.Nop())
		runner := NewRunner(NewCollector(), client, spool, time.Hour, zerolog.Nop())

		if err := runner.ReportOnce(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		count, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 spooled report, got %d", count)
		}
	})

	t.Run("rejection is surfaced, not spooled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		store := newTestSpoolStore(t)
		client := NewClient(srv.URL, "wrong-secret", "")
		spool := NewSpool(store, client, DefaultSpoolConfig(), zerolog.Nop())
		runner := NewRunner(NewCollector(), client, spool, time.Hour, zerolog.Nop())

		err := runner.ReportOnce(context.Background())
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected, got %v", err)
		}

		count, _ := store.Count(context.Background())
		if count != 0 {
			t.Errorf("expected nothing spooled on rejection, got %d", count)
		}
	})
}

func TestRunnerStartStop(t *testing.T) {
	var reports atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/webhook/telemetry" {
			reports.Add(1)
		}
		_, _ = w.Write([]byte(`{"machine_id": "m-1", "snapshot_id": "s-1"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "hub-secret", "m-1")
	runner := NewRunner(NewCollector(), client, nil, time.Hour, zerolog.Nop())
	runner.Start(context.Background())

	deadline := time.Now().Add(5 * time.Second)
	for reports.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	runner.Stop()

	if reports.Load() == 0 {
		t.Fatal("expected the initial report to fire")
	}
}
