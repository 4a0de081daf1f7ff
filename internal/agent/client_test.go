package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/machinehub/machinehub/internal/telemetry"
)

func TestClientReportRaw(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotSecret, gotMachineID, gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotSecret = r.Header.Get("X-Webhook-Secret")
			gotMachineID = r.URL.Query().Get("machine_id")
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"machine_id": "m-1", "snapshot_id": "s-1"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "hub-secret", "m-1")
		ack, err := client.ReportRaw(context.Background(), []byte(`{"cpu": {"total": 10}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotPath != "/webhook/telemetry" {
			t.Errorf("expected POST to /webhook/telemetry, got %q", gotPath)
		}
		if gotSecret != "hub-secret" {
			t.Errorf("expected secret header to be set, got %q", gotSecret)
		}
		if gotMachineID != "m-1" {
			t.Errorf("expected machine_id query param, got %q", gotMachineID)
		}
		if ack.SnapshotID != "s-1" {
			t.Errorf("expected snapshot id s-1, got %q", ack.SnapshotID)
		}
	})

	t.Run("no machine id omits query param", func(t *testing.T) {
		var hasParam bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hasParam = r.URL.Query()["machine_id"]
			_, _ = w.Write([]byte(`{"machine_id": "m-1", "snapshot_id": "s-1"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "hub-secret", "")
		if _, err := client.ReportRaw(context.Background(), []byte(`{}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hasParam {
			t.Error("expected no machine_id query param")
		}
	})

	t.Run("bad secret is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "wrong", "")
		_, err := client.ReportRaw(context.Background(), []byte(`{}`))
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected, got %v", err)
		}
	})

	t.Run("malformed document is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error": "malformed telemetry document"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "hub-secret", "")
		_, err := client.ReportRaw(context.Background(), []byte(`{"gpu": {}}`))
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("expected ErrRejected, got %v", err)
		}
	})

	t.Run("server error is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "hub-secret", "")
		_, err := client.ReportRaw(context.Background(), []byte(`{}`))
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.Is(err, ErrRejected) {
			t.Fatal("a 5xx must not be classified as a rejection")
		}
	})
}

func TestClientReport(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = buf
		_, _ = w.Write([]byte(`{"machine_id": "m-1", "snapshot_id": "s-1"}`))
	}))
	defer srv.Close()

	total := 42.5
	doc := &telemetry.Document{CPU: &telemetry.CPUSection{Total: &total}}

	client := NewClient(srv.URL, "hub-secret", "")
	if _, err := client.Report(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := telemetry.Parse(gotBody)
	if err != nil {
		t.Fatalf("sent body must be a valid telemetry document: %v", err)
	}
	if parsed.CPU == nil || parsed.CPU.Total == nil || *parsed.CPU.Total != 42.5 {
		t.Errorf("expected cpu.total 42.5 to round-trip, got %+v", parsed.CPU)
	}
}

func TestClientCheckHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("expected /health, got %q", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"status": "healthy"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", "")
		if err := client.CheckHealth(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "", "")
		if err := client.CheckHealth(context.Background()); err == nil {
			t.Fatal("expected an error")
		}
	})
}
