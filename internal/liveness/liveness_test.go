package liveness

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	thresholds := DefaultThresholds()

	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		lastSeen *time.Time
		want     Status
	}{
		{"never reported", nil, StatusUnknown},
		{"one minute ago", ago(time.Minute), StatusOnline},
		{"just under online threshold", ago(5*time.Minute - time.Second), StatusOnline},
		{"exactly at online threshold", ago(5 * time.Minute), StatusWarning},
		{"ten minutes ago", ago(10 * time.Minute), StatusWarning},
		{"just under offline threshold", ago(30*time.Minute - time.Second), StatusWarning},
		{"exactly at offline threshold", ago(30 * time.Minute), StatusOffline},
		{"thirty-one minutes ago", ago(31 * time.Minute), StatusOffline},
		{"days ago", ago(72 * time.Hour), StatusOffline},
		{"future timestamp", ago(-time.Minute), StatusOnline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.lastSeen, now, thresholds); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyNonUTCInputs(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, loc)
	seen := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)

	if got := Classify(&seen, now, DefaultThresholds()); got != StatusOnline {
		t.Errorf("expected online across zones, got %s", got)
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		in   Status
		want Status
	}{
		{StatusOnline, StatusOnline},
		{StatusWarning, StatusOffline},
		{StatusOffline, StatusOffline},
		{StatusUnknown, StatusOffline},
	}

	for _, tt := range tests {
		if got := tt.in.Collapse(); got != tt.want {
			t.Errorf("Collapse(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
