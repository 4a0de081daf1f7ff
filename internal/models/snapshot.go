package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SnapshotSource indicates how a snapshot reached the server.
type SnapshotSource string

const (
	// SourceWebhook indicates the machine's agent pushed the snapshot.
	SourceWebhook SnapshotSource = "webhook"
	// SourceAPI indicates the server's poller pulled the snapshot.
	SourceAPI SnapshotSource = "api"
)

// FSEntry is a per-filesystem usage record. Used and Size are bytes.
type FSEntry struct {
	MountPoint string `json:"mnt_point"`
	DeviceName string `json:"device_name,omitempty"`
	Used       int64  `json:"used"`
	Size       int64  `json:"size"`
}

// UsedPercent derives the percent used from the stored byte counts.
// Returns 0 when the entry is degenerate (zero/negative size, negative
// used, or used exceeding size).
func (f FSEntry) UsedPercent() float64 {
	if f.Size <= 0 || f.Used < 0 || f.Used > f.Size {
		return 0
	}
	return float64(f.Used) / float64(f.Size) * 100
}

// NetworkEntry is a per-interface byte counter record. Sources report
// either cumulative counters (since interface reset) or interval gauges
// (delta since the prior poll); whichever was provided is kept, the two
// are never reconciled.
type NetworkEntry struct {
	InterfaceName  string `json:"interface_name"`
	BytesSent      *int64 `json:"bytes_sent,omitempty"`
	BytesRecv      *int64 `json:"bytes_recv,omitempty"`
	BytesSentGauge *int64 `json:"bytes_sent_gauge,omitempty"`
	BytesRecvGauge *int64 `json:"bytes_recv_gauge,omitempty"`
}

// SensorEntry is a single hardware sensor reading.
type SensorEntry struct {
	Label  string  `json:"label"`
	Unit   string  `json:"unit,omitempty"`
	Value  float64 `json:"value"`
	Status string  `json:"status,omitempty"`
}

// AlertEntry is a single alert raised by the telemetry source.
type AlertEntry struct {
	Type  string `json:"type"`
	State string `json:"state"`
	Sort  string `json:"sort,omitempty"`
	Desc  string `json:"desc,omitempty"`
}

// Snapshot is an immutable point-in-time telemetry record for a machine.
// Rows are insert-only; a machine's current state is its most recent
// snapshot by creation time. Percentages are stored exactly as reported;
// consumers clamp for display.
type Snapshot struct {
	ID        uuid.UUID      `json:"id"`
	MachineID uuid.UUID      `json:"machine_id"`
	Source    SnapshotSource `json:"source"`

	CPUPercent *float64 `json:"cpu_percent,omitempty"`
	CPUUser    *float64 `json:"cpu_user,omitempty"`
	CPUSystem  *float64 `json:"cpu_system,omitempty"`
	CPUIOWait  *float64 `json:"cpu_iowait,omitempty"`
	CPUCount   *int     `json:"cpu_count,omitempty"`

	MemoryPercent *float64 `json:"memory_percent,omitempty"`
	MemoryUsed    *int64   `json:"memory_used,omitempty"`
	MemoryTotal   *int64   `json:"memory_total,omitempty"`

	SwapPercent *float64 `json:"swap_percent,omitempty"`
	SwapUsed    *int64   `json:"swap_used,omitempty"`
	SwapTotal   *int64   `json:"swap_total,omitempty"`
	SwapFree    *int64   `json:"swap_free,omitempty"`

	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
	LoadAvg       *float64 `json:"load_avg,omitempty"`

	BatteryPercent *float64 `json:"battery_percent,omitempty"`
	BatteryStatus  string   `json:"battery_status,omitempty"`

	FSEntries      []FSEntry      `json:"fs_entries,omitempty"`
	NetworkEntries []NetworkEntry `json:"network_entries,omitempty"`
	Sensors        []SensorEntry  `json:"sensors,omitempty"`
	Alerts         []AlertEntry   `json:"alerts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSnapshot creates a snapshot shell for the given machine and source.
func NewSnapshot(machineID uuid.UUID, source SnapshotSource) *Snapshot {
	return &Snapshot{
		ID:        uuid.New(),
		MachineID: machineID,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// SetFSEntries sets the filesystem entries from JSON bytes.
func (s *Snapshot) SetFSEntries(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.FSEntries)
}

// FSEntriesJSON returns the filesystem entries as JSON bytes for database storage.
func (s *Snapshot) FSEntriesJSON() ([]byte, error) {
	if s.FSEntries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.FSEntries)
}

// SetNetworkEntries sets the network entries from JSON bytes.
func (s *Snapshot) SetNetworkEntries(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.NetworkEntries)
}

// NetworkEntriesJSON returns the network entries as JSON bytes for database storage.
func (s *Snapshot) NetworkEntriesJSON() ([]byte, error) {
	if s.NetworkEntries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.NetworkEntries)
}

// SetSensors sets the sensor entries from JSON bytes.
func (s *Snapshot) SetSensors(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.Sensors)
}

// SensorsJSON returns the sensor entries as JSON bytes for database storage.
func (s *Snapshot) SensorsJSON() ([]byte, error) {
	if s.Sensors == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Sensors)
}

// SetAlerts sets the alert entries from JSON bytes.
func (s *Snapshot) SetAlerts(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.Alerts)
}

// AlertsJSON returns the alert entries as JSON bytes for database storage.
func (s *Snapshot) AlertsJSON() ([]byte, error) {
	if s.Alerts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Alerts)
}
