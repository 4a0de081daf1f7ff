// Package telemetry parses inbound Glances-style telemetry documents and
// normalizes them into snapshot records.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed indicates the document failed structural validation.
// No partial ingest happens for a malformed document.
var ErrMalformed = errors.New("malformed telemetry document")

// sectionNames is the canonical set of top-level keys. A document
// carrying any other top-level key is rejected. Keys inside sections
// that are not modeled here are ignored.
var sectionNames = map[string]bool{
	"system":  true,
	"cpu":     true,
	"mem":     true,
	"memswap": true,
	"load":    true,
	"uptime":  true,
	"fs":      true,
	"network": true,
	"sensors": true,
	"alert":   true,
}

// SystemSection carries machine identity fields.
type SystemSection struct {
	Hostname  string `json:"hostname"`
	OSName    string `json:"os_name"`
	OSVersion string `json:"os_version"`
}

// CPUSection carries CPU utilization percentages plus the core count.
type CPUSection struct {
	Total   *float64 `json:"total"`
	User    *float64 `json:"user"`
	System  *float64 `json:"system"`
	IOWait  *float64 `json:"iowait"`
	CPUCore *int     `json:"cpucore"`
}

// MemSection carries memory usage. Used and Total are bytes.
type MemSection struct {
	Percent *float64 `json:"percent"`
	Used    *int64   `json:"used"`
	Total   *int64   `json:"total"`
}

// SwapSection carries swap usage. Byte fields as in MemSection.
type SwapSection struct {
	Percent *float64 `json:"percent"`
	Used    *int64   `json:"used"`
	Total   *int64   `json:"total"`
	Free    *int64   `json:"free"`
}

// LoadSection carries load averages.
type LoadSection struct {
	Min1  *float64 `json:"min1"`
	Min5  *float64 `json:"min5"`
	Min15 *float64 `json:"min15"`
}

// FSItem is one filesystem entry as reported by the source.
type FSItem struct {
	MountPoint string `json:"mnt_point"`
	DeviceName string `json:"device_name"`
	Used       *int64 `json:"used"`
	Size       *int64 `json:"size"`
}

// NetworkItem is one interface entry. Cumulative counters and interval
// gauges are distinct fields; a source provides one or the other (or
// both) and the distinction is preserved downstream.
type NetworkItem struct {
	InterfaceName  string `json:"interface_name"`
	BytesSent      *int64 `json:"bytes_sent"`
	BytesRecv      *int64 `json:"bytes_recv"`
	BytesSentGauge *int64 `json:"bytes_sent_gauge"`
	BytesRecvGauge *int64 `json:"bytes_recv_gauge"`
}

// SensorItem is one sensor reading.
type SensorItem struct {
	Label  string   `json:"label"`
	Unit   string   `json:"unit"`
	Value  *float64 `json:"value"`
	Status string   `json:"status"`
}

// AlertItem is one alert raised by the source.
type AlertItem struct {
	Type  string `json:"type"`
	State string `json:"state"`
	Sort  string `json:"sort"`
	Desc  string `json:"desc"`
}

// Document is the validated canonical telemetry document. Every section
// is optional; absence normalizes to an empty sub-record downstream.
type Document struct {
	System  *SystemSection `json:"system,omitempty"`
	CPU     *CPUSection    `json:"cpu,omitempty"`
	Mem     *MemSection    `json:"mem,omitempty"`
	MemSwap *SwapSection   `json:"memswap,omitempty"`
	Load    *LoadSection   `json:"load,omitempty"`
	Uptime  *Uptime        `json:"uptime,omitempty"`
	FS      []FSItem       `json:"fs,omitempty"`
	Network []NetworkItem  `json:"network,omitempty"`
	Sensors []SensorItem   `json:"sensors,omitempty"`
	Alert   []AlertItem    `json:"alert,omitempty"`
}

// Uptime is seconds of uptime. Sources report it either as a number of
// seconds or as a human-readable "D days, HH:MM:SS" string.
type Uptime int64

// UnmarshalJSON accepts numeric seconds or a Glances-style duration string.
func (u *Uptime) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative uptime %v", secs)
		}
		*u = Uptime(secs)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("uptime must be a number or string: %w", err)
	}
	parsed, err := parseUptimeString(text)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalJSON writes uptime as numeric seconds.
func (u Uptime) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(u))
}

// parseUptimeString parses "N day(s), HH:MM:SS" or "HH:MM:SS".
func parseUptimeString(s string) (Uptime, error) {
	s = strings.TrimSpace(s)
	var days int64
	clock := s

	if idx := strings.Index(s, ","); idx >= 0 {
		dayPart := strings.TrimSpace(s[:idx])
		clock = strings.TrimSpace(s[idx+1:])
		fields := strings.Fields(dayPart)
		if len(fields) != 2 || !strings.HasPrefix(fields[1], "day") {
			return 0, fmt.Errorf("unparseable uptime %q", s)
		}
		d, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("unparseable uptime %q", s)
		}
		days = d
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unparseable uptime %q", s)
	}
	var hms [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("unparseable uptime %q", s)
		}
		hms[i] = v
	}
	return Uptime(days*86400 + hms[0]*3600 + hms[1]*60 + hms[2]), nil
}

// Parse validates raw bytes against the canonical document shape. Unknown
// top-level keys and negative byte counters reject the whole document;
// unknown keys inside a section are ignored.
func Parse(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for key := range raw {
		if !sectionNames[key] {
			return nil, fmt.Errorf("%w: unknown section %q", ErrMalformed, key)
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

func (d *Document) validate() error {
	checkBytes := func(field string, v *int64) error {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", field, *v)
		}
		return nil
	}

	if d.Mem != nil {
		if err := checkBytes("mem.used", d.Mem.Used); err != nil {
			return err
		}
		if err := checkBytes("mem.total", d.Mem.Total); err != nil {
			return err
		}
	}
	if d.MemSwap != nil {
		for field, v := range map[string]*int64{
			"memswap.used":  d.MemSwap.Used,
			"memswap.total": d.MemSwap.Total,
			"memswap.free":  d.MemSwap.Free,
		} {
			if err := checkBytes(field, v); err != nil {
				return err
			}
		}
	}
	for i, fs := range d.FS {
		if err := checkBytes(fmt.Sprintf("fs[%d].used", i), fs.Used); err != nil {
			return err
		}
		if err := checkBytes(fmt.Sprintf("fs[%d].size", i), fs.Size); err != nil {
			return err
		}
	}
	for i, n := range d.Network {
		for field, v := range map[string]*int64{
			fmt.Sprintf("network[%d].bytes_sent", i):       n.BytesSent,
			fmt.Sprintf("network[%d].bytes_recv", i):       n.BytesRecv,
			fmt.Sprintf("network[%d].bytes_sent_gauge", i): n.BytesSentGauge,
			fmt.Sprintf("network[%d].bytes_recv_gauge", i): n.BytesRecvGauge,
		} {
			if err := checkBytes(field, v); err != nil {
				return err
			}
		}
	}
	return nil
}
