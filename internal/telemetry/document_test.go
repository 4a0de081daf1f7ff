package telemetry

import (
	"errors"
	"testing"
)

func TestParseFullDocument(t *testing.T) {
	data := []byte(`{
		"system": {"hostname": "office-pc", "os_name": "Linux", "os_version": "6.8.0"},
		"cpu": {"total": 23.5, "user": 12.1, "system": 8.4, "iowait": 0.3, "cpucore": 8},
		"mem": {"percent": 41.2, "used": 6871947673, "total": 16679316480},
		"memswap": {"percent": 2.0, "used": 41943040, "total": 2147483648, "free": 2105540608},
		"load": {"min1": 0.52, "min5": 0.48, "min15": 0.33},
		"uptime": 86461,
		"fs": [{"mnt_point": "/", "device_name": "/dev/sda1", "used": 50, "size": 100}],
		"network": [{"interface_name": "eth0", "bytes_sent": 1048576, "bytes_recv": 20971520}],
		"sensors": [{"label": "CPU Temp", "unit": "C", "value": 54.0, "status": "ok"}],
		"alert": [{"type": "cpu", "state": "warning", "sort": "desc", "desc": "high load"}]
	}`)

	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if doc.System == nil || doc.System.Hostname != "office-pc" {
		t.Errorf("system section not parsed: %+v", doc.System)
	}
	if doc.CPU == nil || doc.CPU.Total == nil || *doc.CPU.Total != 23.5 {
		t.Errorf("cpu section not parsed: %+v", doc.CPU)
	}
	if doc.CPU.CPUCore == nil || *doc.CPU.CPUCore != 8 {
		t.Errorf("cpucore not parsed: %+v", doc.CPU)
	}
	if doc.Uptime == nil || *doc.Uptime != 86461 {
		t.Errorf("uptime not parsed: %v", doc.Uptime)
	}
	if len(doc.FS) != 1 || doc.FS[0].MountPoint != "/" {
		t.Errorf("fs section not parsed: %+v", doc.FS)
	}
	if len(doc.Network) != 1 || doc.Network[0].BytesSentGauge != nil {
		t.Errorf("network section not parsed: %+v", doc.Network)
	}
	if len(doc.Sensors) != 1 || doc.Sensors[0].Label != "CPU Temp" {
		t.Errorf("sensors section not parsed: %+v", doc.Sensors)
	}
	if len(doc.Alert) != 1 || doc.Alert[0].State != "warning" {
		t.Errorf("alert section not parsed: %+v", doc.Alert)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	doc, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if doc.System != nil || doc.CPU != nil || len(doc.FS) != 0 {
		t.Errorf("expected empty document, got %+v", doc)
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json at all`},
		{"json array", `[1, 2, 3]`},
		{"unknown top-level key", `{"cpu": {"total": 1}, "gpu": {"total": 99}}`},
		{"negative mem bytes", `{"mem": {"used": -1, "total": 100}}`},
		{"negative fs bytes", `{"fs": [{"mnt_point": "/", "used": 10, "size": -5}]}`},
		{"negative network bytes", `{"network": [{"interface_name": "eth0", "bytes_recv": -7}]}`},
		{"float fs bytes", `{"fs": [{"mnt_point": "/", "used": 1.5, "size": 10}]}`},
		{"negative uptime", `{"uptime": -10}`},
		{"garbage uptime string", `{"uptime": "yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParseIgnoresUnknownSectionFields(t *testing.T) {
	doc, err := Parse([]byte(`{"cpu": {"total": 10.0, "steal": 1.2, "guest": 0.1}}`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if doc.CPU.Total == nil || *doc.CPU.Total != 10.0 {
		t.Errorf("cpu.total not parsed: %+v", doc.CPU)
	}
}

func TestUptimeString(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{`{"uptime": "4:05:06"}`, 4*3600 + 5*60 + 6},
		{`{"uptime": "1 day, 2:03:04"}`, 86400 + 2*3600 + 3*60 + 4},
		{`{"uptime": "12 days, 0:00:01"}`, 12*86400 + 1},
	}

	for _, tt := range tests {
		doc, err := Parse([]byte(tt.in))
		if err != nil {
			t.Fatalf("Parse(%s) error: %v", tt.in, err)
		}
		if doc.Uptime == nil || int64(*doc.Uptime) != tt.want {
			t.Errorf("Parse(%s) uptime = %v, want %d", tt.in, doc.Uptime, tt.want)
		}
	}
}
