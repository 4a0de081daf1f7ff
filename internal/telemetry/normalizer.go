package telemetry

import (
	"strings"

	"github.com/google/uuid"
	"github.com/machinehub/machinehub/internal/models"
)

// batteryLabel marks the sensors entry that carries battery charge.
const batteryLabel = "battery"

// Normalize converts a validated document into a snapshot record for the
// given machine. Absent sections become empty sub-records. Percentage
// values are carried over exactly as reported; clamping is left to
// consumers.
func Normalize(doc *Document, machineID uuid.UUID, source models.SnapshotSource) *models.Snapshot {
	s := models.NewSnapshot(machineID, source)

	if doc.CPU != nil {
		s.CPUPercent = doc.CPU.Total
		s.CPUUser = doc.CPU.User
		s.CPUSystem = doc.CPU.System
		s.CPUIOWait = doc.CPU.IOWait
		s.CPUCount = doc.CPU.CPUCore
	}

	if doc.Mem != nil {
		s.MemoryPercent = doc.Mem.Percent
		s.MemoryUsed = doc.Mem.Used
		s.MemoryTotal = doc.Mem.Total
	}

	if doc.MemSwap != nil {
		s.SwapPercent = doc.MemSwap.Percent
		s.SwapUsed = doc.MemSwap.Used
		s.SwapTotal = doc.MemSwap.Total
		s.SwapFree = doc.MemSwap.Free
	}

	if doc.Load != nil {
		s.LoadAvg = doc.Load.Min1
	}

	if doc.Uptime != nil {
		secs := int64(*doc.Uptime)
		s.UptimeSeconds = &secs
	}

	for _, fs := range doc.FS {
		entry := models.FSEntry{
			MountPoint: fs.MountPoint,
			DeviceName: fs.DeviceName,
		}
		if fs.Used != nil {
			entry.Used = *fs.Used
		}
		if fs.Size != nil {
			entry.Size = *fs.Size
		}
		s.FSEntries = append(s.FSEntries, entry)
	}

	for _, n := range doc.Network {
		s.NetworkEntries = append(s.NetworkEntries, models.NetworkEntry{
			InterfaceName:  n.InterfaceName,
			BytesSent:      n.BytesSent,
			BytesRecv:      n.BytesRecv,
			BytesSentGauge: n.BytesSentGauge,
			BytesRecvGauge: n.BytesRecvGauge,
		})
	}

	for _, sensor := range doc.Sensors {
		entry := models.SensorEntry{
			Label:  sensor.Label,
			Unit:   sensor.Unit,
			Status: sensor.Status,
		}
		if sensor.Value != nil {
			entry.Value = *sensor.Value
		}
		s.Sensors = append(s.Sensors, entry)

		if strings.EqualFold(sensor.Label, batteryLabel) {
			s.BatteryPercent = sensor.Value
			s.BatteryStatus = sensor.Status
		}
	}

	for _, alert := range doc.Alert {
		s.Alerts = append(s.Alerts, models.AlertEntry{
			Type:  alert.Type,
			State: alert.State,
			Sort:  alert.Sort,
			Desc:  alert.Desc,
		})
	}

	return s
}

// Identity extracts the machine identity fields reported by the document.
// Empty strings mean the document did not carry the field.
func (d *Document) Identity() (hostname, osName, osVersion string) {
	if d.System == nil {
		return "", "", ""
	}
	return d.System.Hostname, d.System.OSName, d.System.OSVersion
}
