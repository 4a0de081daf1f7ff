package agent

import (
	"context"
	"fmt"
	"runtime"

	"github.com/machinehub/machinehub/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Collector gathers local system state into a telemetry document.
type Collector struct{}

// NewCollector creates a new telemetry collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect gathers all available system sections. Sections whose probes fail
// are simply omitted; the document stays valid with whatever was readable.
func (c *Collector) Collect(ctx context.Context) (*telemetry.Document, error) {
	doc := &telemetry.Document{}

	c.collectSystem(ctx, doc)
	c.collectCPU(ctx, doc)
	c.collectMemory(ctx, doc)
	c.collectLoad(ctx, doc)
	c.collectFilesystems(ctx, doc)
	c.collectNetwork(ctx, doc)
	c.collectSensors(ctx, doc)

	if doc.System == nil {
		return nil, fmt.Errorf("could not determine host identity")
	}
	return doc, nil
}

func (c *Collector) collectSystem(ctx context.Context, doc *telemetry.Document) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return
	}

	osName := info.Platform
	if osName == "" {
		osName = runtime.GOOS
	}

	doc.System = &telemetry.SystemSection{
		Hostname:  info.Hostname,
		OSName:    osName,
		OSVersion: info.PlatformVersion,
	}

	uptime := telemetry.Uptime(info.Uptime)
	doc.Uptime = &uptime
}

func (c *Collector) collectCPU(ctx context.Context, doc *telemetry.Document) {
	// Instantaneous sample since the last call (or since boot on the first
	// one); avoids blocking the report loop on a timed sample window.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return
	}

	section := &telemetry.CPUSection{
		Total: floatPtr(percents[0]),
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		section.CPUCore = intPtr(cores)
	}

	if times, err := cpu.TimesWithContext(ctx, false); err == nil && len(times) > 0 {
		total := times[0].Total()
		if total > 0 {
			section.User = floatPtr(times[0].User / total * 100)
			section.System = floatPtr(times[0].System / total * 100)
			section.IOWait = floatPtr(times[0].Iowait / total * 100)
		}
	}

	doc.CPU = section
}

func (c *Collector) collectMemory(ctx context.Context, doc *telemetry.Document) {
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		doc.Mem = &telemetry.MemSection{
			Percent: floatPtr(vm.UsedPercent),
			Used:    int64Ptr(int64(vm.Used)),
			Total:   int64Ptr(int64(vm.Total)),
		}
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		doc.MemSwap = &telemetry.SwapSection{
			Percent: floatPtr(swap.UsedPercent),
			Used:    int64Ptr(int64(swap.Used)),
			Total:   int64Ptr(int64(swap.Total)),
			Free:    int64Ptr(int64(swap.Free)),
		}
	}
}

func (c *Collector) collectLoad(ctx context.Context, doc *telemetry.Document) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return
	}
	doc.Load = &telemetry.LoadSection{
		Min1:  floatPtr(avg.Load1),
		Min5:  floatPtr(avg.Load5),
		Min15: floatPtr(avg.Load15),
	}
}

func (c *Collector) collectFilesystems(ctx context.Context, doc *telemetry.Document) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return
	}

	for _, part := range partitions {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil || usage.Total == 0 {
			continue
		}
		doc.FS = append(doc.FS, telemetry.FSItem{
			MountPoint: part.Mountpoint,
			DeviceName: part.Device,
			Used:       int64Ptr(int64(usage.Used)),
			Size:       int64Ptr(int64(usage.Total)),
		})
	}
}

func (c *Collector) collectNetwork(ctx context.Context, doc *telemetry.Document) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return
	}

	for _, counter := range counters {
		doc.Network = append(doc.Network, telemetry.NetworkItem{
			InterfaceName: counter.Name,
			BytesSent:     int64Ptr(int64(counter.BytesSent)),
			BytesRecv:     int64Ptr(int64(counter.BytesRecv)),
		})
	}
}

func (c *Collector) collectSensors(ctx context.Context, doc *telemetry.Document) {
	readings, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil {
		return
	}

	for _, reading := range readings {
		if reading.SensorKey == "" {
			continue
		}
		doc.Sensors = append(doc.Sensors, telemetry.SensorItem{
			Label: reading.SensorKey,
			Unit:  "C",
			Value: floatPtr(reading.Temperature),
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
