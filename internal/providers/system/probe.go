package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"
)

// ErrProbeFailed is returned when no metric source produced a reading.
var ErrProbeFailed = errors.New("system probe failed")

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// NotAvailable is reported for string readings whose command failed.
const NotAvailable = "N/A"

// Info is the metrics snapshot returned by /api/system-info.
type Info struct {
	Hostname      string `json:"hostname"`
	Serial        string `json:"serial"`
	Location      string `json:"location"`
	Uptime        int64  `json:"uptime"`
	CPUTemp       string `json:"cpu_temp"`
	CPUUsage      string `json:"cpu_usage"`
	MemTotal      int    `json:"mem_total"`
	MemUsed       int    `json:"mem_used"`
	MemFree       int    `json:"mem_free"`
	MemPercent    int    `json:"mem_percent"`
	DiskTotal     string `json:"disk_total"`
	DiskUsed      string `json:"disk_used"`
	DiskAvailable string `json:"disk_available"`
	DiskPercent   int    `json:"disk_percent"`
	Timestamp     string `json:"timestamp"`
}

// FailureRecorder counts sub-readings that fell back to a sentinel.
type FailureRecorder interface {
	RecordProbeFailure(command string)
}

// Identity names the controller in every snapshot.
type Identity struct {
	Serial   string
	Location string
}

// Probe collects a metrics snapshot from OS utilities.
type Probe struct {
	runner   Runner
	identity Identity
	logger   *zap.Logger
	failures FailureRecorder

	hostname   func() (string, error)
	uptime     func(ctx context.Context) (uint64, error)
	cpuPercent func(ctx context.Context) (float64, error)
	now        func() time.Time
}

// NewProbe creates a probe running commands through runner. failures may be nil.
func NewProbe(runner Runner, identity Identity, logger *zap.Logger, failures FailureRecorder) *Probe {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Probe{
		runner:     runner,
		identity:   identity,
		logger:     logger,
		failures:   failures,
		hostname:   os.Hostname,
		uptime:     host.UptimeWithContext,
		cpuPercent: sampleCPU,
		now:        time.Now,
	}
}

// Collect runs every probe command and assembles the snapshot. A failing
// command degrades its own fields only; ErrProbeFailed is returned when all
// of them fail.
func (p *Probe) Collect(ctx context.Context) (*Info, error) {
	info := &Info{
		Serial:   p.identity.Serial,
		Location: p.identity.Location,
	}

	hostname, err := p.hostname()
	if err != nil {
		p.logger.Warn("hostname lookup failed", zap.Error(err))
	}
	info.Hostname = hostname

	if up, err := p.uptime(ctx); err == nil {
		info.Uptime = int64(up)
	} else {
		p.logger.Warn("uptime lookup failed", zap.Error(err))
	}

	succeeded := 0

	info.CPUTemp = NotAvailable
	if out, err := p.run(ctx, "vcgencmd", "measure_temp"); err == nil {
		if temp, err := parseTemp(string(out)); err == nil {
			info.CPUTemp = temp
			succeeded++
		} else {
			p.fail("vcgencmd", err)
		}
	}

	if out, err := p.run(ctx, "free", "-m"); err == nil {
		if mem, err := parseFree(string(out)); err == nil {
			info.MemTotal = mem.Total
			info.MemUsed = mem.Used
			info.MemFree = mem.Free
			info.MemPercent = mem.Percent
			succeeded++
		} else {
			p.fail("free", err)
		}
	}

	info.DiskTotal, info.DiskUsed, info.DiskAvailable = NotAvailable, NotAvailable, NotAvailable
	if out, err := p.run(ctx, "df", "-h", "/"); err == nil {
		if disk, err := parseDF(string(out)); err == nil {
			info.DiskTotal = disk.Total
			info.DiskUsed = disk.Used
			info.DiskAvailable = disk.Available
			info.DiskPercent = disk.Percent
			succeeded++
		} else {
			p.fail("df", err)
		}
	}

	usage, ok := p.cpuUsage(ctx)
	if ok {
		succeeded++
	}
	info.CPUUsage = strconv.FormatFloat(usage, 'f', 1, 64)

	if succeeded == 0 {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrProbeFailed, ctx.Err())
		}
		return nil, ErrProbeFailed
	}

	info.Timestamp = p.now().UTC().Format(isoMillis)
	return info, nil
}

// cpuUsage reads top, then gopsutil, then gives up with 0.
func (p *Probe) cpuUsage(ctx context.Context) (float64, bool) {
	if out, err := p.run(ctx, "top", "-bn1"); err == nil {
		usage, err := parseTop(string(out))
		if err == nil {
			return usage, true
		}
		p.fail("top", err)
	}

	usage, err := p.cpuPercent(ctx)
	if err != nil {
		p.logger.Debug("cpu sampling fallback failed", zap.Error(err))
		return 0, false
	}
	return usage, true
}

func (p *Probe) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := p.runner.Run(ctx, name, args...)
	if err != nil {
		p.fail(name, err)
		return nil, err
	}
	return out, nil
}

func (p *Probe) fail(command string, err error) {
	p.logger.Debug("probe command failed", zap.String("command", command), zap.Error(err))
	if p.failures != nil {
		p.failures.RecordProbeFailure(command)
	}
}

func sampleCPU(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, errUnexpectedOutput
	}
	return percents[0], nil
}
