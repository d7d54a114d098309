// Package sysprobe reads host metrics and finds the gateway process.
package sysprobe

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/openclaw/dashboard/dashsdk"
)

// DefaultGatewayPattern matches the gateway's command line.
const DefaultGatewayPattern = "openclaw-gateway"

type Options struct {
	// DiskPath is the mount whose usage is reported. Defaults to "/".
	DiskPath string
	// GatewayPattern is a substring of the gateway command line.
	GatewayPattern string
	// CPUSample is how long CPU usage is sampled for.
	CPUSample time.Duration
	Logger    slog.Logger
}

type Probe struct {
	diskPath  string
	pattern   string
	cpuSample time.Duration
	log       slog.Logger
	selfPID   int32
}

func New(opts Options) *Probe {
	if opts.DiskPath == "" {
		opts.DiskPath = "/"
	}
	if opts.GatewayPattern == "" {
		opts.GatewayPattern = DefaultGatewayPattern
	}
	if opts.CPUSample <= 0 {
		opts.CPUSample = 100 * time.Millisecond
	}
	return &Probe{
		diskPath:  opts.DiskPath,
		pattern:   opts.GatewayPattern,
		cpuSample: opts.CPUSample,
		log:       opts.Logger.Named("sysprobe"),
		selfPID:   int32(os.Getpid()), //nolint:gosec // PIDs fit in int32.
	}
}

// System reports what it could read. Failed readings are left at zero
// and summarized in the Error field.
func (p *Probe) System(ctx context.Context) dashsdk.SystemHealth {
	var (
		health dashsdk.SystemHealth
		merr   *multierror.Error
	)
	if pct, err := cpu.PercentWithContext(ctx, p.cpuSample, false); err != nil {
		merr = multierror.Append(merr, xerrors.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		health.CPUPercent = round1(pct[0])
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		merr = multierror.Append(merr, xerrors.Errorf("memory: %w", err))
	} else {
		health.MemoryPercent = round1(vm.UsedPercent)
		health.MemoryUsed, health.MemoryTotal = vm.Used, vm.Total
	}
	if du, err := disk.UsageWithContext(ctx, p.diskPath); err != nil {
		merr = multierror.Append(merr, xerrors.Errorf("disk: %w", err))
	} else {
		health.DiskPercent = round1(du.UsedPercent)
		health.DiskUsed, health.DiskTotal = du.Used, du.Total
	}
	if up, err := host.UptimeWithContext(ctx); err != nil {
		merr = multierror.Append(merr, xerrors.Errorf("uptime: %w", err))
	} else {
		health.UptimeSeconds = up
	}
	if err := merr.ErrorOrNil(); err != nil {
		p.log.Warn(ctx, "read system health", slog.Error(err))
		health.Error = "some metrics are unavailable"
	}
	return health
}

// Gateway finds the first process whose command line contains the
// gateway pattern.
func (p *Probe) Gateway(ctx context.Context) dashsdk.GatewayStatus {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		p.log.Warn(ctx, "list processes", slog.Error(err))
		return dashsdk.GatewayStatus{Error: "process list unavailable"}
	}
	for _, proc := range procs {
		if proc.Pid == p.selfPID {
			continue
		}
		cmdline, err := proc.CmdlineWithContext(ctx)
		if err != nil || !strings.Contains(cmdline, p.pattern) {
			continue
		}
		status := dashsdk.GatewayStatus{Running: true, PID: proc.Pid, Command: cmdline}
		if ms, err := proc.CreateTimeWithContext(ctx); err == nil {
			started := time.UnixMilli(ms)
			status.StartedAt = &started
		}
		return status
	}
	return dashsdk.GatewayStatus{}
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
