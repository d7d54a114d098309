// Package statuscollector assembles the dashboard's aggregated status view
// from the stores, the usage aggregator and host probes. Every piece is
// memoized in the shared result cache.
package statuscollector

import (
	"context"
	"time"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashd/resultcache"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
)

// Cache keys owned by the collector.
const (
	KeyStatus      = "status"
	KeyStatusLight = "status_light"
	KeyTodos       = "todos"
	KeyCompleted   = "completed_tasks"
)

const (
	DefaultStatusTTL = 10 * time.Second
	DefaultTasksTTL  = 30 * time.Second
	// DefaultCompletedLimit is how many completed tasks the status view
	// carries.
	DefaultCompletedLimit = 30
)

type SystemProbe interface {
	System(ctx context.Context) dashsdk.SystemHealth
	Gateway(ctx context.Context) dashsdk.GatewayStatus
}

type AgentSource interface {
	Stats(ctx context.Context) (dashsdk.AgentStats, error)
}

// TaskLister is implemented by taskstore.Store.
type TaskLister interface {
	Todos(ctx context.Context) ([]dashsdk.Task, error)
	Completed(ctx context.Context, limit int) ([]dashsdk.Task, error)
}

// PanelSource is implemented by usage.Aggregator.
type PanelSource interface {
	Panels(ctx context.Context, stats usage.RunStats) ([]dashsdk.UsagePanel, error)
	Invalidate()
}

type Options struct {
	System         SystemProbe
	Agents         AgentSource
	Tasks          TaskLister
	Usage          PanelSource
	Cache          *resultcache.Cache
	Clock          quartz.Clock
	Logger         slog.Logger
	StatusTTL      time.Duration
	TasksTTL       time.Duration
	CompletedLimit int
}

type Collector struct {
	opts Options
	log  slog.Logger
}

func New(opts Options) *Collector {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Cache == nil {
		opts.Cache = resultcache.New(resultcache.WithClock(opts.Clock))
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = DefaultStatusTTL
	}
	if opts.TasksTTL <= 0 {
		opts.TasksTTL = DefaultTasksTTL
	}
	if opts.CompletedLimit <= 0 {
		opts.CompletedLimit = DefaultCompletedLimit
	}
	return &Collector{opts: opts, log: opts.Logger.Named("statuscollector")}
}

// FullStatus returns the aggregated view. The light view skips task lists
// and usage panels, and is cached separately.
func (c *Collector) FullStatus(ctx context.Context, light bool) (dashsdk.FullStatus, error) {
	key := KeyStatus
	if light {
		key = KeyStatusLight
	}
	return resultcache.GetOrCompute(c.opts.Cache, key, c.opts.StatusTTL, func() (dashsdk.FullStatus, error) {
		return c.collect(ctx, light)
	})
}

func (c *Collector) collect(ctx context.Context, light bool) (dashsdk.FullStatus, error) {
	status := dashsdk.FullStatus{
		Timestamp:      c.opts.Clock.Now(),
		Light:          light,
		Todos:          []dashsdk.Task{},
		CompletedTasks: []dashsdk.Task{},
		UsagePanels:    []dashsdk.UsagePanel{},
	}
	if c.opts.System != nil {
		status.System = c.opts.System.System(ctx)
		status.Gateway = c.opts.System.Gateway(ctx)
	}
	status.Agents = c.agentStats(ctx)
	if light {
		return status, nil
	}

	var err error
	if status.Todos, err = c.Todos(ctx); err != nil {
		return dashsdk.FullStatus{}, err
	}
	if status.CompletedTasks, err = c.Completed(ctx); err != nil {
		return dashsdk.FullStatus{}, err
	}
	if c.opts.Usage != nil {
		panels, err := c.opts.Usage.Panels(ctx, runStats(status.Agents))
		if err != nil {
			c.log.Warn(ctx, "build usage panels", slog.Error(err))
		} else {
			status.UsagePanels = panels
		}
	}
	return status, nil
}

// Panels returns the usage panels with the current agent run counts.
func (c *Collector) Panels(ctx context.Context) ([]dashsdk.UsagePanel, error) {
	if c.opts.Usage == nil {
		return []dashsdk.UsagePanel{}, nil
	}
	return c.opts.Usage.Panels(ctx, runStats(c.agentStats(ctx)))
}

func (c *Collector) agentStats(ctx context.Context) dashsdk.AgentStats {
	if c.opts.Agents == nil {
		return dashsdk.AgentStats{}
	}
	stats, err := c.opts.Agents.Stats(ctx)
	if err != nil {
		c.log.Warn(ctx, "read agent runs", slog.Error(err))
	}
	return stats
}

func runStats(a dashsdk.AgentStats) usage.RunStats {
	return usage.RunStats{RunningTasks: a.RunningTasks, RunningAgents: a.RunningAgents}
}

// Todos returns pending tasks, cached for the tasks TTL.
func (c *Collector) Todos(ctx context.Context) ([]dashsdk.Task, error) {
	return resultcache.GetOrCompute(c.opts.Cache, KeyTodos, c.opts.TasksTTL, func() ([]dashsdk.Task, error) {
		tasks, err := c.opts.Tasks.Todos(ctx)
		if err != nil {
			return nil, xerrors.Errorf("list todos: %w", err)
		}
		return tasks, nil
	})
}

// Completed returns the most recent completed tasks, cached for the tasks
// TTL.
func (c *Collector) Completed(ctx context.Context) ([]dashsdk.Task, error) {
	return resultcache.GetOrCompute(c.opts.Cache, KeyCompleted, c.opts.TasksTTL, func() ([]dashsdk.Task, error) {
		tasks, err := c.opts.Tasks.Completed(ctx, c.opts.CompletedLimit)
		if err != nil {
			return nil, xerrors.Errorf("list completed tasks: %w", err)
		}
		return tasks, nil
	})
}

// InvalidateTasks must be called after any task mutation.
func (c *Collector) InvalidateTasks() {
	c.opts.Cache.Invalidate(KeyTodos, KeyCompleted, KeyStatus, KeyStatusLight)
}

// InvalidateUsage must be called after provider settings change.
func (c *Collector) InvalidateUsage() {
	if c.opts.Usage != nil {
		c.opts.Usage.Invalidate()
	}
	c.opts.Cache.Invalidate(KeyStatus, KeyStatusLight)
}
