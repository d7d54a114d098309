package statuscollector_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashd/resultcache"
	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
	"github.com/openclaw/dashboard/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, testutil.GoleakOptions...)
}

type fakeProbe struct{ calls atomic.Int64 }

func (p *fakeProbe) System(context.Context) dashsdk.SystemHealth {
	p.calls.Add(1)
	return dashsdk.SystemHealth{CPUPercent: 12.5}
}

func (*fakeProbe) Gateway(context.Context) dashsdk.GatewayStatus {
	return dashsdk.GatewayStatus{Running: true, PID: 42}
}

type fakeTasks struct {
	todos     atomic.Int64
	completed atomic.Int64
	err       error
}

func (f *fakeTasks) Todos(context.Context) ([]dashsdk.Task, error) {
	f.todos.Add(1)
	return []dashsdk.Task{{ID: "t1", Title: "Pending"}}, f.err
}

func (f *fakeTasks) Completed(_ context.Context, limit int) ([]dashsdk.Task, error) {
	f.completed.Add(1)
	if limit != statuscollector.DefaultCompletedLimit {
		return nil, xerrors.Errorf("unexpected limit %d", limit)
	}
	return []dashsdk.Task{{ID: "c1", Title: "Done", Completed: true}}, nil
}

type fakePanels struct {
	calls       atomic.Int64
	invalidated atomic.Int64
	last        atomic.Value
}

func (f *fakePanels) Panels(_ context.Context, stats usage.RunStats) ([]dashsdk.UsagePanel, error) {
	f.calls.Add(1)
	f.last.Store(stats)
	return []dashsdk.UsagePanel{{Key: dashsdk.ProviderGemini}}, nil
}

func (f *fakePanels) Invalidate() { f.invalidated.Add(1) }

type fixture struct {
	c      *statuscollector.Collector
	clock  *quartz.Mock
	probe  *fakeProbe
	tasks  *fakeTasks
	panels *fakePanels
}

func setup(t *testing.T) *fixture {
	t.Helper()
	clock := quartz.NewMock(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/oc/subagents/runs.json", []byte(`{"runs": {
		"r1": {"agentName": "coder", "status": "running"},
		"r2": {"agentName": "coder", "status": "running"},
		"r3": {"agentName": "writer", "status": "done"}
	}}`), 0o600))
	f := &fixture{
		clock:  clock,
		probe:  &fakeProbe{},
		tasks:  &fakeTasks{},
		panels: &fakePanels{},
	}
	f.c = statuscollector.New(statuscollector.Options{
		System: f.probe,
		Agents: &statuscollector.RunsFile{FS: fs, Path: "/oc/subagents/runs.json"},
		Tasks:  f.tasks,
		Usage:  f.panels,
		Cache:  resultcache.New(resultcache.WithClock(clock)),
		Clock:  clock,
		Logger: testutil.Logger(t),
	})
	return f
}

func TestFullStatus(t *testing.T) {
	t.Parallel()

	t.Run("Full", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		status, err := f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		require.False(t, status.Light)
		require.Equal(t, 12.5, status.System.CPUPercent)
		require.True(t, status.Gateway.Running)
		require.Equal(t, dashsdk.AgentStats{RunningTasks: 2, RunningAgents: 1, TotalRuns: 3}, status.Agents)
		require.Len(t, status.Todos, 1)
		require.Len(t, status.CompletedTasks, 1)
		require.Len(t, status.UsagePanels, 1)
		require.Equal(t, usage.RunStats{RunningTasks: 2, RunningAgents: 1}, f.panels.last.Load())
	})

	t.Run("Light", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		status, err := f.c.FullStatus(ctx, true)
		require.NoError(t, err)
		require.True(t, status.Light)
		require.NotNil(t, status.Todos)
		require.Empty(t, status.Todos)
		require.Empty(t, status.UsagePanels)
		require.Zero(t, f.tasks.todos.Load())
		require.Zero(t, f.panels.calls.Load())
	})

	t.Run("CachedPerMode", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.c.FullStatus(ctx, true)
		require.NoError(t, err)
		_, err = f.c.FullStatus(ctx, true)
		require.NoError(t, err)
		require.EqualValues(t, 1, f.probe.calls.Load())

		_, err = f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		require.EqualValues(t, 2, f.probe.calls.Load())

		f.clock.Advance(statuscollector.DefaultStatusTTL).MustWait(ctx)
		_, err = f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		require.EqualValues(t, 3, f.probe.calls.Load())
		// Task lists live longer than the status view.
		require.EqualValues(t, 1, f.tasks.todos.Load())
	})

	t.Run("InvalidateTasks", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		f.c.InvalidateTasks()
		_, err = f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		require.EqualValues(t, 2, f.tasks.todos.Load())
		require.EqualValues(t, 2, f.tasks.completed.Load())
		require.EqualValues(t, 2, f.probe.calls.Load())
	})

	t.Run("InvalidateUsage", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)

		_, err := f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		f.c.InvalidateUsage()
		require.EqualValues(t, 1, f.panels.invalidated.Load())
		_, err = f.c.FullStatus(ctx, false)
		require.NoError(t, err)
		require.EqualValues(t, 2, f.probe.calls.Load())
		require.EqualValues(t, 1, f.tasks.todos.Load())
	})

	t.Run("TaskError", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.Context(t, testutil.WaitShort)
		f := setup(t)
		f.tasks.err = xerrors.New("disk on fire")

		_, err := f.c.FullStatus(ctx, false)
		require.ErrorContains(t, err, "disk on fire")

		// Errors are not cached.
		f.tasks.err = nil
		_, err = f.c.FullStatus(ctx, false)
		require.NoError(t, err)
	})
}

func TestRunsFile(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)
	fs := afero.NewMemMapFs()

	stats, err := (&statuscollector.RunsFile{FS: fs, Path: "/missing.json"}).Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats)

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte("{"), 0o600))
	_, err = (&statuscollector.RunsFile{FS: fs, Path: "/bad.json"}).Stats(ctx)
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/anon.json", []byte(`{"runs":{"a":{"status":"running"},"b":{"status":"running"}}}`), 0o600))
	stats, err = (&statuscollector.RunsFile{FS: fs, Path: "/anon.json"}).Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, dashsdk.AgentStats{RunningTasks: 2, RunningAgents: 2, TotalRuns: 2}, stats)
}

func TestPanels(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t, testutil.WaitShort)
	f := setup(t)

	panels, err := f.c.Panels(ctx)
	require.NoError(t, err)
	require.Len(t, panels, 1)
	require.Equal(t, usage.RunStats{RunningTasks: 2, RunningAgents: 1}, f.panels.last.Load())

	empty := statuscollector.New(statuscollector.Options{Logger: testutil.Logger(t)})
	panels, err = empty.Panels(ctx)
	require.NoError(t, err)
	require.NotNil(t, panels)
	require.Empty(t, panels)
}
