package statuscollector

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/openclaw/dashboard/dashsdk"
)

// RunsFile reads agent run counters from the gateway's subagents/runs.json.
// A missing file means nothing has run yet.
type RunsFile struct {
	FS   afero.Fs
	Path string
}

var _ AgentSource = (*RunsFile)(nil)

func (r *RunsFile) Stats(_ context.Context) (dashsdk.AgentStats, error) {
	fs := r.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, r.Path)
	if xerrors.Is(err, os.ErrNotExist) {
		return dashsdk.AgentStats{}, nil
	}
	if err != nil {
		return dashsdk.AgentStats{}, xerrors.Errorf("read runs: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return dashsdk.AgentStats{}, xerrors.Errorf("parse %s: invalid JSON", r.Path)
	}

	var stats dashsdk.AgentStats
	agents := map[string]struct{}{}
	gjson.GetBytes(data, "runs").ForEach(func(id, run gjson.Result) bool {
		stats.TotalRuns++
		if run.Get("status").String() != "running" {
			return true
		}
		stats.RunningTasks++
		name := run.Get("agentName").String()
		if name == "" {
			name = id.String()
		}
		agents[name] = struct{}{}
		return true
	})
	stats.RunningAgents = len(agents)
	return stats, nil
}
