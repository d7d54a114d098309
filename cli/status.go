package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/dashsdk"
)

func (r *RootCmd) status() *serpent.Command {
	var (
		out   outputFlag
		light bool
	)
	return &serpent.Command{
		Use:        "status",
		Short:      "Show the status of a running dashboard server",
		Middleware: serpent.RequireNArgs(0),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:        "light",
				Description: "Skip task lists and usage panels.",
				Value:       serpent.BoolOf(&light),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			client, err := r.client()
			if err != nil {
				return err
			}
			status, err := client.Status(inv.Context(), light)
			if err != nil {
				return err
			}
			return out.write(inv.Stdout, status, func() table.Writer { return statusTable(status) })
		},
	}
}

func statusTable(s dashsdk.FullStatus) table.Writer {
	tw := newTable(table.Row{"Item", "Value"})
	sys := s.System
	tw.AppendRow(table.Row{"CPU", fmt.Sprintf("%.1f%%", sys.CPUPercent)})
	tw.AppendRow(table.Row{"Memory", fmt.Sprintf("%.1f%% (%s of %s)",
		sys.MemoryPercent, humanize.IBytes(sys.MemoryUsed), humanize.IBytes(sys.MemoryTotal))})
	tw.AppendRow(table.Row{"Disk", fmt.Sprintf("%.1f%% (%s of %s)",
		sys.DiskPercent, humanize.IBytes(sys.DiskUsed), humanize.IBytes(sys.DiskTotal))})
	tw.AppendRow(table.Row{"Uptime", (time.Duration(sys.UptimeSeconds) * time.Second).String()})
	if sys.Error != "" {
		tw.AppendRow(table.Row{"System error", sys.Error})
	}

	gateway := "stopped"
	if s.Gateway.Running {
		gateway = fmt.Sprintf("running (pid %d)", s.Gateway.PID)
		if s.Gateway.StartedAt != nil {
			gateway += ", started " + humanize.Time(*s.Gateway.StartedAt)
		}
	}
	tw.AppendRow(table.Row{"Gateway", gateway})
	tw.AppendRow(table.Row{"Agents", fmt.Sprintf("%d running tasks, %d running agents, %d runs",
		s.Agents.RunningTasks, s.Agents.RunningAgents, s.Agents.TotalRuns)})
	if !s.Light {
		tw.AppendRow(table.Row{"Todos", len(s.Todos)})
		tw.AppendRow(table.Row{"Completed", len(s.CompletedTasks)})
		for _, p := range s.UsagePanels {
			tw.AppendRow(table.Row{p.Title, fmt.Sprintf("%s: %s", p.PanelState, p.Message)})
		}
	}
	tw.AppendRow(table.Row{"Collected", relativeTime(s.Timestamp)})
	return tw
}
