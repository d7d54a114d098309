package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"

	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
)

func panelTable(panels []dashsdk.UsagePanel) table.Writer {
	tw := newTable(table.Row{"Provider", "State", "Used", "Percent", "Remaining", "Refresh", "Models", "Message"})
	for _, p := range panels {
		used := "-"
		if p.Used != nil && p.Total != nil {
			used = fmt.Sprintf("%s / %s", humanize.Comma(*p.Used), humanize.Comma(*p.Total))
		} else if p.Used != nil {
			used = humanize.Comma(*p.Used)
		}
		percent := "-"
		if p.Percent != nil {
			percent = fmt.Sprintf("%.1f%%", *p.Percent)
		}
		tw.AppendRow(table.Row{
			p.Title,
			p.PanelState,
			used,
			percent,
			orDash(deref(p.RemainingText)),
			orDash(deref(p.RefreshWindow)),
			orDash(strings.Join(p.Models, ", ")),
			p.Message,
		})
	}
	return tw
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *RootCmd) usage() *serpent.Command {
	var (
		out     outputFlag
		timeout time.Duration
	)
	return &serpent.Command{
		Use:        "usage",
		Short:      "Query every enabled provider and print its usage panel",
		Middleware: serpent.RequireNArgs(0),
		Options: serpent.OptionSet{
			out.option(),
			{
				Flag:        "upstream-timeout",
				Env:         envPrefix + "UPSTREAM_TIMEOUT",
				Description: "Time limit for each provider call.",
				Default:     usage.DefaultTimeout.String(),
				Value:       serpent.DurationOf(&timeout),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			runs := &statuscollector.RunsFile{FS: afero.NewOsFs(), Path: r.runsPath()}
			agg := usage.New(usage.Options{
				Config:   r.settingsStore(logger),
				Fallback: usage.MiniMaxEnvFallback(inv.Environ.Get),
				Logger:   logger,
				Timeout:  timeout,
			})
			collector := statuscollector.New(statuscollector.Options{
				Agents: runs,
				Usage:  agg,
				Logger: logger,
			})
			panels, err := collector.Panels(ctx)
			if err != nil {
				return err
			}
			if len(panels) == 0 && out.format == formatTable {
				_, err := fmt.Fprintln(inv.Stdout, "No providers are enabled. See 'dashboard providers set --help'.")
				return err
			}
			return out.write(inv.Stdout, panels, func() table.Writer { return panelTable(panels) })
		},
	}
}
