// Package cli implements the dashboard command tree.
package cli

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/adrg/xdg"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/buildinfo"
	"github.com/openclaw/dashboard/cli/clilog"
	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashsdk"
)

const (
	envPrefix = "DASHBOARD_"

	varURL        = "url"
	varToken      = "api-token"
	varDataDir    = "data-dir"
	varOpenClaw   = "openclaw-dir"
	varLogHuman   = "log-human"
	varLogJSON    = "log-json"
	varLogFilter  = "log-filter"
	varVerbose    = "verbose"
	defaultURL    = "http://127.0.0.1:18790"
	dataDirName   = "openclaw-dashboard"
	openClawDir   = ".openclaw"
	tasksFile     = "tasks.json"
	settingsFile  = "integrations.json"
	runsFile      = "subagents/runs.json"
	checklistFile = "workspace/memory/todos.md"
)

// RootCmd holds the options shared by every subcommand.
type RootCmd struct {
	serverURL   string
	token       string
	dataDir     string
	openClawDir string

	logHuman  string
	logJSON   string
	logFilter []string
	verbose   bool
}

func (r *RootCmd) Command() *serpent.Command {
	cmd := &serpent.Command{
		Use: "dashboard",
		Long: fmt.Sprintf("OpenClaw dashboard %s: task list, provider usage and host status.\n", buildinfo.Version()) +
			formatExamples(
				example{Description: "Run the dashboard server", Command: "dashboard server"},
				example{Description: "Add a task to the local list", Command: `dashboard tasks add "Renew passport"`},
				example{Description: "Pull reminders once", Command: "dashboard sync"},
			),
		Children: []*serpent.Command{
			r.server(),
			r.sync(),
			r.tasks(),
			r.providers(),
			r.usage(),
			r.status(),
			r.version(),
		},
	}
	cmd.Options = r.globalOptions()
	return cmd
}

func (r *RootCmd) globalOptions() serpent.OptionSet {
	return serpent.OptionSet{
		{
			Name:        "URL",
			Flag:        varURL,
			Env:         envPrefix + "URL",
			Description: "URL of a running dashboard server, used by commands that talk to it.",
			Default:     defaultURL,
			Value:       serpent.StringOf(&r.serverURL),
		},
		{
			Name:        "API Token",
			Flag:        varToken,
			Env:         envPrefix + "API_TOKEN",
			YAML:        "api_token",
			Description: "Bearer token for the /api routes. The server requires it when set.",
			Value:       serpent.StringOf(&r.token),
		},
		{
			Name:        "Data Directory",
			Flag:        varDataDir,
			Env:         envPrefix + "DATA_DIR",
			YAML:        "data_dir",
			Description: "Directory holding the task list and provider settings.",
			Default:     filepath.Join(xdg.DataHome, dataDirName),
			Value:       serpent.StringOf(&r.dataDir),
		},
		{
			Name:        "OpenClaw Directory",
			Flag:        varOpenClaw,
			Env:         envPrefix + "OPENCLAW_DIR",
			YAML:        "openclaw_dir",
			Description: "OpenClaw home, read for agent runs and the legacy todo checklist.",
			Default:     filepath.Join(xdg.Home, openClawDir),
			Value:       serpent.StringOf(&r.openClawDir),
		},
		{
			Name:        "Human Log Location",
			Flag:        varLogHuman,
			Env:         envPrefix + "LOGGING_HUMAN",
			YAML:        "log_human",
			Description: "Output human-readable logs to a given file.",
			Default:     clilog.Stderr,
			Value:       serpent.StringOf(&r.logHuman),
		},
		{
			Name:        "JSON Log Location",
			Flag:        varLogJSON,
			Env:         envPrefix + "LOGGING_JSON",
			YAML:        "log_json",
			Description: "Output JSON logs to a given file.",
			Value:       serpent.StringOf(&r.logJSON),
		},
		{
			Name:        "Log Filter",
			Flag:        varLogFilter,
			Env:         envPrefix + "LOG_FILTER",
			YAML:        "log_filter",
			Description: "Filter debug logs by matching against a given regex. Use .* to match all debug logs.",
			Value:       serpent.StringArrayOf(&r.logFilter),
		},
		{
			Name:          "Verbose",
			Flag:          varVerbose,
			FlagShorthand: "v",
			Env:           envPrefix + "VERBOSE",
			YAML:          "verbose",
			Description:   "Output debug-level logs.",
			Value:         serpent.BoolOf(&r.verbose),
		},
	}
}

// logger builds the process logger from the logging options.
func (r *RootCmd) logger(inv *serpent.Invocation) (slog.Logger, func(), error) {
	logger, closeLog, err := clilog.Config{
		Human:   r.logHuman,
		JSON:    r.logJSON,
		Filter:  r.logFilter,
		Verbose: r.verbose,
	}.Build(inv.Stdout, inv.Stderr)
	if err != nil {
		return slog.Logger{}, nil, xerrors.Errorf("build logger: %w", err)
	}
	return logger, closeLog, nil
}

func (r *RootCmd) tasksPath() string {
	return filepath.Join(r.dataDir, tasksFile)
}

func (r *RootCmd) settingsPath() string {
	return filepath.Join(r.dataDir, settingsFile)
}

func (r *RootCmd) runsPath() string {
	return filepath.Join(r.openClawDir, filepath.FromSlash(runsFile))
}

func (r *RootCmd) checklistPath() string {
	return filepath.Join(r.openClawDir, filepath.FromSlash(checklistFile))
}

func (r *RootCmd) taskStore(logger slog.Logger) *taskstore.Store {
	return taskstore.New(taskstore.Options{
		Path:          r.tasksPath(),
		ChecklistPath: r.checklistPath(),
		Logger:        logger,
	})
}

func (r *RootCmd) settingsStore(logger slog.Logger) *integrations.Store {
	return integrations.NewStore(r.settingsPath(), logger)
}

// client returns an API client for the configured server URL.
func (r *RootCmd) client() (*dashsdk.Client, error) {
	u, err := url.Parse(r.serverURL)
	if err != nil {
		return nil, xerrors.Errorf("parse url %q: %w", r.serverURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, xerrors.Errorf("url %q must include a scheme and host", r.serverURL)
	}
	return dashsdk.New(u, dashsdk.WithToken(r.token)), nil
}
