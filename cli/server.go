package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/coder/serpent"

	"github.com/openclaw/dashboard/buildinfo"
	"github.com/openclaw/dashboard/dashd"
	"github.com/openclaw/dashboard/dashd/reminders"
	"github.com/openclaw/dashboard/dashd/resultcache"
	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/sysprobe"
	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashd/usage"
)

const defaultAddress = "0.0.0.0:18790"

type serverFlags struct {
	configPath         string
	address            string
	corsOrigins        []string
	diskPath           string
	gatewayPattern     string
	usageTTL           time.Duration
	statusTTL          time.Duration
	tasksTTL           time.Duration
	upstreamTimeout    time.Duration
	syncInterval       time.Duration
	statusPushInterval time.Duration
	validateRateLimit  int64
	reminders          reminderFlags
}

func (f *serverFlags) options() serpent.OptionSet {
	opts := serpent.OptionSet{
		{
			Name:          "Config Path",
			Flag:          "config",
			FlagShorthand: "c",
			Env:           envPrefix + "CONFIG_PATH",
			Description:   "YAML file with option values keyed by their YAML names. Flags and environment variables take precedence.",
			Value:         serpent.StringOf(&f.configPath),
		},
		{
			Name:          "Address",
			Flag:          "address",
			FlagShorthand: "a",
			Env:           envPrefix + "ADDRESS",
			YAML:          "address",
			Description:   "Address to serve the API on.",
			Default:       defaultAddress,
			Value:         serpent.StringOf(&f.address),
		},
		{
			Name:        "CORS Origins",
			Flag:        "cors-origins",
			Env:         envPrefix + "CORS_ORIGINS",
			YAML:        "cors_origins",
			Description: "Origins allowed to call the API from a browser. Defaults to any origin.",
			Value:       serpent.StringArrayOf(&f.corsOrigins),
		},
		{
			Name:        "Disk Path",
			Flag:        "disk-path",
			Env:         envPrefix + "DISK_PATH",
			YAML:        "disk_path",
			Description: "Mount point whose usage is reported.",
			Default:     "/",
			Value:       serpent.StringOf(&f.diskPath),
		},
		{
			Name:        "Gateway Pattern",
			Flag:        "gateway-pattern",
			Env:         envPrefix + "GATEWAY_PATTERN",
			YAML:        "gateway_pattern",
			Description: "Substring of the gateway process command line.",
			Default:     sysprobe.DefaultGatewayPattern,
			Value:       serpent.StringOf(&f.gatewayPattern),
		},
		{
			Name:        "Usage Cache TTL",
			Flag:        "usage-cache-ttl",
			Env:         envPrefix + "USAGE_CACHE_TTL",
			YAML:        "usage_cache_ttl",
			Description: "How long usage panels are reused before providers are queried again.",
			Default:     usage.DefaultTTL.String(),
			Value:       serpent.DurationOf(&f.usageTTL),
		},
		{
			Name:        "Status Cache TTL",
			Flag:        "status-cache-ttl",
			Env:         envPrefix + "STATUS_CACHE_TTL",
			YAML:        "status_cache_ttl",
			Description: "How long the aggregated status view is reused.",
			Default:     statuscollector.DefaultStatusTTL.String(),
			Value:       serpent.DurationOf(&f.statusTTL),
		},
		{
			Name:        "Tasks Cache TTL",
			Flag:        "tasks-cache-ttl",
			Env:         envPrefix + "TASKS_CACHE_TTL",
			YAML:        "tasks_cache_ttl",
			Description: "How long task lists are reused. Writes through the API clear them immediately.",
			Default:     statuscollector.DefaultTasksTTL.String(),
			Value:       serpent.DurationOf(&f.tasksTTL),
		},
		{
			Name:        "Upstream Timeout",
			Flag:        "upstream-timeout",
			Env:         envPrefix + "UPSTREAM_TIMEOUT",
			YAML:        "upstream_timeout",
			Description: "Time limit for each provider call.",
			Default:     usage.DefaultTimeout.String(),
			Value:       serpent.DurationOf(&f.upstreamTimeout),
		},
		{
			Name:        "Sync Interval",
			Flag:        "sync-interval",
			Env:         envPrefix + "SYNC_INTERVAL",
			YAML:        "sync_interval",
			Description: "How often reminders are pulled into the task list. 0 disables the pull.",
			Default:     "5m",
			Value:       serpent.DurationOf(&f.syncInterval),
		},
		{
			Name:        "Status Push Interval",
			Flag:        "status-push-interval",
			Env:         envPrefix + "STATUS_PUSH_INTERVAL",
			YAML:        "status_push_interval",
			Description: "How often websocket clients receive a status update.",
			Default:     dashd.DefaultStatusPushInterval.String(),
			Value:       serpent.DurationOf(&f.statusPushInterval),
		},
		{
			Name:        "Validate Rate Limit",
			Flag:        "validate-rate-limit",
			Env:         envPrefix + "VALIDATE_RATE_LIMIT",
			YAML:        "validate_rate_limit",
			Description: "Provider draft validations allowed per client per minute.",
			Default:     fmt.Sprint(dashd.DefaultValidateRateLimit),
			Value:       serpent.Int64Of(&f.validateRateLimit),
		},
	}
	return append(opts, f.reminders.options()...)
}

func (r *RootCmd) server() *serpent.Command {
	var flags serverFlags
	opts := flags.options()

	return &serpent.Command{
		Use:        "server",
		Short:      "Run the dashboard API, the reminders sync and the status push",
		Middleware: serpent.RequireNArgs(0),
		Options:    opts,
		Handler: func(inv *serpent.Invocation) error {
			if flags.configPath != "" {
				all := append(r.globalOptions(), opts...)
				if err := applyConfigFile(inv, flags.configPath, all); err != nil {
					return err
				}
			}

			logger, closeLog, err := r.logger(inv)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(inv.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := os.MkdirAll(r.dataDir, 0o700); err != nil {
				return xerrors.Errorf("create data directory: %w", err)
			}
			return r.runServer(ctx, inv, logger, &flags)
		},
	}
}

func (r *RootCmd) runServer(ctx context.Context, inv *serpent.Invocation, logger slog.Logger, flags *serverFlags) error {
	clock := quartz.NewReal()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cache := resultcache.New(resultcache.WithClock(clock), resultcache.WithRegisterer(reg))
	tasks := taskstore.New(taskstore.Options{
		Path:          r.tasksPath(),
		ChecklistPath: r.checklistPath(),
		Clock:         clock,
		Logger:        logger,
	})
	settings := r.settingsStore(logger)
	agg := usage.New(usage.Options{
		Config:     settings,
		Cache:      cache,
		Fallback:   usage.MiniMaxEnvFallback(inv.Environ.Get),
		Clock:      clock,
		Logger:     logger,
		Registerer: reg,
		Timeout:    flags.upstreamTimeout,
		TTL:        flags.usageTTL,
	})
	collector := statuscollector.New(statuscollector.Options{
		System: sysprobe.New(sysprobe.Options{
			DiskPath:       flags.diskPath,
			GatewayPattern: flags.gatewayPattern,
			Logger:         logger,
		}),
		Agents:    &statuscollector.RunsFile{FS: afero.NewOsFs(), Path: r.runsPath()},
		Tasks:     tasks,
		Usage:     agg,
		Cache:     cache,
		Clock:     clock,
		Logger:    logger,
		StatusTTL: flags.statusTTL,
		TasksTTL:  flags.tasksTTL,
	})

	origins := flags.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	api := dashd.New(&dashd.Options{
		Logger:             logger,
		Clock:              clock,
		Tasks:              tasks,
		Integrations:       settings,
		Usage:              agg,
		Status:             collector,
		PrometheusRegistry: reg,
		APIToken:           r.token,
		CORSAllowedOrigins: origins,
		StatusPushInterval: flags.statusPushInterval,
		ValidateRateLimit:  int(flags.validateRateLimit),
	})

	listener, err := net.Listen("tcp", flags.address)
	if err != nil {
		return xerrors.Errorf("listen on %q: %w", flags.address, err)
	}
	defer listener.Close()

	shutdownConnsCtx, shutdownConns := context.WithCancel(ctx)
	defer shutdownConns()
	server := &http.Server{
		// These errors are typically noise like broken pipes from clients
		// that went away.
		ErrorLog:          log.New(io.Discard, "", 0),
		Handler:           api.RootHandler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return shutdownConnsCtx
		},
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := server.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if flags.syncInterval > 0 {
		syncer := reminders.NewSyncer(reminders.SyncerOptions{
			Source:     flags.reminders.remindctl(),
			Store:      tasks,
			Interval:   flags.syncInterval,
			Clock:      clock,
			Logger:     logger,
			OnSynced:   collector.InvalidateTasks,
			Registerer: reg,
		})
		eg.Go(func() error {
			return syncer.Run(egCtx)
		})
	} else {
		logger.Info(ctx, "reminders sync disabled")
	}
	eg.Go(func() error {
		<-egCtx.Done()
		_ = api.Close()
		return shutdownWithTimeout(server, 5*time.Second)
	})

	logger.Info(ctx, "started dashboard",
		slog.F("version", buildinfo.Version()),
		slog.F("address", listener.Addr().String()),
		slog.F("data_dir", r.dataDir),
	)
	_, _ = fmt.Fprintf(inv.Stdout, "Started dashboard on http://%s\n", listener.Addr())

	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info(context.Background(), "dashboard stopped")
	return nil
}

func shutdownWithTimeout(s interface{ Shutdown(context.Context) error }, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
