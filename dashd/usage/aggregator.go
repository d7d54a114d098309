// Package usage builds per-provider usage panels. Each enabled provider
// gets exactly one panel; missing configuration and upstream failures
// degrade that provider's panel instead of failing the whole list.
package usage

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashd/resultcache"
	"github.com/openclaw/dashboard/dashsdk"
)

// PanelsCacheKey is the result cache key holding the panel list.
const PanelsCacheKey = "usage_panels"

const (
	DefaultTimeout = 6 * time.Second
	DefaultTTL     = 15 * time.Second
)

// ConfigSource is the subset of integrations.Store the aggregator reads.
type ConfigSource interface {
	Load(ctx context.Context) (integrations.Document, error)
	Draft(ctx context.Context, id dashsdk.ProviderID, patch map[string]any) (integrations.Config, error)
}

type Options struct {
	Config ConfigSource
	// Cache is shared with other dashboard views. Nil creates a private one.
	Cache      *resultcache.Cache
	Registry   *Registry
	HTTPClient *http.Client
	Fallback   Fallback
	Clock      quartz.Clock
	Logger     slog.Logger
	Registerer prometheus.Registerer
	// Timeout bounds each upstream call.
	Timeout time.Duration
	TTL     time.Duration
}

type Aggregator struct {
	config   ConfigSource
	cache    *resultcache.Cache
	registry *Registry
	client   *http.Client
	fallback Fallback
	clock    quartz.Clock
	log      slog.Logger
	metrics  *metrics
	timeout  time.Duration
	ttl      time.Duration
}

func New(opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Cache == nil {
		opts.Cache = resultcache.New(resultcache.WithClock(opts.Clock))
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Fallback == nil {
		opts.Fallback = func(_ dashsdk.ProviderID, cfg integrations.Config) integrations.Config { return cfg }
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Aggregator{
		config:   opts.Config,
		cache:    opts.Cache,
		registry: opts.Registry,
		client:   opts.HTTPClient,
		fallback: opts.Fallback,
		clock:    opts.Clock,
		log:      opts.Logger.Named("usage"),
		metrics:  newMetrics(opts.Registerer),
		timeout:  opts.Timeout,
		ttl:      opts.TTL,
	}
}

// Panels returns one panel per enabled provider in schema order. The list
// is cached for the TTL without run counters; stats are applied to a copy
// on every call.
func (a *Aggregator) Panels(ctx context.Context, stats RunStats) ([]dashsdk.UsagePanel, error) {
	cached, err := resultcache.GetOrCompute(a.cache, PanelsCacheKey, a.ttl, func() ([]dashsdk.UsagePanel, error) {
		return a.build(ctx)
	})
	if err != nil {
		return nil, err
	}
	panels := make([]dashsdk.UsagePanel, len(cached))
	for i, p := range cached {
		panels[i] = withStats(p, stats)
	}
	return panels, nil
}

// Invalidate drops the cached panel list so the next poll rebuilds it.
func (a *Aggregator) Invalidate() {
	a.cache.Invalidate(PanelsCacheKey)
}

func (a *Aggregator) build(ctx context.Context) ([]dashsdk.UsagePanel, error) {
	doc, err := a.config.Load(ctx)
	if err != nil {
		return nil, xerrors.Errorf("load provider settings: %w", err)
	}

	var reqs []Request
	now := a.clock.Now()
	for _, schema := range integrations.Schemas {
		cfg := a.fallback(schema.ID, doc.Provider(schema.ID))
		if !cfg.Enabled() {
			continue
		}
		reqs = append(reqs, Request{
			Schema: schema,
			Config: cfg,
			Client: a.client,
			Now:    now,
		})
	}

	// A failed build still yields a degraded panel, so errors are only
	// logged.
	panels := make([]dashsdk.UsagePanel, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Go(func() {
			panel, err := a.buildOne(ctx, req)
			if err != nil {
				a.log.Debug(ctx, "degraded usage panel",
					slog.F("provider", req.Schema.ID),
					slog.F("state", panel.PanelState),
					slog.F("reason", SafeMessage(err)),
				)
			}
			panels[i] = panel
		})
	}
	wg.Wait()
	return panels, nil
}

// buildOne never fails: the returned error only reports why the panel
// is degraded.
func (a *Aggregator) buildOne(ctx context.Context, req Request) (dashsdk.UsagePanel, error) {
	id := req.Schema.ID
	if missing := req.Schema.Missing(req.Config); len(missing) > 0 {
		a.metrics.builds.WithLabelValues(string(id), string(dashsdk.PanelStateEmpty)).Inc()
		return emptyPanel(req, missing), xerrors.Errorf("incomplete configuration: missing %s", missingLabels(missing))
	}

	provider, ok := a.registry.Get(id)
	if !ok {
		err := xerrors.Errorf("no panel builder for provider %q", id)
		a.metrics.builds.WithLabelValues(string(id), string(dashsdk.PanelStateError)).Inc()
		return errorPanel(req, sourceStatus, err), err
	}

	// A client going away must not leave an error panel in the shared
	// cache, so only the timeout bounds the call.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	start := a.clock.Now()
	panel, err := provider.BuildPanel(ctx, req)
	a.metrics.upstream.WithLabelValues(string(id)).Observe(a.clock.Since(start).Seconds())
	if err != nil {
		a.log.Warn(ctx, "provider upstream call failed",
			slog.F("provider", id),
			slog.F("reason", SafeMessage(err)),
		)
		panel = errorPanel(req, provider.Source(), err)
	}
	a.metrics.builds.WithLabelValues(string(id), string(panel.PanelState)).Inc()
	return panel, err
}

// ValidateDraft merges draft over the saved settings for id and makes one
// upstream call with the result. Nothing is saved and the shared cache is
// left alone. Only an unknown provider or a storage failure is returned
// as an error.
func (a *Aggregator) ValidateDraft(ctx context.Context, id dashsdk.ProviderID, draft map[string]any) (dashsdk.ValidateProviderResponse, error) {
	schema, ok := integrations.Lookup(id)
	if !ok {
		return dashsdk.ValidateProviderResponse{}, integrations.ErrUnknownProvider
	}
	cfg, err := a.config.Draft(ctx, id, draft)
	if err != nil {
		return dashsdk.ValidateProviderResponse{}, err
	}
	req := Request{
		Schema: schema,
		Config: a.fallback(id, cfg),
		Client: a.client,
		Now:    a.clock.Now(),
	}

	if missing := schema.Missing(req.Config); len(missing) > 0 {
		return dashsdk.ValidateProviderResponse{
			Success: false,
			Message: "incomplete configuration: missing " + missingLabels(missing),
		}, nil
	}
	panel, err := a.buildOne(ctx, req)
	if err != nil {
		return dashsdk.ValidateProviderResponse{
			Success: false,
			Message: SafeMessage(err),
		}, nil
	}
	return dashsdk.ValidateProviderResponse{
		Success: true,
		Message: "draft validated (not saved)",
		Panel:   &panel,
	}, nil
}
