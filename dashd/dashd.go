// Package dashd serves the dashboard HTTP API.
package dashd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/openclaw/dashboard/buildinfo"
	"github.com/openclaw/dashboard/dashd/httpapi"
	"github.com/openclaw/dashboard/dashd/httpmw"
	"github.com/openclaw/dashboard/dashd/integrations"
	"github.com/openclaw/dashboard/dashd/statuscollector"
	"github.com/openclaw/dashboard/dashd/taskstore"
	"github.com/openclaw/dashboard/dashd/usage"
	"github.com/openclaw/dashboard/dashsdk"
)

const (
	DefaultStatusPushInterval = 5 * time.Second
	// DefaultValidateRateLimit is draft validations allowed per client
	// per minute. Each one calls a provider.
	DefaultValidateRateLimit = 20
)

type Options struct {
	Logger             slog.Logger
	Clock              quartz.Clock
	Tasks              *taskstore.Store
	Integrations       *integrations.Store
	Usage              *usage.Aggregator
	Status             *statuscollector.Collector
	PrometheusRegistry *prometheus.Registry

	// APIToken, when set, is required as a bearer token on /api.
	APIToken           string
	CORSAllowedOrigins []string
	StatusPushInterval time.Duration
	ValidateRateLimit  int
}

type API struct {
	*Options
	RootHandler chi.Router

	ctx    context.Context
	cancel context.CancelFunc

	websocketWaitMutex sync.Mutex
	websocketWaitGroup sync.WaitGroup
}

func New(options *Options) *API {
	if options.Clock == nil {
		options.Clock = quartz.NewReal()
	}
	if options.PrometheusRegistry == nil {
		options.PrometheusRegistry = prometheus.NewRegistry()
	}
	if options.StatusPushInterval <= 0 {
		options.StatusPushInterval = DefaultStatusPushInterval
	}
	if options.ValidateRateLimit <= 0 {
		options.ValidateRateLimit = DefaultValidateRateLimit
	}
	options.Logger = options.Logger.Named("api")

	ctx, cancel := context.WithCancel(context.Background())
	api := &API{
		Options: options,
		ctx:     ctx,
		cancel:  cancel,
	}

	r := chi.NewRouter()
	r.Use(
		httpmw.StatusWriterMiddleware,
		httpmw.Recover(options.Logger),
		httpmw.AttachRequestID,
		httpmw.Logger(options.Logger, options.Clock),
		httpmw.Prometheus(options.PrometheusRegistry, options.Clock),
	)
	if len(options.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: options.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{httpmw.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(options.PrometheusRegistry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(httpmw.RequireAPIToken(options.APIToken))
		r.NotFound(func(rw http.ResponseWriter, _ *http.Request) {
			httpapi.ResourceNotFound(rw)
		})
		r.Get("/buildinfo", api.buildInfo)
		r.Route("/tasks", func(r chi.Router) {
			r.Route("/todos", func(r chi.Router) {
				r.Get("/", api.todos)
				r.Post("/", api.createTask)
				r.Delete("/{task}", api.deleteTask)
				r.Post("/{task}/complete", api.completeTask)
			})
			r.Get("/completed", api.completedTasks)
			r.Post("/completed/{task}/reopen", api.reopenTask)
			r.Post("/sync", api.syncTasks)
		})
		r.Get("/usage/panels", api.usagePanels)
		r.Route("/integrations/models", func(r chi.Router) {
			r.Get("/", api.providers)
			r.Put("/", api.updateProviders)
			r.With(httprate.LimitByIP(options.ValidateRateLimit, time.Minute)).
				Post("/{provider}/validate", api.validateProvider)
		})
		r.Get("/status", api.status)
		r.Get("/ws", api.statusWebsocket)
	})

	api.RootHandler = r
	return api
}

// Close stops websocket pushes and waits for their handlers to return.
func (api *API) Close() error {
	api.cancel()
	api.websocketWaitMutex.Lock()
	api.websocketWaitGroup.Wait()
	api.websocketWaitMutex.Unlock()
	return nil
}

func (*API) buildInfo(rw http.ResponseWriter, _ *http.Request) {
	httpapi.Write(rw, http.StatusOK, localBuildInfo())
}

func localBuildInfo() dashsdk.BuildInfoResponse {
	info := dashsdk.BuildInfoResponse{
		Version:     buildinfo.Version(),
		ExternalURL: buildinfo.ExternalURL(),
		Dev:         buildinfo.IsDev(),
	}
	if t, ok := buildinfo.Time(); ok {
		info.BuildTime = &t
	}
	return info
}
