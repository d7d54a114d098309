package httpmw

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coder/quartz"
)

// Prometheus records request counts and latencies labeled by the matched
// chi route pattern. It must run inside StatusWriterMiddleware.
func Prometheus(reg prometheus.Registerer, clock quartz.Clock) func(http.Handler) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "api",
		Name:      "requests_processed_total",
		Help:      "The total number of processed API requests",
	}, []string{"code", "method", "path"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Subsystem: "api",
		Name:      "request_latencies_seconds",
		Help:      "Latency distribution of requests in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"method", "path"})
	reg.MustRegister(requests, latency)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := clock.Now()
			sw, ok := rw.(*StatusWriter)
			if !ok {
				panic("ResponseWriter not a *httpmw.StatusWriter")
			}

			next.ServeHTTP(sw, r)

			path := "UNKNOWN"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			requests.WithLabelValues(strconv.Itoa(sw.Status), r.Method, path).Inc()
			latency.WithLabelValues(r.Method, path).Observe(clock.Since(start).Seconds())
		})
	}
}
