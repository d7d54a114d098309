package usage

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	builds   *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "usage",
			Name:      "panel_builds_total",
			Help:      "Usage panels built, by provider and resulting panel state.",
		}, []string{"provider", "state"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "usage",
			Name:      "upstream_seconds",
			Help:      "Latency of provider upstream calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 10},
		}, []string{"provider"}),
	}
	if reg != nil {
		reg.MustRegister(m.builds, m.upstream)
	}
	return m
}
