// Package metrics exposes Prometheus counters for bulk download sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bulk_downloader"

// Metrics holds the session metrics, registered on their own registry. All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	PostsTotal      *prometheus.CounterVec
	PostsInProgress prometheus.Gauge
	ResourcesTotal  *prometheus.CounterVec
	BytesDownloaded prometheus.Counter
	ResolveDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		PostsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "posts",
			Name:      "total",
			Help:      "Posts processed, by final status",
		}, []string{"status"}),
		PostsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "posts",
			Name:      "in_progress",
			Help:      "Posts currently being processed",
		}),
		ResourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resources",
			Name:      "total",
			Help:      "Resources handled, by provider and outcome",
		}, []string{"provider", "outcome"}),
		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resources",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes of resource content downloaded",
		}),
		ResolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "duration_seconds",
			Help:      "Time taken to find the resources of a post",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// Handler serves the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordPostStarted() {
	if m == nil {
		return
	}
	m.PostsInProgress.Inc()
}

func (m *Metrics) RecordPostFinished(status string) {
	if m == nil {
		return
	}
	m.PostsInProgress.Dec()
	m.PostsTotal.WithLabelValues(status).Inc()
}

// RecordPostSkipped counts a post that never started.
func (m *Metrics) RecordPostSkipped(status string) {
	if m == nil {
		return
	}
	m.PostsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordResource(provider string, outcome string, bytes int) {
	if m == nil {
		return
	}
	m.ResourcesTotal.WithLabelValues(provider, outcome).Inc()
	if bytes > 0 {
		m.BytesDownloaded.Add(float64(bytes))
	}
}

// ResolveTimer returns a function to record how long resolving took.
func (m *Metrics) ResolveTimer(provider string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.ResolveDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
}
