// Package metrics holds the Prometheus collectors of the annotator.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	Edits           *prometheus.CounterVec
	UndoDepth       prometheus.Gauge
	Saves           *prometheus.CounterVec
}

// New creates a collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	backendRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)
	backendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	edits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_total",
			Help:      "Committed shape edits by tool",
		},
		[]string{"tool"},
	)
	undoDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "undo_depth",
			Help:      "Items in the undo stash",
		},
	)
	saves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save attempts by outcome",
		},
		[]string{"status"},
	)

	registry.MustRegister(backendRequests, backendDuration, edits, undoDepth, saves)

	return &Collector{
		registry:        registry,
		BackendRequests: backendRequests,
		BackendDuration: backendDuration,
		Edits:           edits,
		UndoDepth:       undoDepth,
		Saves:           saves,
	}
}

// ObserveBackend records one backend request.
func (c *Collector) ObserveBackend(endpoint string, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.BackendRequests.WithLabelValues(endpoint, status).Inc()
	c.BackendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// Edit counts one committed edit made with tool.
func (c *Collector) Edit(tool string) {
	if c == nil {
		return
	}
	if tool == "" {
		tool = "none"
	}
	c.Edits.WithLabelValues(tool).Inc()
}

// SetUndoDepth reports the undo stash size.
func (c *Collector) SetUndoDepth(n int) {
	if c == nil {
		return
	}
	c.UndoDepth.Set(float64(n))
}

// Save counts a save attempt.
func (c *Collector) Save(status string) {
	if c == nil {
		return
	}
	c.Saves.WithLabelValues(status).Inc()
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
