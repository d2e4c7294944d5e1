package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics
type Metrics struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
	requests    *prometheus.CounterVec
}

// NewMetrics registers the API collectors on reg. A nil reg gets a fresh
// registry carrying the Go and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lanzoufetch_resolutions_total",
				Help: "Share link resolutions by outcome and failure reason.",
			},
			[]string{"outcome", "reason"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lanzoufetch_resolution_duration_seconds",
				Help:    "Time spent resolving a share link across all mirrors.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
			},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lanzoufetch_http_requests_total",
				Help: "HTTP API requests by method, route and status code.",
			},
			[]string{"method", "route", "status_code"},
		),
	}

	reg.MustRegister(m.resolutions, m.duration, m.requests)
	return m
}

// ObserveResolution records one resolution outcome
func (m *Metrics) ObserveResolution(success bool, reason string, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	if reason == "" {
		reason = "none"
	}
	m.resolutions.WithLabelValues(outcome, reason).Inc()
	m.duration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
