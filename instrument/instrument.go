// Package instrument exports client metrics to prometheus.
package instrument

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	routeSelections *prometheus.CounterVec
	routeFailures   *prometheus.CounterVec
	requestsCreated prometheus.Counter
	requestFailures *prometheus.CounterVec
	segmentsEmitted prometheus.Counter
	infoApplied     prometheus.Counter
	prepareDuration prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		routeSelections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phttp_route_selections_total",
				Help: "Number of selected routes by selection reason",
			},
			[]string{"via"},
		),
		routeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phttp_route_selection_failures_total",
				Help: "Number of failed route selections by error",
			},
			[]string{"reason"},
		),
		requestsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phttp_requests_created_total",
				Help: "Number of boxed requests",
			},
		),
		requestFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phttp_request_failures_total",
				Help: "Number of requests that could not be prepared by stage",
			},
			[]string{"stage"},
		),
		segmentsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phttp_segments_emitted_total",
				Help: "Number of segments handed to the relay network",
			},
		),
		infoApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "phttp_info_applied_total",
				Help: "Number of exit info advertisements applied to the pool",
			},
		),
		prepareDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phttp_prepare_duration_seconds",
				Help:    "Time spent selecting, boxing and segmenting a request",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.routeSelections,
		m.routeFailures,
		m.requestsCreated,
		m.requestFailures,
		m.segmentsEmitted,
		m.infoApplied,
		m.prepareDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RouteSelected counts a selected route.
func (m *Metrics) RouteSelected(via string) {
	if m == nil {
		return
	}
	m.routeSelections.WithLabelValues(via).Inc()
}

// RouteFailed counts a failed selection.
func (m *Metrics) RouteFailed(reason string) {
	if m == nil {
		return
	}
	m.routeFailures.WithLabelValues(reason).Inc()
}

// RequestCreated counts a boxed request.
func (m *Metrics) RequestCreated() {
	if m == nil {
		return
	}
	m.requestsCreated.Inc()
}

// RequestFailed counts a request that failed at stage.
func (m *Metrics) RequestFailed(stage string) {
	if m == nil {
		return
	}
	m.requestFailures.WithLabelValues(stage).Inc()
}

// SegmentsEmitted adds n emitted segments.
func (m *Metrics) SegmentsEmitted(n int) {
	if m == nil {
		return
	}
	m.segmentsEmitted.Add(float64(n))
}

// InfoApplied counts an applied info advertisement.
func (m *Metrics) InfoApplied() {
	if m == nil {
		return
	}
	m.infoApplied.Inc()
}

// PrepareDuration observes the time a request took to prepare.
func (m *Metrics) PrepareDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.prepareDuration.Observe(d.Seconds())
}
