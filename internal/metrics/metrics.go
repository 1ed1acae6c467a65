// Package metrics provides Prometheus instrumentation for the
// community server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Sessions
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter
	SessionsExpiredTotal prometheus.Counter
	SweepLastRunTime     prometheus.Gauge
	SweptSessionsTotal   prometheus.Counter

	// Moderation
	ModerationActionsTotal *prometheus.CounterVec

	// Content
	LikeTogglesTotal prometheus.Counter
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "community_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "community_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "community_sessions_active",
			Help: "Number of sessions currently stored (including not yet swept expired ones).",
		}),

		SessionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_sessions_created_total",
			Help: "Total number of sessions created.",
		}),

		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_sessions_expired_total",
			Help: "Total number of sessions found expired on access.",
		}),

		SweepLastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "community_session_sweep_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last expired-session sweep.",
		}),

		SweptSessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_session_swept_total",
			Help: "Total number of expired sessions removed by the sweeper.",
		}),

		ModerationActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "community_moderation_actions_total",
			Help: "Total number of moderation actions by type.",
		}, []string{"action"}),

		LikeTogglesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_like_toggles_total",
			Help: "Total number of news like toggles.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SessionsActive,
		m.SessionsCreatedTotal,
		m.SessionsExpiredTotal,
		m.SweepLastRunTime,
		m.SweptSessionsTotal,
		m.ModerationActionsTotal,
		m.LikeTogglesTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}
