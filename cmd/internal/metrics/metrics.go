// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes recorded on the logins counter.
const (
	LoginResultSuccess    = "success"
	LoginResultBadInput   = "bad_input"
	LoginResultRejected   = "rejected"
	LoginResultUnverified = "unverified"
	LoginResultInactive   = "inactive"
	LoginResultError      = "error"
)

// Metrics holds every collector the service registers. One instance is
// built at startup and shared by the HTTP layer and the auth service.
type Metrics struct {
	registry *prometheus.Registry

	Logins       *prometheus.CounterVec
	TokensIssued *prometheus.CounterVec
	CodesIssued  *prometheus.CounterVec
	EventsFailed *prometheus.CounterVec

	httpDuration *prometheus.HistogramVec
}

// New builds and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"result"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "tokens_issued_total",
			Help:      "Session and refresh tokens issued, by kind.",
		}, []string{"kind"}),
		CodesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "codes_issued_total",
			Help:      "Verification and password-reset codes issued, by purpose.",
		}, []string{"purpose"}),
		EventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "userservice",
			Name:      "events_publish_failures_total",
			Help:      "Lifecycle events that failed to publish, by topic.",
		}, []string{"topic"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "userservice",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.Logins,
		m.TokensIssued,
		m.CodesIssued,
		m.EventsFailed,
		m.httpDuration,
	)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, statusClass string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, statusClass).Observe(elapsed.Seconds())
}

// Handler serves the scrape endpoint for the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
