package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Courtside backend.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Permission metrics.
	CapabilityChecksTotal *prometheus.CounterVec
	ContextSwitchesTotal  *prometheus.CounterVec

	// Login throttling.
	LoginRejectionsTotal prometheus.Counter

	// Background sweep metrics.
	SweepRunsTotal    *prometheus.CounterVec
	SweepRowsAffected *prometheus.CounterVec
	SweepDuration     *prometheus.HistogramVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courtside_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courtside_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		CapabilityChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_capability_checks_total",
			Help: "Total number of capability checks by outcome.",
		}, []string{"capability", "outcome"}),

		ContextSwitchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_context_switches_total",
			Help: "Total number of role context switch attempts by outcome.",
		}, []string{"outcome"}),

		LoginRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtside_login_rejections_total",
			Help: "Total number of logins rejected by the rate limiter.",
		}),

		SweepRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_sweep_runs_total",
			Help: "Total number of background sweep runs.",
		}, []string{"sweep", "status"}),

		SweepRowsAffected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_sweep_rows_affected_total",
			Help: "Total number of rows touched by background sweeps.",
		}, []string{"sweep"}),

		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courtside_sweep_duration_seconds",
			Help:    "Duration of background sweep runs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"sweep"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.CapabilityChecksTotal,
		m.ContextSwitchesTotal,
		m.LoginRejectionsTotal,
		m.SweepRunsTotal,
		m.SweepRowsAffected,
		m.SweepDuration,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, pathPattern string, statusCode int, seconds float64, responseBytes int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, fmt.Sprintf("%d", statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(seconds)
	m.HTTPResponseSize.WithLabelValues(method, pathPattern).Observe(float64(responseBytes))
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// IncCapabilityCheck records one capability check outcome ("allowed" or
// "denied").
func (m *Metrics) IncCapabilityCheck(capability, outcome string) {
	m.CapabilityChecksTotal.WithLabelValues(capability, outcome).Inc()
}

// IncContextSwitch records one context switch attempt outcome.
func (m *Metrics) IncContextSwitch(outcome string) {
	m.ContextSwitchesTotal.WithLabelValues(outcome).Inc()
}

// IncLoginRejection increments the login rate limiter rejection counter.
func (m *Metrics) IncLoginRejection() {
	m.LoginRejectionsTotal.Inc()
}

// ObserveSweep records one background sweep run.
func (m *Metrics) ObserveSweep(sweep string, rows int64, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SweepRunsTotal.WithLabelValues(sweep, status).Inc()
	m.SweepRowsAffected.WithLabelValues(sweep).Add(float64(rows))
	m.SweepDuration.WithLabelValues(sweep).Observe(seconds)
}
