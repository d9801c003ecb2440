package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service records. It is constructed once
// at startup and passed to the components that need it.
type Metrics struct {
	CacheRequests        *prometheus.CounterVec
	RemoteAttempts       *prometheus.CounterVec
	BreakerTransitions   *prometheus.CounterVec
	BreakerState         *prometheus.GaugeVec
	OperationDuration    *prometheus.HistogramVec
	WebhookDuration      *prometheus.HistogramVec
	WebhooksTotal        *prometheus.CounterVec
	DownstreamSyncFailed *prometheus.CounterVec
	JobsTotal            *prometheus.CounterVec
	ErrorsReported       *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsTotal    *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by resource and result (hit, miss, error)",
		}, []string{"resource", "result"}),

		RemoteAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shopify_graphql_attempts_total",
			Help: "GraphQL attempts against the storefront platform",
		}, []string{"outcome"}),

		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"breaker", "to"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"breaker"}),

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Latency of instrumented service operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		WebhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webhook_processing_time_seconds",
			Help:    "Wall-clock time from receipt to terminal state per webhook event",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic", "outcome"}),

		WebhooksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webhooks_total",
			Help: "Webhook events by topic and outcome",
		}, []string{"topic", "outcome"}),

		DownstreamSyncFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "downstream_sync_failed_total",
			Help: "Best-effort content store sync failures",
		}, []string{"operation"}),

		JobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_total",
			Help: "Queue jobs by name and outcome",
		}, []string{"job", "outcome"}),

		ErrorsReported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_reported_total",
			Help: "Errors sent to the error-tracking sink",
		}, []string{"source"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

// NewTestMetrics returns metrics bound to a private registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
