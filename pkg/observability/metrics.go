// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring mcplab.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UpstreamBuckets covers tool server round trips from 10ms to 60s.
var UpstreamBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// RequestsTotal counts HTTP requests by method, route pattern and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcplab_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ConnectsTotal counts connect attempts by outcome.
	ConnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_connects_total",
			Help: "Tool server connect attempts",
		},
		[]string{"transport", "outcome"},
	)

	// ToolCallsTotal counts tool invocations by outcome.
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_tool_calls_total",
			Help: "Tool invocations",
		},
		[]string{"transport", "outcome"},
	)

	// UpstreamLatency records the duration of complete tool server sessions.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcplab_upstream_latency_seconds",
			Help:    "Tool server session latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"operation"},
	)

	// OAuthFlowsTotal counts authorization flow stages by outcome.
	OAuthFlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_oauth_flows_total",
			Help: "Authorization flow stages",
		},
		[]string{"stage", "outcome"},
	)

	// DiscoveryAttemptsTotal counts metadata probes by document kind.
	DiscoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_oauth_discovery_attempts_total",
			Help: "Authorization server metadata probes",
		},
		[]string{"kind", "outcome"},
	)

	// RegistrationsTotal counts dynamic client registrations.
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_oauth_client_registrations_total",
			Help: "Dynamic client registrations",
		},
		[]string{"outcome"},
	)

	// StoredTokenSkipsTotal counts stored tokens that were not injected.
	StoredTokenSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcplab_stored_token_skips_total",
			Help: "Stored access tokens not used for a request",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		ConnectsTotal,
		ToolCallsTotal,
		UpstreamLatency,
		OAuthFlowsTotal,
		DiscoveryAttemptsTotal,
		RegistrationsTotal,
		StoredTokenSkipsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
