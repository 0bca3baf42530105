package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nerdrelay_http_requests_total",
			Help: "Total number of HTTP requests handled by the relay",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nerdrelay_http_request_latency_seconds",
			Help:    "Latency of HTTP requests handled by the relay",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nerdrelay_upstream_requests_total",
			Help: "Upstream GraphQL calls by endpoint, operation type and outcome",
		},
		[]string{"endpoint", "operation", "outcome"},
	)
	upstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nerdrelay_upstream_latency_seconds",
			Help: "Latency of upstream GraphQL calls",
			// the upstream timeout is 60s by default
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)
	rejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nerdrelay_rejected_requests_total",
			Help: "Requests refused before any upstream call",
		},
		[]string{"endpoint", "reason"},
	)
)
