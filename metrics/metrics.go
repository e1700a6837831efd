// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_store_operation_duration_seconds",
			Help:    "Document store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_store_errors_total",
			Help: "Document store operations that failed",
		},
		[]string{"operation"},
	)

	IdentityRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_identity_requests_total",
			Help: "Calls to the Users identity service by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	IdentityRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_identity_retries_total",
			Help: "Retried attempts against the Users identity service",
		},
	)

	// 0 closed, 1 half-open, 2 open.
	IdentityCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_identity_circuit_state",
			Help: "Circuit breaker state of the Users identity client",
		},
	)

	GraphMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_graph_mutations_total",
			Help: "Follow and tag operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EngagementMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_engagement_mutations_total",
			Help: "Like and comment operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	FeedPageSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "social_feed_page_size",
			Help:    "Posts returned per assembled feed page",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50, 100},
		},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_websocket_connections",
			Help: "Open realtime websocket connections",
		},
	)
)
