package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Agent metrics
	AgentRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_runs_total",
			Help: "Agent invocations by kind, mode (query|stream|job) and outcome",
		},
		[]string{"agent", "mode", "outcome"},
	)

	AgentRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_run_duration_seconds",
			Help:    "Wall time of an agent turn, history load to persistence",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"agent", "mode"},
	)

	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_stream_events_total",
			Help: "Stream events emitted, by event type",
		},
		[]string{"event"},
	)

	// Infrastructure metrics
	PersistLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_persist_latency_seconds",
			Help:    "Latency of the message batch transaction",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		},
	)

	ThreadLockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_thread_lock_contention_total",
			Help: "Turns rejected because the thread was busy",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_rate_limit_hits_total",
			Help: "Requests rejected by the per-user limiter",
		},
		[]string{"route"},
	)
)
