package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts notifications committed to the store by type and priority.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_notifications_created_total",
			Help: "Total number of notifications created",
		},
		[]string{"type", "priority"},
	)

	// RuleEvaluations counts alert rule evaluations and their outcome (fired|skipped|idle).
	RuleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_rule_evaluations_total",
			Help: "Total number of alert rule evaluations",
		},
		[]string{"result"},
	)

	// ChannelDispatches counts external channel deliveries by channel and result (ok|error).
	ChannelDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulseboard_channel_dispatch_total",
			Help: "Total number of channel adapter dispatches",
		},
		[]string{"channel", "result"},
	)

	// DigestDeferred counts candidates deferred to a digest window instead of realtime dispatch.
	DigestDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulseboard_digest_deferred_total",
			Help: "Total number of notifications deferred to digest delivery",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulseboard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
