package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "checks_total",
		Help:      "Total number of face checks by backend classification",
	}, []string{"type"})

	MismatchRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "mismatch_recoveries_total",
		Help:      "Checks classified existing with no match above the floor, by recovery outcome",
	}, []string{"outcome"})

	AugmentationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "augmentation_failures_total",
		Help:      "Identity store lookups that failed during match reconciliation",
	})

	EnrollmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "enrollments_total",
		Help:      "Total number of enrollments by result",
	}, []string{"result"})

	OrphanedEnrollments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "orphaned_enrollments_total",
		Help:      "Backend enrollments confirmed without a local identity record",
	})

	BackendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of recognition backend requests",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"op", "outcome"})

	EventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "events_persisted_total",
		Help:      "Face lifecycle events written to the audit table",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
