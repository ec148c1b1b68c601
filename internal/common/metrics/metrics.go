// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeStale   = "stale"
	OutcomeBlocked = "blocked"
)

var (
	AutosaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_autosave_total",
			Help: "Background draft saves by outcome",
		},
		[]string{"outcome"},
	)

	SubmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submit_total",
			Help: "Final submissions by outcome",
		},
		[]string{"outcome"},
	)

	SubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_submit_duration_seconds",
			Help:    "Duration of the blocking final submit",
			Buckets: prometheus.DefBuckets,
		},
	)

	HydrateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_hydrate_total",
			Help: "Session hydrations by source (draft, baseline, invalid_token)",
		},
		[]string{"source"},
	)

	ConditionPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_condition_panics_total",
			Help: "Step conditions that panicked during evaluation",
		},
		[]string{"flow"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_store_operations_total",
			Help: "Draft store operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "intake_store_operation_duration_seconds",
			Help: "Duration of draft store operations in seconds",
		},
		[]string{"backend", "operation"},
	)

	NavigationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_navigation_total",
			Help: "Engine navigation requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	HooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_submission_hooks_total",
			Help: "Post-submit hook executions",
		},
		[]string{"hook", "outcome"},
	)
)
