package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// reconciliations counts finished reconciliations by intent and outcome.
	// Duplicate deliveries are counted under outcome="duplicate".
	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliations_total",
			Help: "Payment events reconciled, by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)

	// reconcileLat records end-to-end Reconcile latency by intent.
	reconcileLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciliation_duration_seconds",
			Help:    "Duration of payment reconciliation in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"intent"},
	)
)

func init() {
	prometheus.MustRegister(reconciliations, reconcileLat)
}
