// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LoanTransitions counts loan state changes by resulting action.
var LoanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "lending",
	Name:      "loan_transitions_total",
	Help:      "Total loan state transitions by action (requested, granted, approved, rejected, returned, extended, deleted).",
}, []string{"action"})

// LoanConflicts counts operations refused because a precondition failed.
var LoanConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "lending",
	Name:      "conflicts_total",
	Help:      "Total lending operations refused with a conflict, by operation.",
}, []string{"operation"})

// FinesAccrued counts fines created or reset on late return.
var FinesAccrued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "lending",
	Name:      "fines_accrued_total",
	Help:      "Total fines created or updated by late returns.",
})

// FineAmountAccrued sums the amounts of accrued fines, in the smallest currency unit.
var FineAmountAccrued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "lending",
	Name:      "fine_amount_accrued_total",
	Help:      "Sum of fine amounts accrued by late returns, in the smallest currency unit.",
})

// FinesPaid counts paid fines.
var FinesPaid = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "lending",
	Name:      "fines_paid_total",
	Help:      "Total fines marked as paid.",
})

// HTTPRequests counts API requests by method and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "knjiznica",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method and status code.",
}, []string{"method", "code"})

// HTTPDuration observes API request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "knjiznica",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method"})
