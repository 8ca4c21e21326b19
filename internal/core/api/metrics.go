package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts requests by method and gRPC status code.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framekeeper",
		Name:      "requests_total",
		Help:      "Total validation service requests",
	}, []string{"method", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "framekeeper",
		Name:      "request_duration_seconds",
		Help:      "Validation service request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method"})

	// rowsTotal counts rows by schema and outcome (valid, failed, sampled).
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framekeeper",
		Name:      "rows_total",
		Help:      "Total rows filtered or sampled",
	}, []string{"schema", "outcome"})

	ruleFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framekeeper",
		Name:      "rule_failures_total",
		Help:      "Total rule failures by schema and rule",
	}, []string{"schema", "rule"})
)
