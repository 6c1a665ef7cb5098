package benchmarks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "benchcom_submissions_total",
		Help: "Accepted benchmark submissions by caller identity",
	}, []string{"identity"})

	SubmissionResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "benchcom_submission_results_total",
		Help: "Benchmark results stored across all submissions",
	})

	SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "benchcom_submissions_rejected_total",
		Help: "Rejected benchmark submissions by reason",
	}, []string{"reason"})

	DeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "benchcom_deletions_total",
		Help: "Benchmark runs deleted",
	})
)
