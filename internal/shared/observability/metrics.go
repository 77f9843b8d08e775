package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cruft_files_processed_total",
		Help: "Total number of source files analysed.",
	})

	WorkspacesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cruft_workspaces_total",
		Help: "Number of enabled workspaces in the current run.",
	})

	PrincipalsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cruft_principals_total",
		Help: "Number of distinct compiler-context principals.",
	})

	FixedPointRounds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cruft_fixed_point_rounds_total",
		Help: "Total number of reachability fixed-point rounds executed.",
	})

	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cruft_issues_total",
		Help: "Total number of issues found, by type.",
	}, []string{"type"})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cruft_phase_seconds",
		Help:    "Time spent in each engine phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})
)
