package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenttask_runs_total",
			Help: "Total number of finished task runs.",
		},
		[]string{"status"},
	)

	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agenttask_run_duration_seconds",
			Help:    "Task run duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agenttask_steps_total",
			Help: "Total number of executed steps.",
		},
		[]string{"type", "outcome"},
	)

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agenttask_step_duration_seconds",
			Help:    "Step execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(stepDuration)
}
