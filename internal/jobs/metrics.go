package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const graphLabel = "graph"

var (
	jobsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "midgard_jobs_executed_total",
		Help: "The number of graph jobs that ran to completion.",
	}, []string{
		graphLabel,
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "midgard_job_duration_seconds",
		Help:    "The time spent inside a job body.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 10),
	}, []string{
		graphLabel,
	})

	graphsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "midgard_job_graphs_in_flight",
		Help: "The number of job graphs that have not drained yet.",
	}, []string{
		graphLabel,
	})
)

func instrumentJob(graph string, start time.Time) {
	labels := prometheus.Labels{graphLabel: graph}
	jobsExecuted.With(labels).Inc()
	jobDuration.With(labels).Observe(time.Since(start).Seconds())
}

func instrumentGraphStart(graph string) {
	graphsInFlight.With(prometheus.Labels{graphLabel: graph}).Inc()
}

func instrumentGraphDone(graph string) {
	graphsInFlight.With(prometheus.Labels{graphLabel: graph}).Dec()
}
