package heightfield

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLabel = "outcome"
	resultLabel  = "result"
)

// Refresh request outcomes.
const (
	outcomeMaterialOnly  = "material_only"
	outcomeBaked         = "baked"
	outcomeNoProvider    = "no_provider"
	outcomeDisjoint      = "disjoint"
	outcomeDegenerate    = "degenerate"
	outcomeEmpty         = "empty"
	outcomeLaunched      = "launched"
	outcomeInvalidShapes = "invalid_shapes"
	outcomeClosed        = "closed"
)

var (
	refreshRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "midgard_heightfield_refresh_requests_total",
		Help: "The number of heightfield change notifications by outcome.",
	}, []string{
		outcomeLabel,
	})

	refreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "midgard_heightfield_refresh_cycles_total",
		Help: "The number of refresh cycles that drained, by result.",
	}, []string{
		resultLabel,
	})

	refreshCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "midgard_heightfield_refresh_cycle_seconds",
		Help:    "The time from launching a refresh cycle to its completion task.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	refreshBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "midgard_heightfield_refresh_blocks",
		Help:    "The number of row blocks per launched refresh cycle.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	pointsResampled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midgard_heightfield_points_resampled_total",
		Help: "The number of heightfield vertices requested from providers.",
	})

	collidersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "midgard_heightfield_colliders",
		Help: "The number of open heightfield colliders.",
	})
)

func instrumentRequest(outcome string) {
	refreshRequests.With(prometheus.Labels{outcomeLabel: outcome}).Inc()
}

func instrumentLaunch(blocks int) {
	refreshBlocks.Observe(float64(blocks))
}

func instrumentCycle(canceled bool, start time.Time) {
	result := "completed"
	if canceled {
		result = "canceled"
	}
	refreshCycles.With(prometheus.Labels{resultLabel: result}).Inc()
	refreshCycleDuration.Observe(time.Since(start).Seconds())
}

func instrumentPointsResampled(points int) {
	pointsResampled.Add(float64(points))
}
