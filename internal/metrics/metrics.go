package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (backend or decode issues).
	OutcomeError = "error"
	// OutcomeSuperseded labels refreshes discarded because a newer one started.
	OutcomeSuperseded = "superseded"
)

const namespace = "engagement_intel"

var (
	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of snapshot refreshes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	refreshDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_seconds",
			Help:      "Refresh latency in seconds, from fetch start to applied snapshot.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)

	droppedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_records_total",
			Help:      "Engagement records rejected at ingestion, partitioned by reason.",
		},
		[]string{"reason"},
	)

	commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Report commits to the notebook store, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotEngagements = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_engagements",
			Help:      "Number of engagements in the current snapshot.",
		},
	)
)

// Register attaches engagement-intel collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		refreshesTotal,
		refreshDurationSeconds,
		droppedRecordsTotal,
		commitsTotal,
		snapshotEngagements,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRefresh records a refresh duration and outcome label.
func ObserveRefresh(duration time.Duration, outcome string) {
	refreshesTotal.WithLabelValues(normaliseOutcome(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	refreshDurationSeconds.Observe(duration.Seconds())
}

// ObserveDropped counts one rejected record.
func ObserveDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	droppedRecordsTotal.WithLabelValues(reason).Inc()
}

// ObserveCommit counts one commit attempt.
func ObserveCommit(outcome string) {
	commitsTotal.WithLabelValues(normaliseOutcome(outcome)).Inc()
}

// SetSnapshotSize publishes the size of the applied snapshot.
func SetSnapshotSize(n int) {
	snapshotEngagements.Set(float64(n))
}

func normaliseOutcome(outcome string) string {
	switch outcome {
	case OutcomeError, OutcomeSuperseded:
		return outcome
	default:
		return OutcomeSuccess
	}
}
