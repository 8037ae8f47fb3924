package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CalibrationMetrics tracks the Byzantine-filtered reputation-weighted
// consensus false-positive-rate calculation.
type CalibrationMetrics struct {
	RunsTotal            *prometheus.CounterVec
	ContributorsTotal    prometheus.Histogram
	OutliersExcluded     prometheus.Histogram
	KAnonymityRejections prometheus.Counter
	ConsensusConfidence  prometheus.Histogram
	ReputationUpdates    *prometheus.CounterVec
	ReputationQueueDepth prometheus.Gauge
	ReputationDropped    prometheus.Counter
}

// NewCalibrationMetrics creates and registers calibration metrics.
func NewCalibrationMetrics(namespace string) *CalibrationMetrics {
	return &CalibrationMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "runs_total",
				Help:      "Total calibration runs by outcome",
			},
			[]string{"outcome"},
		),
		ContributorsTotal: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "contributors_total",
				Help:      "Number of reputation-weighted contributors in a calibration run",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
			},
		),
		OutliersExcluded: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "outliers_excluded",
				Help:      "Number of contributors excluded by percentile/Z-score outlier filtering",
				Buckets:   []float64{0, 1, 2, 5, 10, 25},
			},
		),
		KAnonymityRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "k_anonymity_rejections_total",
				Help:      "Total calibration runs rejected for failing the K-anonymity gate",
			},
		),
		ConsensusConfidence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "consensus_confidence",
				Help:      "Consensus confidence score of a completed calibration run",
				Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99},
			},
		),
		ReputationUpdates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "reputation_updates_total",
				Help:      "Total reputation score update tasks by outcome",
			},
			[]string{"outcome"},
		),
		ReputationQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "reputation_queue_depth",
				Help:      "Current depth of the bounded async reputation update queue",
			},
		),
		ReputationDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calibration",
				Name:      "reputation_dropped_total",
				Help:      "Total reputation update tasks dropped due to queue overflow",
			},
		),
	}
}

// RecordRun records the outcome of one calibration pass.
func (m *CalibrationMetrics) RecordRun(outcome string, contributors, outliers int, confidence float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.ContributorsTotal.Observe(float64(contributors))
	m.OutliersExcluded.Observe(float64(outliers))
	if outcome == "ok" {
		m.ConsensusConfidence.Observe(confidence)
	}
}

// RecordKAnonymityRejection records a run rejected for insufficient contributors.
func (m *CalibrationMetrics) RecordKAnonymityRejection() {
	if m == nil {
		return
	}
	m.KAnonymityRejections.Inc()
}

// RecordReputationUpdate records one async reputation update task outcome.
func (m *CalibrationMetrics) RecordReputationUpdate(outcome string) {
	if m == nil {
		return
	}
	m.ReputationUpdates.WithLabelValues(outcome).Inc()
}

// SetReputationQueueDepth publishes the current async queue depth.
func (m *CalibrationMetrics) SetReputationQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.ReputationQueueDepth.Set(float64(depth))
}

// RecordReputationDropped records a reputation update dropped on overflow.
func (m *CalibrationMetrics) RecordReputationDropped() {
	if m == nil {
		return
	}
	m.ReputationDropped.Inc()
}
