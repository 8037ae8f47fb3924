package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// L0Metrics tracks the allocation-free invariant gate that runs ahead of
// every other Oracle component.
//
// Labels:
//   - outcome: "pass", "violation", "degraded"
//   - invariant: the name of the failing invariant (empty on pass)
type L0Metrics struct {
	ChecksTotal     *prometheus.CounterVec
	CheckDuration   prometheus.Histogram
	ViolationsTotal *prometheus.CounterVec
}

// NewL0Metrics creates and registers L0 invariant-gate metrics.
func NewL0Metrics(namespace string) *L0Metrics {
	return &L0Metrics{
		ChecksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "l0",
				Name:      "checks_total",
				Help:      "Total number of L0 invariant gate evaluations by outcome",
			},
			[]string{"outcome"},
		),
		CheckDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "l0",
				Name:      "check_duration_seconds",
				Help:      "Duration of a full L0.Check pass across all fixed-order invariants",
				Buckets:   []float64{0.0000001, 0.0000005, 0.000001, 0.000005, 0.00001, 0.00005, 0.0001},
			},
		),
		ViolationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "l0",
				Name:      "violations_total",
				Help:      "Total number of L0 invariant violations by invariant name",
			},
			[]string{"invariant"},
		),
	}
}

// RecordCheck records the outcome of one L0.Check call.
func (m *L0Metrics) RecordCheck(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
	m.CheckDuration.Observe(durationSeconds)
}

// RecordViolation records a single named invariant failing.
func (m *L0Metrics) RecordViolation(invariant string) {
	if m == nil {
		return
	}
	m.ViolationsTotal.WithLabelValues(invariant).Inc()
}
