package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EvaluatorMetrics tracks the bounded fan-out rule evaluator.
//
// Labels:
//   - rule: the rule identifier, e.g. "MD-001"
//   - outcome: "clean", "violation", "error"
type EvaluatorMetrics struct {
	RuleDuration     *prometheus.HistogramVec
	RuleOutcomes     *prometheus.CounterVec
	RuleErrorsTotal  *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	BatchConcurrency prometheus.Gauge
}

// NewEvaluatorMetrics creates and registers rule-evaluation metrics.
func NewEvaluatorMetrics(namespace string) *EvaluatorMetrics {
	return &EvaluatorMetrics{
		RuleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "rule_duration_seconds",
				Help:      "Duration of a single rule's isolated evaluation",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"rule"},
		),
		RuleOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "rule_outcomes_total",
				Help:      "Total rule evaluations by rule and outcome",
			},
			[]string{"rule", "outcome"},
		),
		RuleErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "rule_errors_total",
				Help:      "Total rule evaluation panics/errors converted to RuleEvaluationError",
			},
			[]string{"rule"},
		),
		BatchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "batch_duration_seconds",
				Help:      "Wall-clock duration of one full rule-set evaluation fan-out",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
			},
		),
		BatchConcurrency: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "batch_concurrency",
				Help:      "Configured bound on concurrent rule evaluations",
			},
		),
	}
}

// RecordRule records one rule's isolated evaluation outcome and duration.
func (m *EvaluatorMetrics) RecordRule(rule, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RuleOutcomes.WithLabelValues(rule, outcome).Inc()
	m.RuleDuration.WithLabelValues(rule).Observe(durationSeconds)
}

// RecordRuleError records a rule that failed to evaluate cleanly.
func (m *EvaluatorMetrics) RecordRuleError(rule string) {
	if m == nil {
		return
	}
	m.RuleErrorsTotal.WithLabelValues(rule).Inc()
}

// RecordBatch records the wall-clock duration of a full rule-set pass.
func (m *EvaluatorMetrics) RecordBatch(durationSeconds float64) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(durationSeconds)
}

// SetConcurrency publishes the configured concurrency bound.
func (m *EvaluatorMetrics) SetConcurrency(n int) {
	if m == nil {
		return
	}
	m.BatchConcurrency.Set(float64(n))
}
