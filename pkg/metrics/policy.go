package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PolicyMetrics tracks the decision-merge stage: the final machine decision
// produced from the ordered outcome rules, and circuit-breaker degradation
// from block to warn.
//
// Labels:
//   - decision: "block", "warn", "allow"
type PolicyMetrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DegradationsTotal   *prometheus.CounterVec
	MatchedRule         *prometheus.CounterVec
	DecisionLatency     prometheus.Histogram
}

// NewPolicyMetrics creates and registers decision-outcome metrics.
func NewPolicyMetrics(namespace string) *PolicyMetrics {
	return &PolicyMetrics{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "decisions_total",
				Help:      "Total final machine decisions by outcome",
			},
			[]string{"decision"},
		),
		DegradationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "degradations_total",
				Help:      "Total times the circuit breaker degraded a block decision to warn",
			},
			[]string{"rule", "org_id"},
		),
		MatchedRule: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "matched_rule_total",
				Help:      "Total times a given rule was the first-match-wins winner",
			},
			[]string{"rule"},
		),
		DecisionLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "policy",
				Name:      "decision_latency_seconds",
				Help:      "Duration of the decision-merge pass over evaluated violations",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
			},
		),
	}
}

// RecordDecision records the final machine decision.
func (m *PolicyMetrics) RecordDecision(decision string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision).Inc()
	m.DecisionLatency.Observe(durationSeconds)
}

// RecordDegradation records a circuit-breaker block-to-warn downgrade.
func (m *PolicyMetrics) RecordDegradation(rule, orgID string) {
	if m == nil {
		return
	}
	m.DegradationsTotal.WithLabelValues(rule, orgID).Inc()
}

// RecordMatchedRule records which rule decided the outcome.
func (m *PolicyMetrics) RecordMatchedRule(rule string) {
	if m == nil {
		return
	}
	m.MatchedRule.WithLabelValues(rule).Inc()
}
