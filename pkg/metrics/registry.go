// Package metrics provides centralized metrics management for the Mirror
// Dissonance Oracle.
//
// This package implements a unified taxonomy for Prometheus metrics:
//   - L0: invariant-check latency and violation counts (hot path)
//   - Redact: branding/redaction outcomes and nonce cache state
//   - Adapter: provider fault counts and retry behaviour
//   - Evaluator: rule evaluation duration and per-rule error counts
//   - Policy: decision outcomes and circuit-breaker transitions
//   - Calibration: consensus confidence and contributor exclusion
//
// All metrics follow the naming convention:
// dissonance_<category>_<metric_name>[_<unit>], with the category as the
// Prometheus subsystem
//
// Example:
//
//	registry := metrics.DefaultRegistry()
//	registry.L0().ChecksTotal.WithLabelValues("pass").Inc()
//	registry.Adapter().FaultsTotal.WithLabelValues("local", "fp_store").Inc()
package metrics

import (
	"sync"
)

// MetricCategory represents the category of a metric.
type MetricCategory string

const (
	// CategoryL0 represents the allocation-free invariant gate.
	CategoryL0 MetricCategory = "l0"

	// CategoryRedact represents branding, redaction and nonce-cache metrics.
	CategoryRedact MetricCategory = "redact"

	// CategoryAdapter represents provider adapter faults and retries.
	CategoryAdapter MetricCategory = "adapter"

	// CategoryEvaluator represents rule-evaluation fan-out metrics.
	CategoryEvaluator MetricCategory = "evaluator"

	// CategoryPolicy represents decision-merge outcomes.
	CategoryPolicy MetricCategory = "policy"

	// CategoryCalibration represents consensus FPR calibration metrics.
	CategoryCalibration MetricCategory = "calibration"
)

// MetricsRegistry is the central registry for all Prometheus metrics.
// Provides organized access to metrics by category.
//
// Thread-safe: All Prometheus metrics are thread-safe by design.
// Singleton: Use DefaultRegistry() to get the global instance.
type MetricsRegistry struct {
	namespace string

	l0          *L0Metrics
	redact      *RedactMetrics
	adapter     *AdapterMetrics
	evaluator   *EvaluatorMetrics
	policy      *PolicyMetrics
	calibration *CalibrationMetrics

	l0Once          sync.Once
	redactOnce      sync.Once
	adapterOnce     sync.Once
	evaluatorOnce   sync.Once
	policyOnce      sync.Once
	calibrationOnce sync.Once
}

var (
	defaultRegistry     *MetricsRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton MetricsRegistry.
// Safe for concurrent use. Initialized once on first call.
func DefaultRegistry() *MetricsRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewMetricsRegistry("dissonance")
	})
	return defaultRegistry
}

// NewMetricsRegistry creates a new MetricsRegistry with the specified namespace.
// For most use cases, use DefaultRegistry() instead of calling this directly.
func NewMetricsRegistry(namespace string) *MetricsRegistry {
	if namespace == "" {
		namespace = "dissonance"
	}

	return &MetricsRegistry{
		namespace: namespace,
	}
}

// L0 returns the L0 invariant-gate metrics manager. Lazy-initialized.
func (r *MetricsRegistry) L0() *L0Metrics {
	r.l0Once.Do(func() {
		r.l0 = NewL0Metrics(r.namespace)
	})
	return r.l0
}

// Redact returns the redaction/nonce metrics manager. Lazy-initialized.
func (r *MetricsRegistry) Redact() *RedactMetrics {
	r.redactOnce.Do(func() {
		r.redact = NewRedactMetrics(r.namespace)
	})
	return r.redact
}

// Adapter returns the provider adapter metrics manager. Lazy-initialized.
func (r *MetricsRegistry) Adapter() *AdapterMetrics {
	r.adapterOnce.Do(func() {
		r.adapter = NewAdapterMetrics(r.namespace)
	})
	return r.adapter
}

// Evaluator returns the rule-evaluation metrics manager. Lazy-initialized.
func (r *MetricsRegistry) Evaluator() *EvaluatorMetrics {
	r.evaluatorOnce.Do(func() {
		r.evaluator = NewEvaluatorMetrics(r.namespace)
	})
	return r.evaluator
}

// Policy returns the decision-outcome metrics manager. Lazy-initialized.
func (r *MetricsRegistry) Policy() *PolicyMetrics {
	r.policyOnce.Do(func() {
		r.policy = NewPolicyMetrics(r.namespace)
	})
	return r.policy
}

// Calibration returns the calibration-consensus metrics manager. Lazy-initialized.
func (r *MetricsRegistry) Calibration() *CalibrationMetrics {
	r.calibrationOnce.Do(func() {
		r.calibration = NewCalibrationMetrics(r.namespace)
	})
	return r.calibration
}

// Namespace returns the configured namespace for this registry.
func (r *MetricsRegistry) Namespace() string {
	return r.namespace
}
