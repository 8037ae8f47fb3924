package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdapterMetrics tracks provider adapter faults, latency and retry behaviour
// across the local, AWS, GCP and OCI backends.
//
// Labels:
//   - provider: "local", "aws", "gcp", "oci"
//   - store: "fp_store", "block_counter", "consent_store", "secret_store",
//     "baseline_store", "calibration_store"
type AdapterMetrics struct {
	CallsTotal        *prometheus.CounterVec
	CallDuration      *prometheus.HistogramVec
	FaultsTotal       *prometheus.CounterVec
	RetryAttempts     *prometheus.CounterVec
	RetryBackoff      *prometheus.HistogramVec
	CircuitBreakerOpn *prometheus.GaugeVec
}

// NewAdapterMetrics creates and registers adapter metrics.
func NewAdapterMetrics(namespace string) *AdapterMetrics {
	return &AdapterMetrics{
		CallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "calls_total",
				Help:      "Total number of adapter calls by provider, store and outcome",
			},
			[]string{"provider", "store", "outcome"},
		),
		CallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "call_duration_seconds",
				Help:      "Duration of adapter calls",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
			},
			[]string{"provider", "store"},
		),
		FaultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "faults_total",
				Help:      "Total number of adapter faults that triggered fail-closed handling",
			},
			[]string{"provider", "store"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "retry_attempts_total",
				Help:      "Total retry attempts by provider, store and outcome",
			},
			[]string{"provider", "store", "outcome"},
		),
		RetryBackoff: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "retry_backoff_seconds",
				Help:      "Backoff delay observed between adapter retry attempts",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider", "store"},
		),
		CircuitBreakerOpn: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "adapter",
				Name:      "circuit_breaker_open",
				Help:      "1 if the adapter circuit breaker is open for this provider/store, else 0",
			},
			[]string{"provider", "store"},
		),
	}
}

// RecordCall records a single adapter call outcome and duration.
func (m *AdapterMetrics) RecordCall(provider, store, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.CallsTotal.WithLabelValues(provider, store, outcome).Inc()
	m.CallDuration.WithLabelValues(provider, store).Observe(durationSeconds)
}

// RecordFault records an adapter fault that forced fail-closed handling.
func (m *AdapterMetrics) RecordFault(provider, store string) {
	if m == nil {
		return
	}
	m.FaultsTotal.WithLabelValues(provider, store).Inc()
}

// RecordRetry records one retry attempt and its backoff delay.
func (m *AdapterMetrics) RecordRetry(provider, store, outcome string, backoffSeconds float64) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(provider, store, outcome).Inc()
	m.RetryBackoff.WithLabelValues(provider, store).Observe(backoffSeconds)
}

// SetCircuitBreakerOpen publishes the current circuit breaker state.
func (m *AdapterMetrics) SetCircuitBreakerOpen(provider, store string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1.0
	}
	m.CircuitBreakerOpn.WithLabelValues(provider, store).Set(v)
}
