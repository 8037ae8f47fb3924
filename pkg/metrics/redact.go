package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedactMetrics tracks HMAC branding/redaction outcomes and the state of
// the version-keyed nonce cache.
//
// Labels:
//   - result: "branded", "rejected_mac", "rejected_nonce", "degraded"
type RedactMetrics struct {
	OperationsTotal  *prometheus.CounterVec
	NonceCacheSize   *prometheus.GaugeVec
	NonceCacheStatus *prometheus.GaugeVec
	NonceEvictions   *prometheus.CounterVec
}

// NewRedactMetrics creates and registers redaction/nonce-cache metrics.
func NewRedactMetrics(namespace string) *RedactMetrics {
	return &RedactMetrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redact",
				Name:      "operations_total",
				Help:      "Total number of redact/verify operations by result",
			},
			[]string{"result"},
		),
		NonceCacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "redact",
				Name:      "nonce_cache_size",
				Help:      "Number of live nonce versions held in the cache",
			},
			[]string{"issuer"},
		),
		NonceCacheStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "redact",
				Name:      "nonce_cache_status",
				Help:      "Nonce cache status: 0=ok, 1=degraded (grace period), 2=failed_closed",
			},
			[]string{"issuer"},
		),
		NonceEvictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "redact",
				Name:      "nonce_evictions_total",
				Help:      "Total number of nonce versions evicted after TTL expiry",
			},
			[]string{"issuer"},
		),
	}
}

// RecordOperation records a single redact/verify call outcome.
func (m *RedactMetrics) RecordOperation(result string) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(result).Inc()
}

// SetCacheState publishes the current cache size and status for an issuer.
func (m *RedactMetrics) SetCacheState(issuer string, size int, status int) {
	if m == nil {
		return
	}
	m.NonceCacheSize.WithLabelValues(issuer).Set(float64(size))
	m.NonceCacheStatus.WithLabelValues(issuer).Set(float64(status))
}

// RecordEviction records a nonce version dropping out of the cache.
func (m *RedactMetrics) RecordEviction(issuer string) {
	if m == nil {
		return
	}
	m.NonceEvictions.WithLabelValues(issuer).Inc()
}
