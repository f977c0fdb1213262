// Package health exposes rotation observability: Prometheus metrics and the
// verification probes run after a publish.
package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rotation metrics
	rotationStartedTotal   *prometheus.CounterVec
	rotationCompletedTotal *prometheus.CounterVec
	rotationDuration       *prometheus.HistogramVec
	phaseFailuresTotal     *prometheus.CounterVec
	orphanCleanupTotal     *prometheus.CounterVec
	retirePendingGauge     *prometheus.GaugeVec

	// Verification metrics
	verifyDuration *prometheus.HistogramVec
	verifyStatus   *prometheus.GaugeVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// RotationMetrics provides methods to record rotation metrics.
type RotationMetrics struct{}

// NewRotationMetrics creates a new RotationMetrics instance.
// Metrics are lazily registered on first use.
func NewRotationMetrics() *RotationMetrics {
	return &RotationMetrics{}
}

// InitMetrics initializes all Prometheus metrics.
// This should be called once at startup if Prometheus metrics are enabled.
func InitMetrics() {
	metricsOnce.Do(func() {
		rotationStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrot_rotation_started_total",
				Help: "Total number of rotation attempts started",
			},
			[]string{"principal", "provider"},
		)

		rotationCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrot_rotation_completed_total",
				Help: "Total number of rotation attempts completed",
			},
			[]string{"principal", "outcome"},
		)

		rotationDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyrot_rotation_duration_seconds",
				Help:    "Duration of rotation attempts in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120},
			},
			[]string{"principal"},
		)

		phaseFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrot_phase_failures_total",
				Help: "Total number of failures per rotation phase",
			},
			[]string{"principal", "phase"},
		)

		orphanCleanupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyrot_orphan_cleanup_total",
				Help: "Total number of orphaned credential cleanup attempts",
			},
			[]string{"principal", "result"},
		)

		retirePendingGauge = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyrot_retire_pending",
				Help: "Number of old credentials awaiting retirement (1=pending, 0=clear)",
			},
			[]string{"principal"},
		)

		verifyDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyrot_verify_duration_seconds",
				Help:    "Duration of post-publish verification in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"principal", "probe"},
		)

		verifyStatus = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "keyrot_verify_status",
				Help: "Result of the most recent verification (1=verified, 0=failed)",
			},
			[]string{"principal", "probe"},
		)

		metricsRegistered = true
	})
}

// RecordRotationStarted records a rotation start event.
func (m *RotationMetrics) RecordRotationStarted(principal, provider string) {
	if !metricsRegistered || rotationStartedTotal == nil {
		return
	}
	rotationStartedTotal.WithLabelValues(principal, provider).Inc()
}

// RecordRotationCompleted records a rotation completion event.
func (m *RotationMetrics) RecordRotationCompleted(principal, outcome string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if rotationCompletedTotal != nil {
		rotationCompletedTotal.WithLabelValues(principal, outcome).Inc()
	}

	if rotationDuration != nil {
		rotationDuration.WithLabelValues(principal).Observe(durationSeconds)
	}
}

// RecordPhaseFailure records a failure in a specific rotation phase.
func (m *RotationMetrics) RecordPhaseFailure(principal, phase string) {
	if !metricsRegistered || phaseFailuresTotal == nil {
		return
	}
	phaseFailuresTotal.WithLabelValues(principal, phase).Inc()
}

// RecordOrphanCleanup records a best-effort cleanup of an abandoned mint.
func (m *RotationMetrics) RecordOrphanCleanup(principal string, ok bool) {
	if !metricsRegistered || orphanCleanupTotal == nil {
		return
	}
	result := "failed"
	if ok {
		result = "revoked"
	}
	orphanCleanupTotal.WithLabelValues(principal, result).Inc()
}

// SetRetirePending flags whether old credentials await retirement.
func (m *RotationMetrics) SetRetirePending(principal string, pending bool) {
	if !metricsRegistered || retirePendingGauge == nil {
		return
	}
	value := 0.0
	if pending {
		value = 1.0
	}
	retirePendingGauge.WithLabelValues(principal).Set(value)
}

// RecordVerify records a verification probe result.
func (m *RotationMetrics) RecordVerify(principal, probe string, verified bool, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	if verifyDuration != nil {
		verifyDuration.WithLabelValues(principal, probe).Observe(durationSeconds)
	}

	if verifyStatus != nil {
		value := 0.0
		if verified {
			value = 1.0
		}
		verifyStatus.WithLabelValues(principal, probe).Set(value)
	}
}

// GetRotationCompletedTotal returns the rotation completed counter for testing.
func GetRotationCompletedTotal() *prometheus.CounterVec {
	return rotationCompletedTotal
}

// GetPhaseFailuresTotal returns the phase failure counter for testing.
func GetPhaseFailuresTotal() *prometheus.CounterVec {
	return phaseFailuresTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
