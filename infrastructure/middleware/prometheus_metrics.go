// Package middleware provides cross-cutting concerns for the tender
// evaluation engine: metrics collection and trace observation around
// matrix operations.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openprocure/evalmatrix/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of submissions,
// recomputation latency, and consensus state across evaluation matrices.
type PrometheusMetrics struct {
	submissionsTotal  *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	operationLatency  *prometheus.HistogramVec
	vendorScore       *prometheus.GaugeVec
	matrixGauges      *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics with the given registerer. Passing nil
// uses the global Prometheus registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matrix_submissions_total",
				Help: "Total number of vendor score submissions, by outcome.",
			},
			[]string{"matrix_id", "result"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matrix_state_transitions_total",
				Help: "Total number of matrix lifecycle transitions.",
			},
			[]string{"matrix_id", "from", "to"},
		),
		recomputeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matrix_recompute_duration_seconds",
				Help:    "Time taken to regenerate the results snapshot.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"matrix_id"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matrix_operation_duration_seconds",
				Help:    "Execution time of matrix operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "matrix_id"},
		),
		vendorScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matrix_vendor_score",
				Help: "Latest consensus weighted score per vendor.",
			},
			[]string{"matrix_id", "vendor_id"},
		),
		matrixGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matrix_state",
				Help: "Current per-matrix state values such as consensus.",
			},
			[]string{"metric", "matrix_id"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.operationLatency.WithLabelValues(operation, labels["matrix_id"]).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by
// incrementing Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "matrix_submissions_total":
		pm.submissionsTotal.WithLabelValues(labels["matrix_id"], labels["result"]).Add(value)
	case "matrix_state_transitions_total":
		pm.transitionsTotal.WithLabelValues(labels["matrix_id"], labels["from"], labels["to"]).Add(value)
	default:
		pm.submissionsTotal.WithLabelValues(labels["matrix_id"], metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	if metric == "matrix_vendor_score" {
		pm.vendorScore.WithLabelValues(labels["matrix_id"], labels["vendor_id"]).Set(value)
		return
	}
	pm.matrixGauges.WithLabelValues(metric, labels["matrix_id"]).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case "matrix_recompute_duration_seconds":
		pm.recomputeDuration.WithLabelValues(labels["matrix_id"]).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric, labels["matrix_id"]).Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
