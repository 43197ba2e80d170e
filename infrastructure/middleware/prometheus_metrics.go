// Package middleware provides cross-cutting concerns for analysis units:
// tracing, timing and Prometheus metrics.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-qra/internal/ports"
)

// Metric names understood by PrometheusMetrics. Other names fall through to
// the generic operation counter and stage gauge.
const (
	MetricUnitExecutions = "unit_executions_total"
	MetricJudgments      = "judgments"
	MetricCoefficient    = "coefficient"
)

// PrometheusMetrics implements ports.MetricsCollector on a caller-supplied
// registry.
type PrometheusMetrics struct {
	unitLatency      *prometheus.HistogramVec
	unitExecutions   *prometheus.CounterVec
	judgments        *prometheus.GaugeVec
	coefficients     *prometheus.GaugeVec
	operationCounter *prometheus.CounterVec
	stageGauges      *prometheus.GaugeVec
	values           *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the collectors on reg. Passing nil uses
// the global default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		unitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qra_unit_duration_seconds",
				Help:    "Execution time of analysis units.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "unit"},
		),
		unitExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qra_unit_executions_total",
				Help: "Analysis unit executions by outcome.",
			},
			[]string{"unit", "status"},
		),
		judgments: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qra_judgments",
				Help: "Judgments present after each stage of the last run.",
			},
			[]string{"stage"},
		),
		coefficients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qra_coefficient",
				Help: "Agreement and correlation coefficients of the last run.",
			},
			[]string{"name"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qra_operations_total",
				Help: "Miscellaneous counted operations.",
			},
			[]string{"operation", "unit"},
		),
		stageGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qra_stage_state",
				Help: "Miscellaneous per-unit values of the last run.",
			},
			[]string{"metric", "unit"},
		),
		values: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qra_observed_values",
				Help:    "Distribution of observed analysis values.",
				Buckets: prometheus.LinearBuckets(-1, 0.25, 9),
			},
			[]string{"metric", "unit"},
		),
	}
}

func unitLabel(labels map[string]string) string {
	if unit, ok := labels["unit"]; ok {
		return unit
	}
	return "unknown"
}

// RecordLatency observes duration in the unit latency histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.unitLatency.WithLabelValues(operation, unitLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter adds value to the counter named by metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricUnitExecutions:
		status := labels["status"]
		if status == "" {
			status = "success"
		}
		pm.unitExecutions.WithLabelValues(unitLabel(labels), status).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, unitLabel(labels)).Add(value)
	}
}

// RecordGauge sets the gauge named by metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricJudgments:
		pm.judgments.WithLabelValues(labels["stage"]).Set(value)
	case MetricCoefficient:
		pm.coefficients.WithLabelValues(labels["name"]).Set(value)
	default:
		pm.stageGauges.WithLabelValues(metric, unitLabel(labels)).Set(value)
	}
}

// RecordHistogram observes value under metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.values.WithLabelValues(metric, unitLabel(labels)).Observe(value)
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format read by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
