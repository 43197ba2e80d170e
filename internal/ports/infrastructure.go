package ports

import "time"

// MetricsCollector records operational metrics of an analysis run.
// Implementations typically export to Prometheus.
type MetricsCollector interface {
	// RecordLatency records how long an operation took.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a counter.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a gauge to value.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram observes value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (NopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string)     {}
