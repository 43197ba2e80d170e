package middleware

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) (*PrometheusMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusMetrics(reg), reg
}

func TestPrometheusMetrics_RecordCounter(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordCounter(MetricUnitExecutions, 1, map[string]string{"unit": "filter", "status": "success"})
	pm.RecordCounter(MetricUnitExecutions, 2, map[string]string{"unit": "filter", "status": "error"})
	pm.RecordCounter(MetricUnitExecutions, 1, map[string]string{"unit": "filter"})
	pm.RecordCounter("decode_failures", 3, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.unitExecutions.WithLabelValues("filter", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.unitExecutions.WithLabelValues("filter", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pm.operationCounter.WithLabelValues("decode_failures", "unknown")))
}

func TestPrometheusMetrics_RecordGauge(t *testing.T) {
	pm, _ := newTestMetrics(t)

	pm.RecordGauge(MetricJudgments, 120, map[string]string{"stage": "decoded"})
	pm.RecordGauge(MetricJudgments, 96, map[string]string{"stage": "filtered"})
	pm.RecordGauge(MetricCoefficient, 0.42, map[string]string{"name": "fleiss_kappa"})
	pm.RecordGauge("excluded_participants", 2, map[string]string{"unit": "filter"})

	assert.Equal(t, 120.0, testutil.ToFloat64(pm.judgments.WithLabelValues("decoded")))
	assert.Equal(t, 96.0, testutil.ToFloat64(pm.judgments.WithLabelValues("filtered")))
	assert.Equal(t, 0.42, testutil.ToFloat64(pm.coefficients.WithLabelValues("fleiss_kappa")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.stageGauges.WithLabelValues("excluded_participants", "filter")))
}

func TestPrometheusMetrics_Histograms(t *testing.T) {
	pm, reg := newTestMetrics(t)

	pm.RecordLatency("execute", 50*time.Millisecond, map[string]string{"unit": "scores"})
	pm.RecordHistogram("cv_star", 0.5, map[string]string{"unit": "reproduce"})

	assert.Equal(t, 1, testutil.CollectAndCount(pm.unitLatency, "qra_unit_duration_seconds"))
	assert.Equal(t, 1, testutil.CollectAndCount(pm.values, "qra_observed_values"))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2, "only collectors with observations are gathered")
}

func TestPrometheusMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusMetrics(prometheus.NewRegistry())
		NewPrometheusMetrics(prometheus.NewRegistry())
	})
}

func TestWriteTextfile(t *testing.T) {
	pm, reg := newTestMetrics(t)
	pm.RecordGauge(MetricJudgments, 7, map[string]string{"stage": "filtered"})

	path := filepath.Join(t.TempDir(), "qra.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `qra_judgments{stage="filtered"} 7`)
}
