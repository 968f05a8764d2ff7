package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveTick("ok", 20*time.Millisecond)
	m.ObserveTick("ok", 30*time.Millisecond)
	m.ObserveTick("stalled", time.Millisecond)
	m.ObserveSample(models.Sample{CPUUtilization: 64.5, InstanceCount: 7})
	m.ObserveForecast(models.Forecast{
		PredictedLoad: 80,
		PeakExpected:  91,
		Confidence:    0.8,
		Failed:        map[string]string{"seasonal": "insufficient data"},
	})
	m.IncDecision(models.ScalingDecision{Action: models.ActionScaleUp, Rule: models.RulePredictiveScaleUp})
	m.IncExecution(models.ActionScaleUp, models.OutcomeFailure)
	m.SetThresholds(models.DefaultThresholds())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticksTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticksTotal.WithLabelValues("stalled")))
	assert.Equal(t, 64.5, testutil.ToFloat64(m.currentCPU))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.currentInstances))
	assert.Equal(t, 91.0, testutil.ToFloat64(m.forecastPeak))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategyFailures.WithLabelValues("seasonal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("scale_up", "predictive_scale_up")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsTotal.WithLabelValues("scale_up", "failure")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.thresholds.WithLabelValues("scale_up_load")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.thresholds.WithLabelValues("max_instances")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick("ok", time.Second)
		m.ObserveSample(models.Sample{})
		m.IncCollectionErrors()
		m.ObserveForecast(models.Forecast{})
		m.IncDecision(models.ScalingDecision{})
		m.IncExecution(models.ActionNone, models.OutcomeSuccess)
		m.SetThresholds(models.PolicyThresholds{})
		m.IncRetrain("ok")
		m.SetCircuitBreakerState("collector", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncRetrain("success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `autoscaler_retrains_total{result="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
