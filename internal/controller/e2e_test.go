package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/events"
	"github.com/OldStager01/predictive-autoscaler/internal/executor"
	"github.com/OldStager01/predictive-autoscaler/internal/fleet"
	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/internal/history"
	"github.com/OldStager01/predictive-autoscaler/internal/learner"
	"github.com/OldStager01/predictive-autoscaler/internal/ledger"
	"github.com/OldStager01/predictive-autoscaler/internal/metrics"
	"github.com/OldStager01/predictive-autoscaler/internal/policy"
	"github.com/OldStager01/predictive-autoscaler/internal/trace"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// A 90 minute ramp from 20% to 95% must produce a scale up once the ensemble
// agrees, and never a scale down while utilization is at or above 30%.
func TestController_RampTrace(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: t0}

	sim := fleet.NewSimulatedFleet(fleet.SimulatedConfig{FleetID: "ramp", InitialInstances: 2, Now: clock.Now})
	coll := collector.NewTraceCollector(collector.TraceCollectorConfig{
		Pattern:   trace.Ramp{Start: t0, Duration: 90 * time.Minute, From: 20, To: 95},
		Instances: sim,
		Now:       clock.Now,
	})

	strategies, err := forecast.NewRegistry().Build(forecast.DefaultStrategies)
	require.NoError(t, err)
	forecaster := forecast.New(forecast.Config{}, strategies...)

	thresholds, err := policy.NewThresholdStore(models.DefaultThresholds())
	require.NoError(t, err)

	bus := events.NewEventBus(1024)
	defer bus.Close()
	publisher := events.NewPublisher(bus, "ramp")
	m := metrics.New()

	decisions := ledger.New(ctx, ledger.Config{FleetID: "ramp", Now: clock.Now})
	l := learner.New(learner.Config{FleetID: "ramp", FailureRatio: 0.3}, learner.Dependencies{
		Ledger:     decisions,
		Thresholds: thresholds,
		Forecaster: forecaster,
		Publisher:  publisher,
		Metrics:    m,
	})

	ctrl := New(Config{FleetID: "ramp", Interval: time.Minute, Now: clock.Now}, Dependencies{
		Collector:  coll,
		Buffer:     history.New(history.DefaultCapacity),
		Forecaster: forecaster,
		Thresholds: thresholds,
		Schedule:   nil,
		Executor:   executor.New(executor.Config{FleetID: "ramp"}, sim, fleet.NoopLoadBalancer{}, bus),
		Ledger:     decisions,
		Learner:    l,
		Publisher:  publisher,
		Metrics:    m,
	})

	scaleUps := 0
	for minute := 0; minute <= 90; minute++ {
		res := ctrl.Tick(ctx)
		clock.Advance(time.Minute)

		require.Equal(t, ResultOK, res.Result, "minute %d: %s", minute, res.Error)
		require.NotNil(t, res.Decision)

		switch res.Decision.Action {
		case models.ActionScaleUp:
			scaleUps++
			assert.Equal(t, models.OutcomeSuccess, res.Outcome)
			assert.Greater(t, res.Decision.Confidence, models.DefaultThresholds().ScaleUpConfidenceThreshold)
		case models.ActionScaleDown:
			assert.Less(t, res.Sample.CPUUtilization, 30.0, "scale down at minute %d", minute)
		}
	}
	l.Wait()

	assert.Positive(t, scaleUps)
	assert.Equal(t, 91, decisions.Len())
	for _, d := range decisions.Snapshot() {
		assert.True(t, d.Outcome.IsFinal())
		if d.CurrentLoad >= 30 {
			assert.NotEqual(t, models.ActionScaleDown, d.Action)
		}
	}

	n, err := sim.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, 2)
	assert.LessOrEqual(t, n, models.DefaultThresholds().MaxInstances)
}
