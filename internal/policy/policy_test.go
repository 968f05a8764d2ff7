package policy

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// Monday 2026-03-02 07:00 UTC, outside the default peaks.
var offPeak = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

func obs(cpu float64, instances int) models.Sample {
	return models.Sample{Timestamp: offPeak, CPUUtilization: cpu, InstanceCount: instances}
}

func fc(predicted, confidence float64) models.Forecast {
	return models.Forecast{PredictedLoad: predicted, Confidence: confidence}
}

func TestDecide(t *testing.T) {
	th := models.DefaultThresholds() // up 80/0.7, down 20/30, 2..20

	tests := []struct {
		name       string
		now        time.Time
		sample     models.Sample
		forecast   models.Forecast
		schedule   *Schedule
		wantAction models.ScalingAction
		wantTarget int
		wantRule   models.DecisionRule
		wantReason string
	}{
		{
			name:       "predictive scale up doubles",
			sample:     obs(60, 4),
			forecast:   fc(85, 0.8),
			wantAction: models.ActionScaleUp, wantTarget: 8,
			wantRule: models.RulePredictiveScaleUp, wantReason: ReasonPredictedLoad,
		},
		{
			name:       "predictive scale up capped at max",
			sample:     obs(60, 15),
			forecast:   fc(85, 0.8),
			wantAction: models.ActionScaleUp, wantTarget: 20,
			wantRule: models.RulePredictiveScaleUp, wantReason: ReasonPredictedLoad,
		},
		{
			name:       "low confidence holds",
			sample:     obs(60, 4),
			forecast:   fc(85, 0.7),
			wantAction: models.ActionNone, wantTarget: 4,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
		{
			name:       "threshold equality does not fire",
			sample:     obs(60, 4),
			forecast:   fc(80, 0.9),
			wantAction: models.ActionNone, wantTarget: 4,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
		{
			name:       "reactive scale down halves",
			sample:     obs(10, 4),
			forecast:   fc(15, 0.1),
			wantAction: models.ActionScaleDown, wantTarget: 2,
			wantRule: models.RuleReactiveScaleDown, wantReason: ReasonLowLoad,
		},
		{
			name:       "scale down floors at min",
			sample:     obs(10, 3),
			forecast:   fc(15, 0.9),
			wantAction: models.ActionScaleDown, wantTarget: 2,
			wantRule: models.RuleReactiveScaleDown, wantReason: ReasonLowLoad,
		},
		{
			name:       "hysteresis: low forecast but busy now",
			sample:     obs(45, 4),
			forecast:   fc(15, 0.9),
			wantAction: models.ActionNone, wantTarget: 4,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
		{
			name:       "hysteresis: idle now but forecast busy",
			sample:     obs(10, 4),
			forecast:   fc(50, 0.9),
			wantAction: models.ActionNone, wantTarget: 4,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
		{
			name:       "no scale down at min",
			sample:     obs(5, 2),
			forecast:   fc(5, 0.9),
			wantAction: models.ActionNone, wantTarget: 2,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
		{
			name:       "already at max",
			sample:     obs(95, 20),
			forecast:   fc(95, 0.95),
			wantAction: models.ActionNone, wantTarget: 20,
			wantRule: models.RuleNone, wantReason: ReasonAtTarget,
		},
		{
			name:       "zero instances clamps to min",
			sample:     obs(90, 0),
			forecast:   fc(90, 0.9),
			wantAction: models.ActionScaleUp, wantTarget: 2,
			wantRule: models.RulePredictiveScaleUp, wantReason: ReasonPredictedLoad,
		},
		{
			name:       "scheduled peak raises to floor",
			now:        time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
			sample:     obs(10, 3),
			forecast:   fc(10, 0.9),
			schedule:   DefaultSchedule(),
			wantAction: models.ActionScaleUp, wantTarget: 5,
			wantRule: models.RuleScheduledPeak, wantReason: ReasonScheduledPeak,
		},
		{
			name:       "scheduled peak wins over predictive",
			now:        time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
			sample:     obs(70, 4),
			forecast:   fc(95, 0.95),
			schedule:   DefaultSchedule(),
			wantAction: models.ActionScaleUp, wantTarget: 5,
			wantRule: models.RuleScheduledPeak, wantReason: ReasonScheduledPeak,
		},
		{
			name:       "peak above floor falls through to predictive",
			now:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
			sample:     obs(70, 6),
			forecast:   fc(95, 0.95),
			schedule:   DefaultSchedule(),
			wantAction: models.ActionScaleUp, wantTarget: 12,
			wantRule: models.RulePredictiveScaleUp, wantReason: ReasonPredictedLoad,
		},
		{
			name:       "outside peak the schedule is ignored",
			sample:     obs(50, 3),
			forecast:   fc(50, 0.9),
			schedule:   DefaultSchedule(),
			wantAction: models.ActionNone, wantTarget: 3,
			wantRule: models.RuleNone, wantReason: ReasonWithinBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			if now.IsZero() {
				now = offPeak
			}

			d := Decide(now, tt.sample, tt.forecast, th, tt.schedule)

			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantTarget, d.TargetInstances)
			assert.Equal(t, tt.wantRule, d.Rule)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, models.OutcomePending, d.Outcome)
			assert.Equal(t, tt.sample.InstanceCount, d.CurrentInstances)
			assert.Equal(t, now, d.Timestamp)
		})
	}
}

func TestDecide_IsDeterministic(t *testing.T) {
	th := models.DefaultThresholds()
	a := Decide(offPeak, obs(60, 4), fc(85, 0.8), th, DefaultSchedule())
	b := Decide(offPeak, obs(60, 4), fc(85, 0.8), th, DefaultSchedule())
	assert.Equal(t, a, b)
}

func TestDecide_TargetAlwaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	schedule := DefaultSchedule()

	for i := 0; i < 5000; i++ {
		minInst := rng.IntN(10)
		th := models.PolicyThresholds{
			ScaleUpLoadThreshold:       50 + rng.Float64()*50,
			ScaleUpConfidenceThreshold: rng.Float64(),
			ScaleDownLoadThreshold:     rng.Float64() * 50,
			ScaleDownCurrentThreshold:  rng.Float64() * 100,
			MinInstances:               minInst,
			MaxInstances:               minInst + rng.IntN(30),
		}
		now := offPeak.Add(time.Duration(rng.IntN(7*24*60)) * time.Minute)
		sample := models.Sample{
			Timestamp:      now,
			CPUUtilization: rng.Float64() * 100,
			InstanceCount:  rng.IntN(60),
		}
		forecast := fc(rng.Float64()*100, rng.Float64())

		d := Decide(now, sample, forecast, th, schedule)

		assert.GreaterOrEqual(t, d.TargetInstances, th.MinInstances, "case %d: %+v %+v", i, th, sample)
		assert.LessOrEqual(t, d.TargetInstances, th.MaxInstances, "case %d: %+v %+v", i, th, sample)
		switch d.Action {
		case models.ActionScaleUp:
			assert.Greater(t, d.TargetInstances, d.CurrentInstances)
		case models.ActionScaleDown:
			assert.Less(t, d.TargetInstances, d.CurrentInstances)
		}
	}
}

func FuzzDecide(f *testing.F) {
	f.Add(85.0, 0.8, 60.0, 4, 2, 20)
	f.Add(10.0, 0.1, 5.0, 0, 0, 0)
	f.Add(100.0, 1.0, 100.0, 50, 3, 7)

	f.Fuzz(func(t *testing.T, predicted, confidence, cpu float64, instances, minInst, span int) {
		if minInst < 0 || span < 0 || instances < 0 || minInst > 1000 || span > 1000 {
			t.Skip()
		}
		th := models.DefaultThresholds()
		th.MinInstances = minInst
		th.MaxInstances = minInst + span

		d := Decide(offPeak, obs(cpu, instances), fc(predicted, confidence), th, DefaultSchedule())
		if d.TargetInstances < th.MinInstances || d.TargetInstances > th.MaxInstances {
			t.Fatalf("target %d outside [%d,%d]", d.TargetInstances, th.MinInstances, th.MaxInstances)
		}
	})
}
