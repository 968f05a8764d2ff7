package policy

import (
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

const (
	ReasonScheduledPeak = "scheduled peak"
	ReasonPredictedLoad = "predicted load"
	ReasonLowLoad       = "low load"
	ReasonWithinBounds  = "within thresholds"
	ReasonAtTarget      = "already at target"
)

// Decide maps one tick's observation and forecast to a scaling decision. It
// reads nothing but its arguments. Rules are evaluated in order and the first
// match wins:
//
//  1. inside a scheduled peak with fewer instances than the schedule floor
//  2. predicted load and confidence both above the scale-up thresholds
//  3. predicted and current load below the scale-down thresholds
//
// The target is always clamped to [MinInstances, MaxInstances]. A rule whose
// clamped target does not move the fleet in its direction becomes a no-op.
func Decide(now time.Time, sample models.Sample, forecast models.Forecast, thresholds models.PolicyThresholds, schedule *Schedule) models.ScalingDecision {
	current := sample.InstanceCount

	d := models.ScalingDecision{
		Timestamp:        now,
		CurrentLoad:      sample.CPUUtilization,
		PredictedLoad:    forecast.PredictedLoad,
		Confidence:       forecast.Confidence,
		CurrentInstances: current,
		Action:           models.ActionNone,
		TargetInstances:  current,
		Reason:           ReasonWithinBounds,
		Rule:             models.RuleNone,
		Outcome:          models.OutcomePending,
	}

	switch {
	case schedule != nil && schedule.InPeak(now) && current < schedule.Floor():
		d.Action = models.ActionScaleUp
		d.TargetInstances = schedule.Floor()
		d.Reason = ReasonScheduledPeak
		d.Rule = models.RuleScheduledPeak

	case forecast.PredictedLoad > thresholds.ScaleUpLoadThreshold &&
		forecast.Confidence > thresholds.ScaleUpConfidenceThreshold:
		d.Action = models.ActionScaleUp
		d.TargetInstances = min(current*2, thresholds.MaxInstances)
		d.Reason = ReasonPredictedLoad
		d.Rule = models.RulePredictiveScaleUp

	case forecast.PredictedLoad < thresholds.ScaleDownLoadThreshold &&
		sample.CPUUtilization < thresholds.ScaleDownCurrentThreshold &&
		current > thresholds.MinInstances:
		d.Action = models.ActionScaleDown
		d.TargetInstances = max(current/2, thresholds.MinInstances)
		d.Reason = ReasonLowLoad
		d.Rule = models.RuleReactiveScaleDown
	}

	d.TargetInstances = thresholds.ClampInstances(d.TargetInstances)

	switch {
	case d.Action == models.ActionScaleUp && d.TargetInstances <= current,
		d.Action == models.ActionScaleDown && d.TargetInstances >= current:
		d.Reason = ReasonAtTarget
		d.Action = models.ActionNone
		d.Rule = models.RuleNone
	}

	return d
}
