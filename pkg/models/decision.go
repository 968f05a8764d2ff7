package models

import (
	"errors"
	"fmt"
	"time"
)

type ScalingAction string

const (
	ActionNone      ScalingAction = "none"
	ActionScaleUp   ScalingAction = "scale_up"
	ActionScaleDown ScalingAction = "scale_down"
)

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

func (o Outcome) IsFinal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// DecisionRule names the policy rule that produced a decision.
type DecisionRule string

const (
	RuleScheduledPeak     DecisionRule = "scheduled_peak"
	RulePredictiveScaleUp DecisionRule = "predictive_scale_up"
	RuleReactiveScaleDown DecisionRule = "reactive_scale_down"
	RuleBackoff           DecisionRule = "backoff"
	RuleNone              DecisionRule = "none"
)

// ScalingDecision is created by the policy and mutated exactly once to record
// its outcome.
type ScalingDecision struct {
	ID               string        `json:"id"`
	Timestamp        time.Time     `json:"timestamp"`
	CurrentLoad      float64       `json:"current_load"`
	PredictedLoad    float64       `json:"predicted_load"`
	Confidence       float64       `json:"confidence"`
	CurrentInstances int           `json:"current_instances"`
	Action           ScalingAction `json:"action"`
	TargetInstances  int           `json:"target_instances"`
	Reason           string        `json:"reason"`
	Rule             DecisionRule  `json:"rule"`
	Outcome          Outcome       `json:"outcome"`
	Error            string        `json:"error,omitempty"`
	FinalizedAt      *time.Time    `json:"finalized_at,omitempty"`
}

func (d *ScalingDecision) InstanceDelta() int {
	return d.TargetInstances - d.CurrentInstances
}

func (d *ScalingDecision) IsActionable() bool {
	return d.Action == ActionScaleUp || d.Action == ActionScaleDown
}

var ErrInvalidThresholds = errors.New("invalid policy thresholds")

const maxWidenedConfidence = 0.99

// PolicyThresholds is the tunable state read by the scaling policy every tick.
type PolicyThresholds struct {
	ScaleUpLoadThreshold       float64 `json:"scale_up_load_threshold" mapstructure:"scale_up_load" yaml:"scale_up_load"`
	ScaleUpConfidenceThreshold float64 `json:"scale_up_confidence_threshold" mapstructure:"scale_up_confidence" yaml:"scale_up_confidence"`
	ScaleDownLoadThreshold     float64 `json:"scale_down_load_threshold" mapstructure:"scale_down_load" yaml:"scale_down_load"`
	ScaleDownCurrentThreshold  float64 `json:"scale_down_current_threshold" mapstructure:"scale_down_current" yaml:"scale_down_current"`
	MinInstances               int     `json:"min_instances" mapstructure:"min_instances" yaml:"min_instances"`
	MaxInstances               int     `json:"max_instances" mapstructure:"max_instances" yaml:"max_instances"`
}

func DefaultThresholds() PolicyThresholds {
	return PolicyThresholds{
		ScaleUpLoadThreshold:       80,
		ScaleUpConfidenceThreshold: 0.7,
		ScaleDownLoadThreshold:     20,
		ScaleDownCurrentThreshold:  30,
		MinInstances:               2,
		MaxInstances:               20,
	}
}

func (t PolicyThresholds) Validate() error {
	var errs []error

	if t.MinInstances < 0 {
		errs = append(errs, fmt.Errorf("min_instances %d must not be negative", t.MinInstances))
	}
	if t.MinInstances > t.MaxInstances {
		errs = append(errs, fmt.Errorf("min_instances %d exceeds max_instances %d", t.MinInstances, t.MaxInstances))
	}
	for name, v := range map[string]float64{
		"scale_up_load":      t.ScaleUpLoadThreshold,
		"scale_down_load":    t.ScaleDownLoadThreshold,
		"scale_down_current": t.ScaleDownCurrentThreshold,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s %.2f outside [0,100]", name, v))
		}
	}
	if t.ScaleUpConfidenceThreshold < 0 || t.ScaleUpConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("scale_up_confidence %.2f outside [0,1]", t.ScaleUpConfidenceThreshold))
	}
	if t.ScaleDownLoadThreshold >= t.ScaleUpLoadThreshold {
		errs = append(errs, fmt.Errorf("scale_down_load %.2f must be below scale_up_load %.2f",
			t.ScaleDownLoadThreshold, t.ScaleUpLoadThreshold))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThresholds, errors.Join(errs...))
	}
	return nil
}

// ClampInstances bounds n to [MinInstances, MaxInstances].
func (t PolicyThresholds) ClampInstances(n int) int {
	if n < t.MinInstances {
		return t.MinInstances
	}
	if n > t.MaxInstances {
		return t.MaxInstances
	}
	return n
}

// Widen returns thresholds moved toward more conservative values on the
// requested sides; values are clamped into their valid ranges. Widening never
// loosens a threshold, so a confidence already above the 0.99 cap is kept.
func (t PolicyThresholds) Widen(up, down bool, step, confidenceStep float64) PolicyThresholds {
	next := t
	if up {
		next.ScaleUpLoadThreshold = clamp(t.ScaleUpLoadThreshold+step, 0, 100)
		next.ScaleUpConfidenceThreshold = clamp(t.ScaleUpConfidenceThreshold+confidenceStep, 0,
			max(t.ScaleUpConfidenceThreshold, maxWidenedConfidence))
	}
	if down {
		next.ScaleDownLoadThreshold = clamp(t.ScaleDownLoadThreshold-step, 0, 100)
		next.ScaleDownCurrentThreshold = clamp(t.ScaleDownCurrentThreshold-step, 0, 100)
	}
	return next
}
