package models

import "time"

// ScalingEvent is the notification payload emitted after the executor acts.
type ScalingEvent struct {
	DecisionID      string        `json:"decision_id"`
	FleetID         string        `json:"fleet_id"`
	Timestamp       time.Time     `json:"timestamp"`
	Action          ScalingAction `json:"action"`
	InstancesBefore int           `json:"instances_before"`
	InstancesAfter  int           `json:"instances_after"`
	Reason          string        `json:"reason"`
	PredictedLoad   float64       `json:"predicted_load"`
	Confidence      float64       `json:"confidence"`
	Outcome         Outcome       `json:"outcome"`
	Error           string        `json:"error,omitempty"`
}

func NewScalingEvent(fleetID string, decision ScalingDecision, outcome Outcome, err error) *ScalingEvent {
	event := &ScalingEvent{
		DecisionID:      decision.ID,
		FleetID:         fleetID,
		Timestamp:       time.Now(),
		Action:          decision.Action,
		InstancesBefore: decision.CurrentInstances,
		InstancesAfter:  decision.TargetInstances,
		Reason:          decision.Reason,
		PredictedLoad:   decision.PredictedLoad,
		Confidence:      decision.Confidence,
		Outcome:         outcome,
	}
	if err != nil {
		event.Error = err.Error()
		event.InstancesAfter = decision.CurrentInstances
	}
	return event
}
