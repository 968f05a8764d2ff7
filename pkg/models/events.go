package models

import "time"

type EventType string

const (
	EventTypeTickCompleted     EventType = "tick_completed"
	EventTypeSampleCollected   EventType = "sample_collected"
	EventTypeForecastMade      EventType = "forecast_made"
	EventTypeDecisionMade      EventType = "decision_made"
	EventTypeScalingStarted    EventType = "scaling_started"
	EventTypeScalingComplete   EventType = "scaling_complete"
	EventTypeScalingFailed     EventType = "scaling_failed"
	EventTypeThresholdsUpdated EventType = "thresholds_updated"
	EventTypeRetrainStarted    EventType = "retrain_started"
	EventTypeRetrainComplete   EventType = "retrain_complete"
	EventTypeRetrainFailed     EventType = "retrain_failed"
	EventTypeError             EventType = "error"
)

// AllEventTypes lists every event type the bus can carry.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeTickCompleted,
		EventTypeSampleCollected,
		EventTypeForecastMade,
		EventTypeDecisionMade,
		EventTypeScalingStarted,
		EventTypeScalingComplete,
		EventTypeScalingFailed,
		EventTypeThresholdsUpdated,
		EventTypeRetrainStarted,
		EventTypeRetrainComplete,
		EventTypeRetrainFailed,
		EventTypeError,
	}
}

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event represents an internal system event
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	FleetID   string        `json:"fleet_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

func NewEvent(eventType EventType, fleetID, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  SeverityInfo,
		FleetID:   fleetID,
		Timestamp: time.Now(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}
