package websocket

import (
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type MessageType string

const (
	MessageTypeTick       MessageType = "tick"
	MessageTypeSample     MessageType = "sample"
	MessageTypeForecast   MessageType = "forecast"
	MessageTypeDecision   MessageType = "decision"
	MessageTypeScaling    MessageType = "scaling"
	MessageTypeThresholds MessageType = "thresholds"
	MessageTypeRetrain    MessageType = "retrain"
	MessageTypeError      MessageType = "error"

	MessageTypeSubscription MessageType = "subscription_update"
)

// Event is the envelope sent to clients.
type Event struct {
	Type      MessageType          `json:"type"`
	Event     models.EventType     `json:"event"`
	FleetID   string               `json:"fleet_id"`
	Timestamp time.Time            `json:"timestamp"`
	Severity  models.EventSeverity `json:"severity,omitempty"`
	Message   string               `json:"message,omitempty"`
	Data      interface{}          `json:"data,omitempty"`
	TraceID   string               `json:"trace_id,omitempty"`
}

// IncomingMessage narrows what a client receives. An empty Types list
// means every message type.
type IncomingMessage struct {
	Type    string        `json:"type"`
	FleetID string        `json:"fleet_id,omitempty"`
	Types   []MessageType `json:"types,omitempty"`
}

type SubscriptionUpdate struct {
	Type      MessageType   `json:"type"`
	Action    string        `json:"action"`
	FleetID   string        `json:"fleet_id,omitempty"`
	Types     []MessageType `json:"types,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// messageType maps a bus event to the client-facing type; "" means the
// event is not streamed.
func messageType(eventType models.EventType) MessageType {
	switch eventType {
	case models.EventTypeTickCompleted:
		return MessageTypeTick
	case models.EventTypeSampleCollected:
		return MessageTypeSample
	case models.EventTypeForecastMade:
		return MessageTypeForecast
	case models.EventTypeDecisionMade:
		return MessageTypeDecision
	case models.EventTypeScalingStarted, models.EventTypeScalingComplete, models.EventTypeScalingFailed:
		return MessageTypeScaling
	case models.EventTypeThresholdsUpdated:
		return MessageTypeThresholds
	case models.EventTypeRetrainStarted, models.EventTypeRetrainComplete, models.EventTypeRetrainFailed:
		return MessageTypeRetrain
	case models.EventTypeError:
		return MessageTypeError
	default:
		return ""
	}
}

func newEvent(event *models.Event) *Event {
	t := messageType(event.Type)
	if t == "" {
		return nil
	}
	return &Event{
		Type:      t,
		Event:     event.Type,
		FleetID:   event.FleetID,
		Timestamp: event.Timestamp,
		Severity:  event.Severity,
		Message:   event.Message,
		Data:      event.Data,
		TraceID:   event.TraceID,
	}
}
