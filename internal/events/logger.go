package events

import (
	"context"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// ScalingEventRecorder persists executor outcomes for audit.
type ScalingEventRecorder interface {
	RecordScalingEvent(ctx context.Context, event *models.ScalingEvent) error
}

// EventLogger drains a subscription into the structured log and hands
// scaling outcomes to an optional recorder.
type EventLogger struct {
	recorder  ScalingEventRecorder
	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewEventLogger(recorder ScalingEventRecorder, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		recorder:  recorder,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	go l.run()
}

// Stop waits for the in-progress event, if any.
func (l *EventLogger) Stop() {
	l.cancel()
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"fleet_id":   event.FleetID,
		"severity":   event.Severity,
		"trace_id":   event.TraceID,
	})

	switch event.Severity {
	case models.SeverityCritical:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Debug(event.Message)
	}

	switch event.Type {
	case models.EventTypeScalingComplete, models.EventTypeScalingFailed:
		l.persistScalingEvent(event)
	}
}

func (l *EventLogger) persistScalingEvent(event *models.Event) {
	if l.recorder == nil {
		return
	}
	scalingEvent, ok := event.Data.(*models.ScalingEvent)
	if !ok {
		return
	}
	if err := l.recorder.RecordScalingEvent(l.ctx, scalingEvent); err != nil {
		logger.Errorf("Failed to persist scaling event: %v", err)
	}
}
