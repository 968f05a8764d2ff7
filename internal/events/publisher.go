package events

import (
	"context"
	"fmt"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// Sink receives published events. The bus and the notifiers in
// internal/notify are sinks.
type Sink interface {
	Notify(ctx context.Context, event *models.Event)
}

// Publisher builds typed events for one fleet.
type Publisher struct {
	sink    Sink
	fleetID string
	traceID string
}

func NewPublisher(sink Sink, fleetID string) *Publisher {
	return &Publisher{sink: sink, fleetID: fleetID}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	return &Publisher{
		sink:    p.sink,
		fleetID: p.fleetID,
		traceID: traceID,
	}
}

func (p *Publisher) publish(ctx context.Context, event *models.Event) {
	if p == nil || p.sink == nil {
		return
	}
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	p.sink.Notify(ctx, event)
}

func (p *Publisher) SampleCollected(ctx context.Context, sample models.Sample) {
	msg := fmt.Sprintf("cpu=%.1f%% instances=%d", sample.CPUUtilization, sample.InstanceCount)
	p.publish(ctx, models.NewEvent(models.EventTypeSampleCollected, p.fleetID, msg).WithData(sample))
}

func (p *Publisher) ForecastMade(ctx context.Context, forecast models.Forecast) {
	msg := fmt.Sprintf("predicted=%.1f%% confidence=%.2f", forecast.PredictedLoad, forecast.Confidence)
	event := models.NewEvent(models.EventTypeForecastMade, p.fleetID, msg).WithData(forecast)
	if len(forecast.Failed) > 0 {
		event.WithSeverity(models.SeverityWarning)
	}
	p.publish(ctx, event)
}

func (p *Publisher) DecisionMade(ctx context.Context, decision models.ScalingDecision) {
	msg := fmt.Sprintf("Scaling decision: %s (%s)", decision.Action, decision.Reason)
	p.publish(ctx, models.NewEvent(models.EventTypeDecisionMade, p.fleetID, msg).WithData(decision))
}

func (p *Publisher) TickCompleted(ctx context.Context, summary any) {
	p.publish(ctx, models.NewEvent(models.EventTypeTickCompleted, p.fleetID, "Tick completed").WithData(summary))
}

func (p *Publisher) ThresholdsUpdated(ctx context.Context, previous, current models.PolicyThresholds, version uint64) {
	event := models.NewEvent(models.EventTypeThresholdsUpdated, p.fleetID, fmt.Sprintf("Thresholds updated to version %d", version)).
		WithSeverity(models.SeverityWarning).
		WithData(map[string]any{
			"previous": previous,
			"current":  current,
			"version":  version,
		})
	p.publish(ctx, event)
}

func (p *Publisher) RetrainStarted(ctx context.Context, successes int) {
	p.publish(ctx, models.NewEvent(models.EventTypeRetrainStarted, p.fleetID,
		fmt.Sprintf("Retraining on %d successful decisions", successes)))
}

func (p *Publisher) RetrainComplete(ctx context.Context, strategies []string) {
	p.publish(ctx, models.NewEvent(models.EventTypeRetrainComplete, p.fleetID, "Retraining complete").
		WithData(map[string]any{"strategies": strategies}))
}

func (p *Publisher) RetrainFailed(ctx context.Context, err error) {
	p.publish(ctx, models.NewEvent(models.EventTypeRetrainFailed, p.fleetID, "Retraining failed").
		WithSeverity(models.SeverityWarning).
		WithData(map[string]any{"error": err.Error()}))
}

func (p *Publisher) Error(ctx context.Context, message string, err error) {
	event := models.NewEvent(models.EventTypeError, p.fleetID, message).
		WithSeverity(models.SeverityCritical).
		WithData(map[string]any{
			"error": err.Error(),
		})
	p.publish(ctx, event)
}
