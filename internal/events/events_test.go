package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	decisions := bus.Subscribe(models.EventTypeDecisionMade)
	all := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, "web", "decided"))
	bus.Publish(models.NewEvent(models.EventTypeError, "web", "oops"))

	got := <-decisions
	assert.Equal(t, models.EventTypeDecisionMade, got.Type)
	assert.Len(t, decisions, 0)

	assert.Equal(t, models.EventTypeDecisionMade, (<-all).Type)
	assert.Equal(t, models.EventTypeError, (<-all).Type)
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()
	_ = bus.Subscribe(models.EventTypeError)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			bus.Notify(context.Background(), models.NewEvent(models.EventTypeError, "web", "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, uint64(4), bus.Dropped())
}

func TestEventBus_CloseClosesChannelsOnce(t *testing.T) {
	bus := NewEventBus(1)
	a := bus.Subscribe(models.EventTypeError)
	all := bus.SubscribeAll()

	bus.Close()
	bus.Close()

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-all
	assert.False(t, ok)

	bus.Publish(models.NewEvent(models.EventTypeError, "web", "after close"))
}

type sinkFunc func(context.Context, *models.Event)

func (f sinkFunc) Notify(ctx context.Context, e *models.Event) { f(ctx, e) }

func TestPublisher(t *testing.T) {
	var got []*models.Event
	p := NewPublisher(sinkFunc(func(_ context.Context, e *models.Event) { got = append(got, e) }), "web").
		WithTraceID("trace-1")
	ctx := context.Background()

	p.SampleCollected(ctx, models.Sample{CPUUtilization: 42, InstanceCount: 3})
	p.ForecastMade(ctx, models.Forecast{PredictedLoad: 50, Failed: map[string]string{"holt": "timeout"}})
	p.ThresholdsUpdated(ctx, models.DefaultThresholds(), models.DefaultThresholds(), 2)
	p.Error(ctx, "collect failed", errors.New("refused"))

	require.Len(t, got, 4)
	for _, e := range got {
		assert.Equal(t, "web", e.FleetID)
		assert.Equal(t, "trace-1", e.TraceID)
	}
	assert.Equal(t, "cpu=42.0% instances=3", got[0].Message)
	assert.Equal(t, models.SeverityWarning, got[1].Severity)
	assert.Equal(t, models.SeverityCritical, got[3].Severity)
}

func TestPublisher_NilIsSafe(t *testing.T) {
	var p *Publisher
	p.Error(context.Background(), "ignored", errors.New("x"))
	NewPublisher(nil, "web").DecisionMade(context.Background(), models.ScalingDecision{})
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []*models.ScalingEvent
}

func (r *memoryRecorder) RecordScalingEvent(_ context.Context, e *models.ScalingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memoryRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestEventLogger_PersistsScalingOutcomes(t *testing.T) {
	bus := NewEventBus(10)
	recorder := &memoryRecorder{}
	l := NewEventLogger(recorder, bus.SubscribeAll())
	l.Start()

	decision := models.ScalingDecision{ID: "d1", Action: models.ActionScaleUp, CurrentInstances: 2, TargetInstances: 4}
	bus.Publish(models.NewEvent(models.EventTypeScalingComplete, "web", "ok").
		WithData(models.NewScalingEvent("web", decision, models.OutcomeSuccess, nil)))
	bus.Publish(models.NewEvent(models.EventTypeDecisionMade, "web", "not persisted"))
	bus.Publish(models.NewEvent(models.EventTypeScalingFailed, "web", "failed").
		WithData(models.NewScalingEvent("web", decision, models.OutcomeFailure, errors.New("quota"))))

	assert.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, 5*time.Millisecond)
	l.Stop()
	bus.Close()
}
