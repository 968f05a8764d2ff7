package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/internal/fleet"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var (
	_ FleetManager = (*fleet.SimulatedFleet)(nil)
	_ FleetManager = (*fleet.HTTPFleet)(nil)
	_ FleetManager = (*fleet.KubernetesFleet)(nil)
	_ LoadBalancer = (*fleet.HTTPLoadBalancer)(nil)
	_ LoadBalancer = fleet.NoopLoadBalancer{}
)

type recordingFleet struct {
	mu    sync.Mutex
	calls []int
	err   error
	ctxOK bool
}

func (f *recordingFleet) SetDesiredInstanceCount(ctx context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
	f.ctxOK = ctx.Err() == nil
	return f.err
}

func (f *recordingFleet) CurrentInstanceCount(context.Context) (int, error) { return 0, nil }

type recordingLB struct {
	calls int
	err   error
}

func (lb *recordingLB) RefreshMembers(context.Context) error {
	lb.calls++
	return lb.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*models.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e *models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []models.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

func scaleUp(from, to int) models.ScalingDecision {
	return models.ScalingDecision{
		ID:               "d-1",
		Timestamp:        time.Now(),
		Action:           models.ActionScaleUp,
		CurrentInstances: from,
		TargetInstances:  to,
		Reason:           "predicted load",
		Outcome:          models.OutcomePending,
	}
}

func TestExecute_NoneTouchesNothing(t *testing.T) {
	f, lb, n := &recordingFleet{}, &recordingLB{}, &recordingNotifier{}
	e := New(Config{FleetID: "web"}, f, lb, n)

	outcome, err := e.Execute(context.Background(), models.ScalingDecision{Action: models.ActionNone})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.Empty(t, f.calls)
	assert.Zero(t, lb.calls)
	assert.Empty(t, n.events)
}

func TestExecute_Success(t *testing.T) {
	f, lb, n := &recordingFleet{}, &recordingLB{}, &recordingNotifier{}
	e := New(Config{FleetID: "web"}, f, lb, n)

	outcome, err := e.Execute(context.Background(), scaleUp(4, 8))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.Equal(t, []int{8}, f.calls)
	assert.Equal(t, 1, lb.calls)
	assert.Equal(t, []models.EventType{models.EventTypeScalingStarted, models.EventTypeScalingComplete}, n.types())

	payload, ok := n.events[1].Data.(*models.ScalingEvent)
	require.True(t, ok)
	assert.Equal(t, 8, payload.InstancesAfter)
	assert.Equal(t, models.OutcomeSuccess, payload.Outcome)
}

func TestExecute_FleetFailure(t *testing.T) {
	f := &recordingFleet{err: errors.New("quota exceeded")}
	lb, n := &recordingLB{}, &recordingNotifier{}
	e := New(Config{FleetID: "web"}, f, lb, n)

	outcome, err := e.Execute(context.Background(), scaleUp(4, 8))
	assert.Equal(t, models.OutcomeFailure, outcome)
	assert.ErrorContains(t, err, "quota exceeded")

	assert.Len(t, f.calls, 1, "no retry inside the executor")
	assert.Zero(t, lb.calls, "no refresh after a failed scale")
	require.Equal(t, []models.EventType{models.EventTypeScalingStarted, models.EventTypeScalingFailed}, n.types())
	assert.Equal(t, models.SeverityCritical, n.events[1].Severity)

	payload := n.events[1].Data.(*models.ScalingEvent)
	assert.Equal(t, 4, payload.InstancesAfter)
	assert.NotEmpty(t, payload.Error)
}

func TestExecute_LoadBalancerFailureKeepsSuccess(t *testing.T) {
	f, n := &recordingFleet{}, &recordingNotifier{}
	lb := &recordingLB{err: errors.New("lb api down")}
	e := New(Config{FleetID: "web"}, f, lb, n)

	outcome, err := e.Execute(context.Background(), scaleUp(2, 4))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.Equal(t, 1, lb.calls)
	assert.Contains(t, n.types(), models.EventTypeScalingComplete)
}

func TestExecute_DetachedFromCancellation(t *testing.T) {
	f := &recordingFleet{}
	e := New(Config{}, f, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := e.Execute(ctx, scaleUp(2, 4))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, outcome)
	assert.True(t, f.ctxOK, "fleet call must not see the loop's cancellation")
}

func TestExecute_IdempotentAgainstSimulatedFleet(t *testing.T) {
	ctx := context.Background()
	sim := fleet.NewSimulatedFleet(fleet.SimulatedConfig{FleetID: "web", InitialInstances: 4})
	e := New(Config{FleetID: "web"}, sim, fleet.NoopLoadBalancer{}, nil)

	d := models.ScalingDecision{
		ID:               "d-2",
		Action:           models.ActionScaleDown,
		CurrentInstances: 8,
		TargetInstances:  4,
	}

	for i := 0; i < 2; i++ {
		outcome, err := e.Execute(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeSuccess, outcome)
	}

	assert.Equal(t, 0, sim.Mutations())
	n, err := sim.CurrentInstanceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
