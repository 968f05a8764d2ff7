// Package executor is the only code path that changes fleet size.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type FleetManager interface {
	// SetDesiredInstanceCount converges the fleet to n. Requesting the
	// current size must succeed without side effects.
	SetDesiredInstanceCount(ctx context.Context, n int) error
	CurrentInstanceCount(ctx context.Context) (int, error)
}

type LoadBalancer interface {
	RefreshMembers(ctx context.Context) error
}

// Notifier delivers events without blocking the caller for long; delivery
// failures are the notifier's to log.
type Notifier interface {
	Notify(ctx context.Context, event *models.Event)
}

type Config struct {
	FleetID string
	// Timeout bounds the fleet call and the load balancer refresh.
	Timeout time.Duration
}

type Executor struct {
	config   Config
	fleet    FleetManager
	lb       LoadBalancer
	notifier Notifier
}

func New(cfg Config, fleet FleetManager, lb LoadBalancer, notifier Notifier) *Executor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Executor{
		config:   cfg,
		fleet:    fleet,
		lb:       lb,
		notifier: notifier,
	}
}

// Execute applies an actionable decision. A none decision succeeds without
// touching any collaborator. A fleet error is a failure and is not retried
// here. A load balancer error after a successful fleet change is logged and
// the outcome stays success.
//
// The collaborator calls are detached from ctx cancellation: once issued, a
// fleet mutation runs to completion or to its own timeout.
func (e *Executor) Execute(ctx context.Context, decision models.ScalingDecision) (models.Outcome, error) {
	if !decision.IsActionable() {
		return models.OutcomeSuccess, nil
	}

	log := logger.WithFleet(e.config.FleetID).WithField("decision_id", decision.ID)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.Timeout)
	defer cancel()

	e.notify(callCtx, models.EventTypeScalingStarted,
		fmt.Sprintf("%s %d -> %d", decision.Action, decision.CurrentInstances, decision.TargetInstances),
		decision, models.OutcomePending, nil)

	log.Infof("Executing %s: %d -> %d instances (%s)",
		decision.Action, decision.CurrentInstances, decision.TargetInstances, decision.Reason)

	start := time.Now()
	if err := e.fleet.SetDesiredInstanceCount(callCtx, decision.TargetInstances); err != nil {
		err = fmt.Errorf("set desired instance count to %d: %w", decision.TargetInstances, err)
		log.Errorf("Scaling failed: %v", err)
		e.notify(callCtx, models.EventTypeScalingFailed, err.Error(), decision, models.OutcomeFailure, err)
		return models.OutcomeFailure, err
	}

	if e.lb != nil {
		if err := e.lb.RefreshMembers(callCtx); err != nil {
			log.Warnf("Load balancer refresh failed after scaling: %v", err)
		}
	}

	log.Infof("Scaling complete in %s", time.Since(start).Round(time.Millisecond))
	e.notify(callCtx, models.EventTypeScalingComplete,
		fmt.Sprintf("fleet scaled to %d instances", decision.TargetInstances),
		decision, models.OutcomeSuccess, nil)
	return models.OutcomeSuccess, nil
}

func (e *Executor) notify(ctx context.Context, eventType models.EventType, msg string, decision models.ScalingDecision, outcome models.Outcome, err error) {
	if e.notifier == nil {
		return
	}

	event := models.NewEvent(eventType, e.config.FleetID, msg).
		WithData(models.NewScalingEvent(e.config.FleetID, decision, outcome, err)).
		WithTraceID(logger.TraceIDFromContext(ctx))
	if eventType == models.EventTypeScalingFailed {
		event.WithSeverity(models.SeverityCritical)
	}
	e.notifier.Notify(ctx, event)
}
