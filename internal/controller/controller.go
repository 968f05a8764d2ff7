// Package controller runs the autoscaling control loop: collect a sample,
// forecast, decide, execute and learn, once per tick.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/events"
	"github.com/OldStager01/predictive-autoscaler/internal/history"
	"github.com/OldStager01/predictive-autoscaler/internal/learner"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/metrics"
	"github.com/OldStager01/predictive-autoscaler/internal/policy"
	"github.com/OldStager01/predictive-autoscaler/internal/resilience"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

const ReasonBackoff = "backoff"

type Forecaster interface {
	Predict(ctx context.Context, history []models.Sample, horizon time.Duration) models.Forecast
	Horizon() time.Duration
}

type ThresholdLoader interface {
	Load() models.PolicyThresholds
}

type Executor interface {
	Execute(ctx context.Context, decision models.ScalingDecision) (models.Outcome, error)
}

type Ledger interface {
	Record(ctx context.Context, d *models.ScalingDecision) error
	Finalize(ctx context.Context, id string, outcome models.Outcome, errMsg string) error
}

type Learner interface {
	Observe(ctx context.Context, tick uint64) learner.Report
}

type Config struct {
	FleetID        string
	Interval       time.Duration
	CollectTimeout time.Duration
	Now            func() time.Time
}

type Dependencies struct {
	Collector  collector.Collector
	Buffer     *history.Buffer
	Forecaster Forecaster
	Thresholds ThresholdLoader
	Schedule   *policy.Schedule
	Executor   Executor
	Ledger     Ledger
	Learner    Learner
	Backoff    *resilience.Backoff
	Publisher  *events.Publisher
	Metrics    *metrics.Metrics
}

type Controller struct {
	config Config
	deps   Dependencies

	ticks   atomic.Uint64
	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

func New(cfg Config, deps Dependencies) *Controller {
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.CollectTimeout == 0 {
		cfg.CollectTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Buffer == nil {
		deps.Buffer = history.New(history.DefaultCapacity)
	}
	if deps.Backoff == nil {
		deps.Backoff = resilience.NewBackoff(resilience.BackoffConfig{})
	}

	return &Controller{
		config: cfg,
		deps:   deps,
		status: Status{FleetID: cfg.FleetID},
	}
}

// Run ticks immediately and then on every Interval until ctx is cancelled.
// Ticks never overlap. It returns ctx.Err() and nothing else.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer c.running.Store(false)

	log := logger.WithFleet(c.config.FleetID)
	log.Infof("Control loop started (interval %s)", c.config.Interval)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	c.safeTick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Control loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			c.safeTick(ctx)
		}
	}
}

// safeTick keeps a panicking collaborator from ending the loop.
func (c *Controller) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick panicked: %v", r)
			logger.WithFleet(c.config.FleetID).Errorf("%v", err)
			c.deps.Publisher.Error(ctx, "control loop tick panicked", err)
		}
	}()
	c.Tick(ctx)
}

// Tick runs one pass of the loop and reports what happened.
func (c *Controller) Tick(ctx context.Context) (res TickResult) {
	tick := c.ticks.Add(1)
	start := c.config.Now()
	res = TickResult{Tick: tick, StartedAt: start, Result: ResultOK}

	log := logger.WithFleet(c.config.FleetID).WithField("tick", tick)
	defer func() {
		res.Duration = c.config.Now().Sub(start)
		c.deps.Metrics.ObserveTick(string(res.Result), res.Duration)
		c.record(res)
		c.deps.Publisher.TickCompleted(ctx, res)
	}()

	sample, err := c.collect(ctx)
	if err != nil {
		log.Errorf("Collection failed, tick stalled: %v", err)
		c.deps.Metrics.IncCollectionErrors()
		c.deps.Publisher.Error(ctx, "metric collection failed", err)
		return res.fail(ResultStalled, err)
	}
	if err := sample.Validate(); err != nil {
		log.Warnf("Rejected sample: %v", err)
		return res.fail(ResultRejected, err)
	}
	if err := c.deps.Buffer.Append(sample); err != nil {
		log.Warnf("Rejected sample: %v", err)
		return res.fail(ResultRejected, err)
	}
	res.Sample = &sample
	c.deps.Metrics.ObserveSample(sample)
	c.deps.Publisher.SampleCollected(ctx, sample)

	if ctx.Err() != nil {
		return res.fail(ResultCancelled, ctx.Err())
	}

	forecast := c.deps.Forecaster.Predict(ctx, c.deps.Buffer.Snapshot(), c.deps.Forecaster.Horizon())
	res.Forecast = &forecast
	c.deps.Metrics.ObserveForecast(forecast)
	c.deps.Publisher.ForecastMade(ctx, forecast)

	if ctx.Err() != nil {
		return res.fail(ResultCancelled, ctx.Err())
	}

	thresholds := c.deps.Thresholds.Load()
	decision := policy.Decide(sample.Timestamp, sample, forecast, thresholds, c.deps.Schedule)

	if decision.IsActionable() && !c.deps.Backoff.Allow(tick) {
		log.Infof("Suppressing %s (%s): backing off for %d more ticks",
			decision.Action, decision.Reason, c.deps.Backoff.Remaining(tick))
		decision.Action = models.ActionNone
		decision.TargetInstances = decision.CurrentInstances
		decision.Reason = ReasonBackoff
		decision.Rule = models.RuleBackoff
		res.Suppressed = true
	}

	if err := c.deps.Ledger.Record(ctx, &decision); err != nil {
		log.Errorf("Ledger rejected decision: %v", err)
		c.deps.Publisher.Error(ctx, "ledger rejected decision", err)
		return res.fail(ResultRejected, err)
	}
	res.Decision = &decision
	c.deps.Metrics.IncDecision(decision)
	c.deps.Publisher.DecisionMade(ctx, decision)

	outcome, execErr := models.OutcomeSuccess, error(nil)
	if decision.IsActionable() {
		outcome, execErr = c.deps.Executor.Execute(ctx, decision)
		res.Executed = true
		c.deps.Metrics.IncExecution(decision.Action, outcome)
		if outcome == models.OutcomeFailure {
			c.deps.Backoff.Failure(tick)
		} else {
			c.deps.Backoff.Success()
		}
	}

	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	}
	if err := c.deps.Ledger.Finalize(ctx, decision.ID, outcome, errMsg); err != nil {
		log.Errorf("Failed to finalize decision %s: %v", decision.ID, err)
	}
	decision.Outcome = outcome
	decision.Error = errMsg
	res.Outcome = outcome

	if execErr != nil {
		res.fail(ResultExecutionFailed, execErr)
	}

	if ctx.Err() != nil {
		return res
	}
	if c.deps.Learner != nil {
		res.Learner = c.deps.Learner.Observe(ctx, tick)
	}

	log.Debugf("Tick done: cpu=%.1f%% predicted=%.1f%% confidence=%.2f action=%s",
		sample.CPUUtilization, forecast.PredictedLoad, forecast.Confidence, decision.Action)
	return res
}

func (c *Controller) collect(ctx context.Context) (models.Sample, error) {
	cctx, cancel := context.WithTimeout(ctx, c.config.CollectTimeout)
	defer cancel()
	return c.deps.Collector.GetCurrentSample(cctx)
}

// Ticks is the number of ticks started so far.
func (c *Controller) Ticks() uint64 {
	return c.ticks.Load()
}

func (c *Controller) Running() bool {
	return c.running.Load()
}

func (c *Controller) Buffer() *history.Buffer {
	return c.deps.Buffer
}
