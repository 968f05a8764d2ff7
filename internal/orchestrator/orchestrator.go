// Package orchestrator assembles the control loop and its collaborators from
// configuration and owns their lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/controller"
	"github.com/OldStager01/predictive-autoscaler/internal/events"
	"github.com/OldStager01/predictive-autoscaler/internal/executor"
	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/internal/history"
	"github.com/OldStager01/predictive-autoscaler/internal/learner"
	"github.com/OldStager01/predictive-autoscaler/internal/ledger"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/metrics"
	"github.com/OldStager01/predictive-autoscaler/internal/notify"
	"github.com/OldStager01/predictive-autoscaler/internal/policy"
	"github.com/OldStager01/predictive-autoscaler/internal/resilience"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/database"
	"github.com/OldStager01/predictive-autoscaler/pkg/database/queries"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var ErrAlreadyStarted = errors.New("orchestrator already started")

// Options replaces components that would otherwise be built from config.
type Options struct {
	DB           *database.DB
	Collector    collector.Collector
	Fleet        executor.FleetManager
	LoadBalancer executor.LoadBalancer
	Metrics      *metrics.Metrics
	Now          func() time.Time
}

type Orchestrator struct {
	config *config.Config
	db     *database.DB

	eventBus    *events.EventBus
	eventLogger *events.EventLogger
	publisher   *events.Publisher
	metrics     *metrics.Metrics

	collector  collector.Collector
	fleet      executor.FleetManager
	buffer     *history.Buffer
	forecaster *forecast.Forecaster
	registry   *forecast.Registry
	thresholds *policy.ThresholdStore
	schedule   *policy.Schedule
	ledger     *ledger.Ledger
	learner    *learner.Learner
	controller *controller.Controller

	closers []func() error

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds every component. On error, whatever was already opened is
// closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (o *Orchestrator, err error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	fleetID := cfg.Controller.FleetID

	o = &Orchestrator{
		config:   cfg,
		db:       opts.DB,
		eventBus: events.NewEventBus(cfg.Notifier.BusBuffer),
		metrics:  m,
	}
	defer func() {
		if err != nil {
			o.close()
		}
	}()

	redisNotifier, closeRedis, err := buildRedis(cfg)
	if err != nil {
		return nil, err
	}
	if closeRedis != nil {
		o.closers = append(o.closers, closeRedis)
	}
	sink := notify.Multi{o.eventBus, redisNotifier}
	o.publisher = events.NewPublisher(sink, fleetID)

	o.fleet = opts.Fleet
	if o.fleet == nil {
		if o.fleet, err = buildFleet(cfg, now); err != nil {
			return nil, fmt.Errorf("failed to build fleet manager: %w", err)
		}
	}
	lb := opts.LoadBalancer
	if lb == nil {
		lb = buildLoadBalancer(cfg)
	}

	o.collector = opts.Collector
	if o.collector == nil {
		if o.collector, err = buildCollector(cfg, o.fleet, m, now); err != nil {
			return nil, fmt.Errorf("failed to build collector: %w", err)
		}
	}
	o.closers = append(o.closers, o.collector.Close)

	if o.forecaster, o.registry, err = buildForecaster(cfg); err != nil {
		return nil, fmt.Errorf("failed to build forecaster: %w", err)
	}

	if o.thresholds, err = policy.NewThresholdStore(cfg.Policy.Thresholds); err != nil {
		return nil, err
	}
	m.SetThresholds(o.thresholds.Load())
	o.thresholds.OnChange(func(previous, current models.PolicyThresholds, version uint64) {
		logger.WithFleet(fleetID).Infof("Thresholds updated to version %d: %+v", version, current)
		m.SetThresholds(current)
		o.publisher.ThresholdsUpdated(context.Background(), previous, current, version)
	})

	if o.schedule, err = cfg.Policy.Schedule.Build(); err != nil {
		return nil, fmt.Errorf("invalid peak schedule: %w", err)
	}

	store, db, err := buildLedgerStore(cfg, o.db)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger store: %w", err)
	}
	if db != nil && db != opts.DB {
		o.closers = append(o.closers, db.Close)
	}
	o.db = db

	ledgerCtx, cancel := loadCtx(ctx, cfg.Database.PingTimeout)
	o.ledger = ledger.New(ledgerCtx, ledger.Config{FleetID: fleetID, Store: store, Now: now})
	cancel()

	var recorder events.ScalingEventRecorder
	if o.db != nil {
		recorder = queries.NewScalingEventRepository(o.db.DB)
	}
	o.eventLogger = events.NewEventLogger(recorder, o.eventBus.SubscribeAll())

	o.buffer = history.New(cfg.History.Capacity)

	o.learner = learner.New(learner.Config{
		FleetID:        fleetID,
		EveryTicks:     cfg.Learner.EveryTicks,
		FailureRatio:   cfg.Learner.FailureRatio,
		MinSamples:     cfg.Learner.MinSamples,
		Step:           cfg.Learner.Step,
		ConfidenceStep: cfg.Learner.ConfidenceStep,
		RetrainAfter:   cfg.Learner.RetrainAfter,
		RetrainTimeout: cfg.Learner.RetrainTimeout,
	}, learner.Dependencies{
		Ledger:     o.ledger,
		Thresholds: o.thresholds,
		Forecaster: o.forecaster,
		Retrainer:  buildRetrainer(cfg, o.registry),
		Publisher:  o.publisher,
		Metrics:    m,
	})

	exec := executor.New(executor.Config{
		FleetID: fleetID,
		Timeout: cfg.Controller.ExecuteTimeout,
	}, o.fleet, lb, sink)

	o.controller = controller.New(controller.Config{
		FleetID:        fleetID,
		Interval:       cfg.Controller.Interval,
		CollectTimeout: cfg.Controller.CollectTimeout,
		Now:            now,
	}, controller.Dependencies{
		Collector:  o.collector,
		Buffer:     o.buffer,
		Forecaster: o.forecaster,
		Thresholds: o.thresholds,
		Schedule:   o.schedule,
		Executor:   exec,
		Ledger:     o.ledger,
		Learner:    o.learner,
		Backoff: resilience.NewBackoff(resilience.BackoffConfig{
			BaseTicks:  cfg.Retry.BaseTicks,
			MaxTicks:   cfg.Retry.MaxTicks,
			Multiplier: cfg.Retry.Multiplier,
		}),
		Publisher: o.publisher,
		Metrics:   m,
	})

	return o, nil
}

// Start launches the event logger and the control loop.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true

	log := logger.WithFleet(o.config.Controller.FleetID)
	log.Info("Orchestrator starting")
	o.eventLogger.Start()

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	go func() {
		defer close(o.done)
		_ = o.controller.Run(ctx)
	}()
	return nil
}

// Stop cancels the loop, waits for the running tick and any retrain, and
// releases every store and client.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	log := logger.WithFleet(o.config.Controller.FleetID)
	log.Info("Orchestrator stopping")

	if o.started {
		o.cancel()
		<-o.done
		o.learner.Wait()
		o.eventLogger.Stop()
		o.started = false
	}
	o.close()

	log.Info("Orchestrator stopped")
}

func (o *Orchestrator) close() {
	if o.ledger != nil {
		if err := o.ledger.Close(); err != nil {
			logger.Warnf("Failed to close ledger: %v", err)
		}
		o.ledger = nil
	}
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil {
			logger.Warnf("Failed to close component: %v", err)
		}
	}
	o.closers = nil
	o.eventBus.Close()
}

// Ready reports whether the loop is running and the collector is reachable.
func (o *Orchestrator) Ready(ctx context.Context) error {
	if !o.controller.Running() {
		return errors.New("control loop not running")
	}
	return o.collector.HealthCheck(ctx)
}

func (o *Orchestrator) Config() *config.Config { return o.config }
func (o *Orchestrator) DB() *database.DB { return o.db }
func (o *Orchestrator) EventBus() *events.EventBus { return o.eventBus }
func (o *Orchestrator) Metrics() *metrics.Metrics { return o.metrics }
func (o *Orchestrator) Buffer() *history.Buffer { return o.buffer }
func (o *Orchestrator) Forecaster() *forecast.Forecaster { return o.forecaster }
func (o *Orchestrator) Thresholds() *policy.ThresholdStore { return o.thresholds }
func (o *Orchestrator) Ledger() *ledger.Ledger { return o.ledger }
func (o *Orchestrator) Controller() *controller.Controller { return o.controller }
func (o *Orchestrator) Fleet() executor.FleetManager { return o.fleet }
func (o *Orchestrator) Collector() collector.Collector { return o.collector }
