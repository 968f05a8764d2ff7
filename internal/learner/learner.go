package learner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/events"
	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/metrics"
	"github.com/OldStager01/predictive-autoscaler/internal/policy"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// DecisionSource is the read side of the decision ledger.
type DecisionSource interface {
	Since(from int) []models.ScalingDecision
}

// ThresholdSwapper hands out versioned snapshots and installs a widened set
// only if no other writer got in first.
type ThresholdSwapper interface {
	Snapshot() (models.PolicyThresholds, uint64)
	CompareAndSwap(version uint64, next models.PolicyThresholds) error
}

type StrategyInstaller interface {
	SetStrategies(strategies []forecast.Strategy)
}

// Retrainer builds a new strategy set from successful decisions. A nil set
// with a nil error keeps the current strategies.
type Retrainer interface {
	Retrain(ctx context.Context, successful []models.ScalingDecision) ([]forecast.Strategy, error)
}

// Config zero values fall back to defaults in New, except FailureRatio, which
// is used as given: zero widens on any failure.
type Config struct {
	FleetID        string
	EveryTicks     uint64
	FailureRatio   float64
	MinSamples     int
	Step           float64
	ConfidenceStep float64
	RetrainAfter   int
	RetrainTimeout time.Duration
}

// Report describes one learner pass.
type Report struct {
	Ran              bool `json:"ran"`
	Successes        int  `json:"successes"`
	Failures         int  `json:"failures"`
	Widened          bool `json:"widened"`
	Rejected         bool `json:"rejected"`
	Conflicted       bool `json:"conflicted"`
	RetrainTriggered bool `json:"retrain_triggered"`
}

type Learner struct {
	config     Config
	ledger     DecisionSource
	thresholds ThresholdSwapper
	forecaster StrategyInstaller
	retrainer  Retrainer
	publisher  *events.Publisher
	metrics    *metrics.Metrics

	cursor     int
	successful []models.ScalingDecision
	retraining atomic.Bool
	wg         sync.WaitGroup
}

type Dependencies struct {
	Ledger     DecisionSource
	Thresholds ThresholdSwapper
	Forecaster StrategyInstaller
	Retrainer  Retrainer
	Publisher  *events.Publisher
	Metrics    *metrics.Metrics
}

func New(cfg Config, deps Dependencies) *Learner {
	if cfg.EveryTicks == 0 {
		cfg.EveryTicks = 10
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 3
	}
	if cfg.Step == 0 {
		cfg.Step = 5
	}
	if cfg.ConfidenceStep == 0 {
		cfg.ConfidenceStep = 0.05
	}
	if cfg.RetrainAfter == 0 {
		cfg.RetrainAfter = 100
	}
	if cfg.RetrainTimeout == 0 {
		cfg.RetrainTimeout = 5 * time.Minute
	}
	if deps.Retrainer == nil {
		deps.Retrainer = NoopRetrainer{}
	}

	return &Learner{
		config:     cfg,
		ledger:     deps.Ledger,
		thresholds: deps.Thresholds,
		forecaster: deps.Forecaster,
		retrainer:  deps.Retrainer,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
	}
}

// Observe runs a learning pass on every EveryTicks-th tick. It only reads
// ledger entries finalized since the previous pass.
func (l *Learner) Observe(ctx context.Context, tick uint64) Report {
	if tick == 0 || tick%l.config.EveryTicks != 0 {
		return Report{}
	}

	report := Report{Ran: true}
	var upFailed, downFailed bool

	entries := l.ledger.Since(l.cursor)
	consumed := 0
	for _, d := range entries {
		if !d.Outcome.IsFinal() {
			break
		}
		consumed++
		if !d.IsActionable() {
			continue
		}
		switch d.Outcome {
		case models.OutcomeSuccess:
			report.Successes++
			l.successful = append(l.successful, d)
		case models.OutcomeFailure:
			report.Failures++
			upFailed = upFailed || d.Action == models.ActionScaleUp
			downFailed = downFailed || d.Action == models.ActionScaleDown
		}
	}
	l.cursor += consumed

	log := logger.WithFleet(l.config.FleetID).WithField("component", "learner")

	total := report.Successes + report.Failures
	if total >= l.config.MinSamples {
		ratio := float64(report.Failures) / float64(total)
		if ratio > l.config.FailureRatio {
			current, version := l.thresholds.Snapshot()
			next := current.Widen(upFailed, downFailed, l.config.Step, l.config.ConfidenceStep)
			if next != current {
				err := l.thresholds.CompareAndSwap(version, next)
				switch {
				case errors.Is(err, policy.ErrStaleThresholds):
					report.Conflicted = true
					log.Warnf("Skipping threshold widening, thresholds were replaced during the pass: %v", err)
				case err != nil:
					report.Rejected = true
					log.Warnf("Threshold widening rejected, keeping previous thresholds: %v", err)
					l.publisher.Error(ctx, "threshold widening rejected", err)
				default:
					report.Widened = true
					log.Infof("Widened thresholds after failure ratio %.2f (up=%v down=%v)",
						ratio, upFailed, downFailed)
				}
			}
		}
	}

	if len(l.successful) > l.config.RetrainAfter {
		if l.startRetrain(ctx, l.successful) {
			report.RetrainTriggered = true
			l.successful = nil
		}
	}

	log.Debugf("Learner pass: successes=%d failures=%d widened=%v", report.Successes, report.Failures, report.Widened)
	return report
}

// PendingSuccesses is the number of successful decisions since the last
// retraining was triggered.
func (l *Learner) PendingSuccesses() int {
	return len(l.successful)
}

func (l *Learner) startRetrain(ctx context.Context, batch []models.ScalingDecision) bool {
	if !l.retraining.CompareAndSwap(false, true) {
		return false
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.retraining.Store(false)

		log := logger.WithFleet(l.config.FleetID).WithField("component", "learner")
		rctx, cancel := context.WithTimeout(ctx, l.config.RetrainTimeout)
		defer cancel()

		l.publisher.RetrainStarted(rctx, len(batch))
		strategies, err := l.retrainer.Retrain(rctx, batch)
		if err != nil {
			log.Warnf("Retraining failed: %v", err)
			l.metrics.IncRetrain("failure")
			l.publisher.RetrainFailed(rctx, err)
			return
		}
		if len(strategies) == 0 {
			l.metrics.IncRetrain("unchanged")
			l.publisher.RetrainComplete(rctx, nil)
			return
		}

		l.forecaster.SetStrategies(strategies)
		names := make([]string, len(strategies))
		for i, s := range strategies {
			names[i] = s.Name()
		}
		log.Infof("Installed retrained strategies: %v", names)
		l.metrics.IncRetrain("success")
		l.publisher.RetrainComplete(rctx, names)
	}()
	return true
}

// Retraining reports whether a retraining call is in flight.
func (l *Learner) Retraining() bool {
	return l.retraining.Load()
}

// Wait blocks until any in-flight retraining finishes.
func (l *Learner) Wait() {
	l.wg.Wait()
}
