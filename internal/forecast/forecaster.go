package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var (
	ErrStrategyTimeout  = errors.New("strategy timed out")
	ErrStrategyPanic    = errors.New("strategy panicked")
	ErrNonFiniteOutput  = errors.New("strategy produced a non-finite value")
	ErrInsufficientData = errors.New("insufficient data for strategy")
)

// Strategy is one opaque prediction model. series is the time-ordered CPU
// utilization history and horizon is expressed in samples.
type Strategy interface {
	Name() string
	Predict(ctx context.Context, series []float64, horizon int) (float64, error)
}

type Config struct {
	Horizon         time.Duration
	SampleInterval  time.Duration
	MinSamples      int
	StrategyTimeout time.Duration
}

type Forecaster struct {
	config     Config
	strategies atomic.Pointer[[]Strategy]
}

func New(cfg Config, strategies ...Strategy) *Forecaster {
	if cfg.Horizon == 0 {
		cfg.Horizon = 30 * time.Minute
	}
	if cfg.SampleInterval == 0 {
		cfg.SampleInterval = time.Minute
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = 60
	}
	if cfg.StrategyTimeout == 0 {
		cfg.StrategyTimeout = 3 * time.Second
	}

	f := &Forecaster{config: cfg}
	f.SetStrategies(strategies)
	return f
}

// SetStrategies installs a new strategy set. Predictions already running keep
// the set they started with.
func (f *Forecaster) SetStrategies(strategies []Strategy) {
	set := slices.Clone(strategies)
	f.strategies.Store(&set)
}

func (f *Forecaster) Strategies() []Strategy {
	return slices.Clone(*f.strategies.Load())
}

func (f *Forecaster) Horizon() time.Duration {
	return f.config.Horizon
}

type strategyResult struct {
	name  string
	value float64
	err   error
}

// Predict runs every strategy concurrently over the same history and combines
// the surviving outputs. It returns once each strategy has returned or timed
// out. A non-positive horizon selects the configured default.
func (f *Forecaster) Predict(ctx context.Context, history []models.Sample, horizon time.Duration) models.Forecast {
	if horizon <= 0 {
		horizon = f.config.Horizon
	}

	var lastLoad float64
	generatedAt := time.Now()
	if n := len(history); n > 0 {
		lastLoad = history[n-1].CPUUtilization
		generatedAt = history[n-1].Timestamp
	}

	if len(history) < f.config.MinSamples {
		return models.NewBaselineForecast(lastLoad, horizon, generatedAt)
	}

	strategies := *f.strategies.Load()
	if len(strategies) == 0 {
		return models.NewBaselineForecast(lastLoad, horizon, generatedAt)
	}

	series := make([]float64, len(history))
	for i, s := range history {
		series[i] = s.CPUUtilization
	}
	steps := f.horizonSteps(horizon)

	results := make([]strategyResult, len(strategies))
	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.runStrategy(ctx, s, slices.Clone(series), steps)
		}()
	}
	wg.Wait()

	perStrategy := make(map[string]float64, len(results))
	failed := make(map[string]string)
	outputs := make([]float64, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			failed[r.name] = r.err.Error()
			logger.WithComponent("forecast").Warnf("Strategy %s excluded: %v", r.name, r.err)
			continue
		}
		// PerStrategy keeps the raw output; only the combined values are bounded.
		perStrategy[r.name] = r.value
		outputs = append(outputs, clampLoad(r.value))
	}

	if len(outputs) == 0 {
		fc := models.NewBaselineForecast(lastLoad, horizon, generatedAt)
		fc.Failed = failed
		return fc
	}

	mean, peak, confidence := combine(outputs)
	fc := models.Forecast{
		GeneratedAt:   generatedAt,
		Horizon:       horizon,
		PredictedLoad: mean,
		Confidence:    confidence,
		PeakExpected:  peak,
		PerStrategy:   perStrategy,
	}
	if len(failed) > 0 {
		fc.Failed = failed
	}
	return fc
}

func (f *Forecaster) horizonSteps(horizon time.Duration) int {
	steps := int(math.Ceil(float64(horizon) / float64(f.config.SampleInterval)))
	return max(steps, 1)
}

// runStrategy bounds one strategy by the per-strategy timeout. A strategy that
// ignores its context is abandoned; its goroutine finishes into a buffered
// channel nobody reads.
func (f *Forecaster) runStrategy(ctx context.Context, s Strategy, series []float64, horizon int) strategyResult {
	name := s.Name()
	sctx, cancel := context.WithTimeout(ctx, f.config.StrategyTimeout)
	defer cancel()

	done := make(chan strategyResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- strategyResult{name: name, err: fmt.Errorf("%w: %v", ErrStrategyPanic, r)}
			}
		}()
		v, err := s.Predict(sctx, series, horizon)
		done <- strategyResult{name: name, value: v, err: err}
	}()

	timedOut := func() strategyResult {
		if ctx.Err() != nil {
			return strategyResult{name: name, err: ctx.Err()}
		}
		return strategyResult{name: name, err: fmt.Errorf("%w after %s", ErrStrategyTimeout, f.config.StrategyTimeout)}
	}

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) && sctx.Err() != nil {
			return timedOut()
		}
		if r.err != nil {
			return r
		}
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
			return strategyResult{name: name, err: ErrNonFiniteOutput}
		}
		return r
	case <-sctx.Done():
		return timedOut()
	}
}

// combine returns the mean, the maximum and the agreement-based confidence
// clamp(1 - stddev/mean(|o|), 0, 1) of the outputs, using the population
// standard deviation.
func combine(outputs []float64) (mean, peak, confidence float64) {
	n := float64(len(outputs))
	peak = math.Inf(-1)
	var sum, sumAbs float64
	for _, o := range outputs {
		sum += o
		sumAbs += math.Abs(o)
		peak = math.Max(peak, o)
	}
	mean = sum / n
	meanAbs := sumAbs / n

	var sq float64
	for _, o := range outputs {
		sq += (o - mean) * (o - mean)
	}
	stddev := math.Sqrt(sq / n)

	if meanAbs == 0 {
		return mean, peak, 0
	}
	return mean, peak, math.Min(math.Max(1-stddev/meanAbs, 0), 1)
}

func clampLoad(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
