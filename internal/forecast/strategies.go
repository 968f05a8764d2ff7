package forecast

import (
	"context"
	"fmt"
)

// trailing returns at most the last n values of series.
func trailing(series []float64, n int) []float64 {
	if n <= 0 || n >= len(series) {
		return series
	}
	return series[len(series)-n:]
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// LinearTrend fits a least-squares line over the trailing window and
// extrapolates it horizon steps past the last sample.
type LinearTrend struct {
	Window int
}

func (LinearTrend) Name() string { return "linear" }

func (s LinearTrend) Predict(ctx context.Context, series []float64, horizon int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w := trailing(series, s.Window)
	n := len(w)
	if n < 2 {
		return 0, fmt.Errorf("%w: linear needs 2 samples, have %d", ErrInsufficientData, n)
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range w {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	return intercept + slope*float64(n-1+horizon), nil
}

// Holt is double exponential smoothing: a smoothed level plus a smoothed
// trend projected horizon steps ahead.
type Holt struct {
	Alpha float64
	Beta  float64
}

func (Holt) Name() string { return "holt" }

func (s Holt) Predict(ctx context.Context, series []float64, horizon int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(series) < 2 {
		return 0, fmt.Errorf("%w: holt needs 2 samples, have %d", ErrInsufficientData, len(series))
	}

	alpha, beta := s.Alpha, s.Beta
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	if beta <= 0 || beta > 1 {
		beta = 0.3
	}

	level := series[0]
	trend := series[1] - series[0]
	for _, y := range series[1:] {
		prevLevel := level
		level = alpha*y + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}

	return level + float64(horizon)*trend, nil
}

// MovingAverage predicts the mean of the trailing window.
type MovingAverage struct {
	Window int
}

func (MovingAverage) Name() string { return "moving_average" }

func (s MovingAverage) Predict(ctx context.Context, series []float64, _ int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(series) == 0 {
		return 0, fmt.Errorf("%w: moving_average has no samples", ErrInsufficientData)
	}
	window := s.Window
	if window <= 0 {
		window = 15
	}
	return average(trailing(series, window)), nil
}

// SeasonalNaive predicts the value observed whole seasons before the target
// point, averaged over every season available in the series.
type SeasonalNaive struct {
	Season int
}

func (SeasonalNaive) Name() string { return "seasonal" }

func (s SeasonalNaive) Predict(ctx context.Context, series []float64, horizon int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	season := s.Season
	if season <= 0 {
		season = 60
	}
	n := len(series)
	if n < season {
		return 0, fmt.Errorf("%w: seasonal needs %d samples, have %d", ErrInsufficientData, season, n)
	}

	target := n - 1 + horizon
	var matches []float64
	for idx := target - season; idx >= 0; idx -= season {
		if idx < n {
			matches = append(matches, series[idx])
		}
	}
	return average(matches), nil
}

// HalfWindowTrend compares the averages of the older and newer halves of the
// trailing window and extends the implied slope to the target point.
type HalfWindowTrend struct {
	Window int
}

func (HalfWindowTrend) Name() string { return "trend" }

func (s HalfWindowTrend) Predict(ctx context.Context, series []float64, horizon int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	window := s.Window
	if window <= 0 {
		window = 30
	}
	recent := trailing(series, window)
	n := len(recent)
	if n < 3 {
		return 0, fmt.Errorf("%w: trend needs 3 samples, have %d", ErrInsufficientData, n)
	}

	half := n / 2
	firstAvg := average(recent[:half])
	secondAvg := average(recent[half:])

	firstCenter := float64(half-1) / 2
	secondCenter := float64(half) + float64(n-half-1)/2
	slope := (secondAvg - firstAvg) / (secondCenter - firstCenter)

	return secondAvg + slope*(float64(n-1)-secondCenter+float64(horizon)), nil
}
