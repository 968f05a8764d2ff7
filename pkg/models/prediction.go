package models

import "time"

// Forecast is the ensemble output for one tick. It is always re-derivable
// from the history buffer and never persisted as authoritative state.
type Forecast struct {
	GeneratedAt   time.Time          `json:"generated_at"`
	Horizon       time.Duration      `json:"horizon"`
	PredictedLoad float64            `json:"predicted_load"`
	Confidence    float64            `json:"confidence"`
	PeakExpected  float64            `json:"peak_expected"`
	PerStrategy   map[string]float64 `json:"per_strategy"`
	Failed        map[string]string  `json:"failed,omitempty"`
	Baseline      bool               `json:"baseline"`
}

// NewBaselineForecast returns the degenerate forecast used when there is not
// enough history or no strategy produced a usable value.
func NewBaselineForecast(lastLoad float64, horizon time.Duration, at time.Time) Forecast {
	return Forecast{
		GeneratedAt:   at,
		Horizon:       horizon,
		PredictedLoad: lastLoad,
		Confidence:    0,
		PeakExpected:  lastLoad,
		PerStrategy:   map[string]float64{},
		Baseline:      true,
	}
}

func (f Forecast) IsHighConfidence(threshold float64) bool {
	return f.Confidence > threshold
}

func (f Forecast) StrategyCount() int {
	return len(f.PerStrategy)
}
