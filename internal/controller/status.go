package controller

import (
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/learner"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type Result string

const (
	ResultOK              Result = "ok"
	ResultStalled         Result = "stalled"
	ResultRejected        Result = "rejected"
	ResultCancelled       Result = "cancelled"
	ResultExecutionFailed Result = "execution_failed"
)

// TickResult is the outcome of one Tick.
type TickResult struct {
	Tick       uint64                  `json:"tick"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
	Result     Result                  `json:"result"`
	Err        error                   `json:"-"`
	Error      string                  `json:"error,omitempty"`
	Sample     *models.Sample          `json:"sample,omitempty"`
	Forecast   *models.Forecast        `json:"forecast,omitempty"`
	Decision   *models.ScalingDecision `json:"decision,omitempty"`
	Suppressed bool                    `json:"suppressed"`
	Executed   bool                    `json:"executed"`
	Outcome    models.Outcome          `json:"outcome,omitempty"`
	Learner    learner.Report          `json:"learner"`
}

func (r *TickResult) fail(result Result, err error) TickResult {
	r.Result = result
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return *r
}

// Stalled reports whether the tick stopped because no sample was available.
func (r TickResult) Stalled() bool {
	return r.Result == ResultStalled
}

// Status is a point-in-time view of the loop for the API.
type Status struct {
	FleetID             string                  `json:"fleet_id"`
	Running             bool                    `json:"running"`
	Ticks               uint64                  `json:"ticks"`
	StalledTicks        uint64                  `json:"stalled_ticks"`
	LastTickAt          time.Time               `json:"last_tick_at"`
	LastResult          Result                  `json:"last_result,omitempty"`
	LastError           string                  `json:"last_error,omitempty"`
	LastSample          *models.Sample          `json:"last_sample,omitempty"`
	LastForecast        *models.Forecast        `json:"last_forecast,omitempty"`
	LastDecision        *models.ScalingDecision `json:"last_decision,omitempty"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	Thresholds          models.PolicyThresholds `json:"thresholds"`
}

func (c *Controller) record(res TickResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.status
	s.Ticks = res.Tick
	s.LastTickAt = res.StartedAt
	s.LastResult = res.Result
	s.LastError = res.Error
	if res.Result == ResultStalled {
		s.StalledTicks++
	}
	if res.Sample != nil {
		s.LastSample = res.Sample
	}
	if res.Forecast != nil {
		s.LastForecast = res.Forecast
	}
	if res.Decision != nil {
		s.LastDecision = res.Decision
	}
	s.ConsecutiveFailures = c.deps.Backoff.Failures()
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	s := c.status
	c.mu.RUnlock()

	s.Running = c.running.Load()
	s.Thresholds = c.deps.Thresholds.Load()
	return s
}
