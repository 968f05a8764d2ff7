package trace

import "time"

// Spike overrides a trace with a ramped burst to TargetCPU.
type Spike struct {
	TargetCPU float64
	Start     time.Time
	Duration  time.Duration
	RampUp    time.Duration
}

// Apply returns the spiked load at t and whether the spike is still active.
func (s Spike) Apply(cpu float64, at time.Time) (float64, bool) {
	elapsed := at.Sub(s.Start)
	switch {
	case elapsed < 0:
		return cpu, true
	case elapsed > s.Duration:
		return cpu, false
	case s.RampUp > 0 && elapsed < s.RampUp:
		progress := float64(elapsed) / float64(s.RampUp)
		return cpu + (s.TargetCPU-cpu)*progress, true
	default:
		return s.TargetCPU, true
	}
}

// Remaining is the active time left at t.
func (s Spike) Remaining(at time.Time) time.Duration {
	return max(s.Duration-at.Sub(s.Start), 0)
}
