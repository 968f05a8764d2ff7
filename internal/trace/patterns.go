// Package trace generates synthetic CPU utilization traces. Every pattern is a
// pure function of the base load and the instant being sampled, so a trace
// replays identically under an injected clock.
package trace

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"
)

type Pattern interface {
	Apply(baseCPU float64, at time.Time) float64
	Name() string
}

// Parse resolves a pattern by name. start anchors the time-relative patterns.
func Parse(name string, start time.Time) (Pattern, error) {
	switch name {
	case "", "steady":
		return Steady{}, nil
	case "daily":
		return Daily{}, nil
	case "weekly":
		return Weekly{}, nil
	case "random":
		return Random{}, nil
	case "gradual_rise":
		return GradualRise{Start: start}, nil
	case "sine_wave":
		return SineWave{}, nil
	case "ramp":
		return Ramp{Start: start, Duration: 90 * time.Minute, From: 20, To: 95}, nil
	default:
		return nil, fmt.Errorf("unknown load pattern %q", name)
	}
}

func clampCPU(v, lo float64) float64 {
	return math.Min(math.Max(v, lo), 100)
}

// Steady keeps the base load.
type Steady struct{}

func (Steady) Apply(baseCPU float64, _ time.Time) float64 { return clampCPU(baseCPU, 0) }
func (Steady) Name() string                               { return "steady" }

// dailyModifier is the business-day shape: peaks 9-11 and 14-16, quiet nights.
func dailyModifier(hour int) float64 {
	switch {
	case hour >= 9 && hour <= 11:
		return 1.4
	case hour >= 14 && hour <= 16:
		return 1.3
	case hour >= 17 && hour <= 20:
		return 1.1
	case hour >= 0 && hour <= 6:
		return 0.6
	default:
		return 1.0
	}
}

type Daily struct{}

func (Daily) Apply(baseCPU float64, at time.Time) float64 {
	return clampCPU(baseCPU*dailyModifier(at.Hour()), 0)
}

func (Daily) Name() string { return "daily" }

// Weekly is Daily on weekdays and half load on weekends.
type Weekly struct{}

func (Weekly) Apply(baseCPU float64, at time.Time) float64 {
	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return clampCPU(baseCPU*0.5, 0)
	}
	return clampCPU(baseCPU*dailyModifier(at.Hour()), 0)
}

func (Weekly) Name() string { return "weekly" }

// Random scales the base by a factor in [0.5, 1.5) derived from the minute
// being sampled, so equal instants give equal values.
type Random struct {
	Seed uint64
}

func (p Random) Apply(baseCPU float64, at time.Time) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", p.Seed, at.Unix()/60)
	factor := 0.5 + float64(h.Sum64()%1000)/1000
	return clampCPU(baseCPU*factor, 10)
}

func (Random) Name() string { return "random" }

// GradualRise adds 2% per minute since Start, capped at +50%.
type GradualRise struct {
	Start time.Time
}

func (p GradualRise) Apply(baseCPU float64, at time.Time) float64 {
	minutes := math.Max(at.Sub(p.Start).Minutes(), 0)
	increase := math.Min(minutes*2, 50)
	return clampCPU(baseCPU*(1+increase/100), 0)
}

func (GradualRise) Name() string { return "gradual_rise" }

type SineWave struct {
	Period    time.Duration
	Amplitude float64
}

func (p SineWave) Apply(baseCPU float64, at time.Time) float64 {
	period := p.Period
	if period == 0 {
		period = 10 * time.Minute
	}
	amplitude := p.Amplitude
	if amplitude == 0 {
		amplitude = 20
	}
	phase := float64(at.UnixNano()) / float64(period.Nanoseconds()) * 2 * math.Pi
	return clampCPU(baseCPU+math.Sin(phase)*amplitude, 10)
}

func (SineWave) Name() string { return "sine_wave" }

// Ramp moves linearly from From to To over Duration starting at Start and
// holds To afterwards. The base load is ignored.
type Ramp struct {
	Start    time.Time
	Duration time.Duration
	From     float64
	To       float64
}

func (p Ramp) Apply(_ float64, at time.Time) float64 {
	if p.Duration <= 0 {
		return clampCPU(p.To, 0)
	}
	progress := math.Min(math.Max(float64(at.Sub(p.Start))/float64(p.Duration), 0), 1)
	return clampCPU(p.From+(p.To-p.From)*progress, 0)
}

func (Ramp) Name() string { return "ramp" }
