package resilience

import "math"

// BackoffConfig spaces out retries of a failing action in units of control
// loop ticks.
type BackoffConfig struct {
	BaseTicks  int
	MaxTicks   int
	Multiplier float64
}

// Backoff tracks consecutive failures of one action. The first failure only
// prevents a retry within the same tick; the k-th consecutive failure (k >= 2)
// additionally skips BaseTicks * Multiplier^(k-2) ticks, capped at MaxTicks.
// It is not safe for concurrent use; the control loop is its only user.
type Backoff struct {
	cfg          BackoffConfig
	failures     int
	blockedUntil uint64
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.BaseTicks < 0 {
		cfg.BaseTicks = 0
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = 10
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Backoff{cfg: cfg}
}

// Allow reports whether the action may run on tick.
func (b *Backoff) Allow(tick uint64) bool {
	return tick >= b.blockedUntil
}

// Failure records a failure observed on tick.
func (b *Backoff) Failure(tick uint64) {
	b.failures++
	b.blockedUntil = tick + 1 + uint64(b.delay())
}

func (b *Backoff) Success() {
	b.failures = 0
	b.blockedUntil = 0
}

func (b *Backoff) Failures() int {
	return b.failures
}

// Remaining is the number of ticks still suppressed as of tick.
func (b *Backoff) Remaining(tick uint64) int {
	if tick >= b.blockedUntil {
		return 0
	}
	return int(b.blockedUntil - tick)
}

func (b *Backoff) delay() int {
	if b.failures < 2 || b.cfg.BaseTicks == 0 {
		return 0
	}
	d := float64(b.cfg.BaseTicks) * math.Pow(b.cfg.Multiplier, float64(b.failures-2))
	return int(math.Min(d, float64(b.cfg.MaxTicks)))
}
