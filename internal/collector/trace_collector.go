package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/trace"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// TraceCollector replays a synthetic load pattern. Time comes from Now, so a
// test clock drives the trace deterministically.
type TraceCollector struct {
	pattern   trace.Pattern
	baseCPU   float64
	reference int
	instances InstanceCounter
	now       func() time.Time

	mu    sync.Mutex
	spike *trace.Spike
	fail  error
}

type TraceCollectorConfig struct {
	Pattern trace.Pattern
	BaseCPU float64
	// ReferenceInstances, when set, spreads the pattern's load over the live
	// fleet: cpu = pattern * reference / current.
	ReferenceInstances int
	Instances          InstanceCounter
	Now                func() time.Time
}

func NewTraceCollector(cfg TraceCollectorConfig) *TraceCollector {
	if cfg.Pattern == nil {
		cfg.Pattern = trace.Steady{}
	}
	if cfg.BaseCPU == 0 {
		cfg.BaseCPU = 50
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TraceCollector{
		pattern:   cfg.Pattern,
		baseCPU:   cfg.BaseCPU,
		reference: cfg.ReferenceInstances,
		instances: cfg.Instances,
		now:       cfg.Now,
	}
}

func (c *TraceCollector) GetCurrentSample(ctx context.Context) (models.Sample, error) {
	c.mu.Lock()
	fail := c.fail
	spike := c.spike
	c.mu.Unlock()

	if fail != nil {
		return models.Sample{}, fail
	}

	at := c.now()
	cpu := c.pattern.Apply(c.baseCPU, at)
	if spike != nil {
		var active bool
		if cpu, active = spike.Apply(cpu, at); !active {
			c.mu.Lock()
			c.spike = nil
			c.mu.Unlock()
		}
	}

	instances := 0
	if c.instances != nil {
		n, err := c.instances.CurrentInstanceCount(ctx)
		if err != nil {
			return models.Sample{}, fmt.Errorf("%w: instance count: %v", ErrCollectionFailed, err)
		}
		instances = n
	}

	if c.reference > 0 && instances > 0 {
		cpu = min(cpu*float64(c.reference)/float64(instances), 100)
	}

	return models.Sample{
		Timestamp:      at,
		CPUUtilization: cpu,
		InstanceCount:  instances,
	}, nil
}

// InjectSpike overlays a burst starting now.
func (c *TraceCollector) InjectSpike(targetCPU float64, duration, rampUp time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spike = &trace.Spike{TargetCPU: targetCPU, Start: c.now(), Duration: duration, RampUp: rampUp}
}

// SetFailure makes every call fail with err until cleared with nil.
func (c *TraceCollector) SetFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *TraceCollector) HealthCheck(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return ErrCollectionFailed
	}
	return nil
}

func (c *TraceCollector) Close() error {
	return nil
}
