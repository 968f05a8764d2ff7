package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/fleet"
	"github.com/OldStager01/predictive-autoscaler/internal/trace"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type FleetConfig struct {
	InitialInstances int
	BaseCPU          float64
	BaseMemory       float64
	Variance         float64
	ProvisionTime    time.Duration
	DrainTime        time.Duration
	Now              func() time.Time
}

// FleetSim is one simulated fleet. Its load pattern describes the demand of
// the whole fleet at its initial size; per-server CPU falls as the fleet
// grows and rises as it shrinks.
type FleetSim struct {
	id        string
	fleet     *fleet.SimulatedFleet
	reference int
	now       func() time.Time

	mu                sync.RWMutex
	baseCPU           float64
	baseMemory        float64
	variance          float64
	memoryCorrelation float64 // share of the CPU delta memory follows, 0 to 1
	pattern           trace.Pattern
	spike             *trace.Spike
	lbMembers         int
	lbRefreshes       int
}

func NewFleetSim(id string, cfg FleetConfig) *FleetSim {
	if cfg.InitialInstances <= 0 {
		cfg.InitialInstances = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &FleetSim{
		id: id,
		fleet: fleet.NewSimulatedFleet(fleet.SimulatedConfig{
			FleetID:          id,
			InitialInstances: cfg.InitialInstances,
			ProvisionTime:    cfg.ProvisionTime,
			DrainTime:        cfg.DrainTime,
			Now:              cfg.Now,
		}),
		reference:         cfg.InitialInstances,
		now:               cfg.Now,
		baseCPU:           cfg.BaseCPU,
		baseMemory:        cfg.BaseMemory,
		variance:          cfg.Variance,
		memoryCorrelation: 0.6,
		pattern:           trace.Steady{},
		lbMembers:         cfg.InitialInstances,
	}
}

// demand is the fleet-wide CPU at t before it is spread over live servers.
// Callers hold at least the read lock.
func (f *FleetSim) demand(at time.Time) float64 {
	cpu := f.pattern.Apply(f.baseCPU, at)
	if f.spike != nil {
		if spiked, active := f.spike.Apply(cpu, at); active {
			cpu = spiked
		}
	}
	return cpu
}

func (f *FleetSim) CollectMetrics() *collector.MetricsResponse {
	at := f.now()
	state := f.fleet.State()

	f.mu.Lock()
	if f.spike != nil {
		if _, active := f.spike.Apply(0, at); !active {
			f.spike = nil
		}
	}
	demand := f.demand(at)
	baseCPU, baseMemory, variance, correlation := f.baseCPU, f.baseMemory, f.variance, f.memoryCorrelation
	f.mu.Unlock()

	perServer := demand
	if state.ActiveServers > 0 {
		perServer = demand * float64(f.reference) / float64(state.ActiveServers)
	}
	memory := clamp(baseMemory+(perServer-baseCPU)*correlation, 10, 100)

	servers := make([]collector.ServerMetrics, 0, state.ActiveServers)
	for _, inst := range f.fleet.Instances() {
		if inst.State != models.InstanceActive {
			continue
		}
		servers = append(servers, collector.ServerMetrics{
			ServerID:    inst.ID,
			CPUUsage:    jitter(perServer, variance),
			MemoryUsage: jitter(memory, variance/2),
			RequestLoad: int(jitter(100, 30)),
		})
	}

	return &collector.MetricsResponse{
		FleetID:       f.id,
		Timestamp:     at.UTC().Format(time.RFC3339),
		InstanceCount: state.Running(),
		Servers:       servers,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func jitter(base, variance float64) float64 {
	v := base
	if variance > 0 {
		v += (rand.Float64()*2 - 1) * variance
	}
	return math.Round(clamp(v, 0, 100)*100) / 100
}

func (f *FleetSim) SetDesired(ctx context.Context, n int) error {
	return f.fleet.SetDesiredInstanceCount(ctx, n)
}

func (f *FleetSim) State() models.FleetState {
	return f.fleet.State()
}

// RefreshMembers points the simulated load balancer at the active servers.
func (f *FleetSim) RefreshMembers() int {
	active := f.fleet.State().ActiveServers
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lbMembers = active
	f.lbRefreshes++
	return active
}

func (f *FleetSim) SetBaseCPU(cpu float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseCPU = cpu
}

func (f *FleetSim) SetBaseMemory(memory float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseMemory = memory
}

func (f *FleetSim) SetVariance(variance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variance = variance
}

func (f *FleetSim) SetMemoryCorrelation(correlation float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memoryCorrelation = clamp(correlation, 0, 1)
}

func (f *FleetSim) SetPattern(p trace.Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pattern = p
}

func (f *FleetSim) InjectSpike(targetCPU float64, duration, rampUp time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spike = &trace.Spike{TargetCPU: targetCPU, Start: f.now(), Duration: duration, RampUp: rampUp}
}

type SpikeStatus struct {
	Active    bool    `json:"active"`
	TargetCPU float64 `json:"target_cpu,omitempty"`
	Remaining string  `json:"remaining,omitempty"`
}

type FleetStatus struct {
	ID                string            `json:"id"`
	State             models.FleetState `json:"state"`
	Demand            float64           `json:"demand"`
	BaseCPU           float64           `json:"base_cpu"`
	BaseMemory        float64           `json:"base_memory"`
	Variance          float64           `json:"variance"`
	MemoryCorrelation float64           `json:"memory_correlation"`
	Pattern           string            `json:"pattern"`
	Spike             SpikeStatus       `json:"spike"`
	LBMembers         int               `json:"lb_members"`
	LBRefreshes       int               `json:"lb_refreshes"`
}

func (f *FleetSim) Status() FleetStatus {
	at := f.now()
	state := f.fleet.State()

	f.mu.RLock()
	defer f.mu.RUnlock()

	spike := SpikeStatus{}
	if f.spike != nil {
		if remaining := f.spike.Remaining(at); remaining > 0 {
			spike = SpikeStatus{Active: true, TargetCPU: f.spike.TargetCPU, Remaining: remaining.String()}
		}
	}

	return FleetStatus{
		ID:                f.id,
		State:             state,
		Demand:            f.demand(at),
		BaseCPU:           f.baseCPU,
		BaseMemory:        f.baseMemory,
		Variance:          f.variance,
		MemoryCorrelation: f.memoryCorrelation,
		Pattern:           f.pattern.Name(),
		Spike:             spike,
		LBMembers:         f.lbMembers,
		LBRefreshes:       f.lbRefreshes,
	}
}
