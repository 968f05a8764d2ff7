package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// SimulatedFleet is an in-process fleet manager. New instances pass through
// PROVISIONING and released ones through DRAINING; with zero delays both
// transitions happen synchronously.
type SimulatedFleet struct {
	fleetID       string
	tracker       *StateTracker
	provisionTime time.Duration
	drainTime     time.Duration

	mu        sync.Mutex
	desired   int
	mutations int
	failNext  error
}

type SimulatedConfig struct {
	FleetID          string
	InitialInstances int
	ProvisionTime    time.Duration
	DrainTime        time.Duration
	Callbacks        StateCallbacks
	Now              func() time.Time
}

func NewSimulatedFleet(cfg SimulatedConfig) *SimulatedFleet {
	if cfg.FleetID == "" {
		cfg.FleetID = "default"
	}

	f := &SimulatedFleet{
		fleetID:       cfg.FleetID,
		tracker:       NewStateTracker(cfg.FleetID, cfg.Callbacks, cfg.Now),
		provisionTime: cfg.ProvisionTime,
		drainTime:     cfg.DrainTime,
		desired:       cfg.InitialInstances,
	}

	for i := 0; i < cfg.InitialInstances; i++ {
		id := f.tracker.Add()
		_ = f.tracker.UpdateState(id, models.InstanceActive)
	}

	logger.WithFleet(cfg.FleetID).Infof("Initialized simulated fleet with %d active instances", cfg.InitialInstances)
	return f
}

// SetDesiredInstanceCount converges the running instance count to n.
// Requesting the current count changes nothing.
func (f *SimulatedFleet) SetDesiredInstanceCount(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failNext; err != nil {
		f.failNext = nil
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}

	f.desired = n
	running := f.tracker.Running()
	delta := n - len(running)
	if delta == 0 {
		return nil
	}
	f.mutations++

	if delta > 0 {
		logger.WithFleet(f.fleetID).Infof("Scaling up: adding %d instances", delta)
		for i := 0; i < delta; i++ {
			f.provision(f.tracker.Add())
		}
		return nil
	}

	logger.WithFleet(f.fleetID).Infof("Scaling down: removing %d instances", -delta)
	for _, id := range running[:-delta] {
		f.release(id)
	}
	return nil
}

func (f *SimulatedFleet) provision(id string) {
	if f.provisionTime == 0 {
		_ = f.tracker.UpdateState(id, models.InstanceActive)
		return
	}
	time.AfterFunc(f.provisionTime, func() {
		// a drain may have overtaken provisioning
		if inst, ok := f.tracker.Get(id); ok && inst.State == models.InstanceProvisioning {
			_ = f.tracker.UpdateState(id, models.InstanceActive)
		}
	})
}

func (f *SimulatedFleet) release(id string) {
	_ = f.tracker.UpdateState(id, models.InstanceDraining)
	if f.drainTime == 0 {
		_ = f.tracker.UpdateState(id, models.InstanceTerminated)
		return
	}
	time.AfterFunc(f.drainTime, func() {
		_ = f.tracker.UpdateState(id, models.InstanceTerminated)
	})
}

// CurrentInstanceCount counts provisioning and active instances.
func (f *SimulatedFleet) CurrentInstanceCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(f.tracker.Running()), nil
}

func (f *SimulatedFleet) State() models.FleetState {
	f.mu.Lock()
	desired := f.desired
	f.mu.Unlock()
	return f.tracker.State(desired)
}

func (f *SimulatedFleet) Instances() []models.Instance {
	return f.tracker.Instances()
}

// Mutations counts calls that actually changed the fleet.
func (f *SimulatedFleet) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

// FailNext makes the next SetDesiredInstanceCount fail with err.
func (f *SimulatedFleet) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = err
}

func (f *SimulatedFleet) Cleanup() int {
	return f.tracker.CleanupTerminated()
}
