package fleet

import (
	"sync"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type StateCallbacks struct {
	OnStateChanged func(instance models.Instance, from, to models.InstanceState)
}

// StateTracker records the lifecycle of every instance of one fleet.
type StateTracker struct {
	fleetID   string
	instances map[string]*models.Instance
	order     []string // insertion order, oldest first
	mu        sync.RWMutex
	callbacks StateCallbacks
	now       func() time.Time
}

func NewStateTracker(fleetID string, callbacks StateCallbacks, now func() time.Time) *StateTracker {
	if now == nil {
		now = time.Now
	}
	return &StateTracker{
		fleetID:   fleetID,
		instances: make(map[string]*models.Instance),
		callbacks: callbacks,
		now:       now,
	}
}

// Add registers a new provisioning instance and returns its ID.
func (t *StateTracker) Add() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance := models.NewInstance(t.fleetID, t.now())
	t.instances[instance.ID] = instance
	t.order = append(t.order, instance.ID)

	logger.WithFleet(t.fleetID).Debugf("Instance %s added with state %s", shortID(instance.ID), instance.State)
	return instance.ID
}

func (t *StateTracker) UpdateState(id string, next models.InstanceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	instance, exists := t.instances[id]
	if !exists {
		return ErrInstanceNotFound
	}

	prev := instance.State
	if prev == next {
		return nil
	}

	switch next {
	case models.InstanceActive:
		instance.Activate(t.now())
	case models.InstanceDraining:
		instance.Drain()
	case models.InstanceTerminated:
		instance.Terminate(t.now())
	default:
		instance.State = next
	}

	if t.callbacks.OnStateChanged != nil {
		go t.callbacks.OnStateChanged(*instance, prev, next)
	}

	logger.WithFleet(t.fleetID).Debugf("Instance %s state changed: %s -> %s", shortID(id), prev, next)
	return nil
}

func (t *StateTracker) Get(id string) (models.Instance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	instance, exists := t.instances[id]
	if !exists {
		return models.Instance{}, false
	}
	return *instance, true
}

// Running returns the IDs of provisioning and active instances, newest first,
// which is the order they are released in on scale down.
func (t *StateTracker) Running() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		if t.instances[t.order[i]].IsRunning() {
			ids = append(ids, t.order[i])
		}
	}
	return ids
}

func (t *StateTracker) Instances() []models.Instance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Instance, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.instances[id])
	}
	return out
}

func (t *StateTracker) State(desired int) models.FleetState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state := models.FleetState{FleetID: t.fleetID, DesiredCount: desired}
	for _, id := range t.order {
		switch t.instances[id].State {
		case models.InstanceProvisioning:
			state.ProvisioningCnt++
			state.TotalServers++
		case models.InstanceActive:
			state.ActiveServers++
			state.TotalServers++
		case models.InstanceDraining:
			state.DrainingCount++
			state.TotalServers++
		}
	}
	return state
}

// CleanupTerminated forgets terminated instances and returns how many.
func (t *StateTracker) CleanupTerminated() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.order[:0]
	removed := 0
	for _, id := range t.order {
		if t.instances[id].State == models.InstanceTerminated {
			delete(t.instances, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
	return removed
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
