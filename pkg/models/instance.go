package models

import "time"

type InstanceState string

const (
	InstanceProvisioning InstanceState = "PROVISIONING"
	InstanceActive       InstanceState = "ACTIVE"
	InstanceDraining     InstanceState = "DRAINING"
	InstanceTerminated   InstanceState = "TERMINATED"
)

// Instance is one compute member of a simulated fleet.
type Instance struct {
	ID           string        `json:"id"`
	FleetID      string        `json:"fleet_id"`
	State        InstanceState `json:"state"`
	CreatedAt    time.Time     `json:"created_at"`
	ActivatedAt  *time.Time    `json:"activated_at,omitempty"`
	TerminatedAt *time.Time    `json:"terminated_at,omitempty"`
}

func NewInstance(fleetID string, now time.Time) *Instance {
	return &Instance{
		ID:        NewUUID(),
		FleetID:   fleetID,
		State:     InstanceProvisioning,
		CreatedAt: now,
	}
}

func (i *Instance) Activate(now time.Time) {
	i.State = InstanceActive
	i.ActivatedAt = &now
}

func (i *Instance) Drain() {
	i.State = InstanceDraining
}

func (i *Instance) Terminate(now time.Time) {
	i.State = InstanceTerminated
	i.TerminatedAt = &now
}

// IsRunning reports whether the instance counts toward fleet size.
func (i *Instance) IsRunning() bool {
	return i.State == InstanceProvisioning || i.State == InstanceActive
}
