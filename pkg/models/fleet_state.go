package models

// FleetState represents the runtime state of a managed fleet
type FleetState struct {
	FleetID         string `json:"fleet_id"`
	DesiredCount    int    `json:"desired_count"`
	TotalServers    int    `json:"total_servers"`
	ActiveServers   int    `json:"active_servers"`
	ProvisioningCnt int    `json:"provisioning_count"`
	DrainingCount   int    `json:"draining_count"`
}

// Converged reports whether every running server is active and the count
// matches the desired size.
func (fs *FleetState) Converged() bool {
	return fs.ProvisioningCnt == 0 && fs.DrainingCount == 0 && fs.ActiveServers == fs.DesiredCount
}

// Running counts servers that are serving or about to serve.
func (fs *FleetState) Running() int {
	return fs.ActiveServers + fs.ProvisioningCnt
}
