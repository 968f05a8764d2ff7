// Package fleet holds the fleet manager and load balancer backends the
// executor drives.
package fleet

import "errors"

var (
	ErrInvalidTarget    = errors.New("invalid target instance count")
	ErrScalingFailed    = errors.New("scaling operation failed")
	ErrFleetUnavailable = errors.New("fleet manager unavailable")
	ErrInstanceNotFound = errors.New("instance not found")
)
