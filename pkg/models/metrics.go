package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidSample = errors.New("invalid sample")

// Sample is one observation of fleet load, produced once per tick.
type Sample struct {
	Timestamp      time.Time          `json:"timestamp"`
	CPUUtilization float64            `json:"cpu_utilization"`
	InstanceCount  int                `json:"instance_count"`
	Dimensions     map[string]float64 `json:"dimensions,omitempty"`
}

func (s Sample) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSample)
	}
	if math.IsNaN(s.CPUUtilization) || s.CPUUtilization < 0 || s.CPUUtilization > 100 {
		return fmt.Errorf("%w: cpu_utilization %.2f outside [0,100]", ErrInvalidSample, s.CPUUtilization)
	}
	if s.InstanceCount < 0 {
		return fmt.Errorf("%w: negative instance_count %d", ErrInvalidSample, s.InstanceCount)
	}
	return nil
}

// Clone returns a copy that shares no map with the receiver.
func (s Sample) Clone() Sample {
	if s.Dimensions == nil {
		return s
	}
	dims := make(map[string]float64, len(s.Dimensions))
	for k, v := range s.Dimensions {
		dims[k] = v
	}
	s.Dimensions = dims
	return s
}
