package collector

import (
	"context"
	"errors"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var (
	ErrCollectionFailed = errors.New("metric collection failed")
	ErrTimeout          = errors.New("collection timeout")
	ErrFleetNotFound    = errors.New("fleet not found")
	ErrInvalidResponse  = errors.New("invalid response from data source")
	ErrNoData           = errors.New("query returned no data")
)

// Collector produces one load sample per call.
type Collector interface {
	// GetCurrentSample returns the fleet's load as of now.
	GetCurrentSample(ctx context.Context) (models.Sample, error)

	// HealthCheck verifies the collector can reach its data source
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the collector
	Close() error
}

// InstanceCounter reports the current fleet size. Fleet managers satisfy it.
type InstanceCounter interface {
	CurrentInstanceCount(ctx context.Context) (int, error)
}
