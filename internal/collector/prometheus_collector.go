package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

const (
	DefaultCPUQuery       = `avg(100 * (1 - rate(node_cpu_seconds_total{mode="idle"}[1m])))`
	DefaultInstancesQuery = `count(up{job="fleet"} == 1)`
)

// PrometheusCollector derives a sample from two instant queries: average CPU
// utilization in percent and the number of live instances.
type PrometheusCollector struct {
	api            promv1.API
	cpuQuery       string
	instancesQuery string
	timeout        time.Duration
	now            func() time.Time
}

type PrometheusCollectorConfig struct {
	Address        string
	CPUQuery       string
	InstancesQuery string
	Timeout        time.Duration
}

func NewPrometheusCollector(cfg PrometheusCollectorConfig) (*PrometheusCollector, error) {
	client, err := promapi.NewClient(promapi.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus client: %w", err)
	}
	return newPrometheusCollector(promv1.NewAPI(client), cfg), nil
}

func newPrometheusCollector(api promv1.API, cfg PrometheusCollectorConfig) *PrometheusCollector {
	if cfg.CPUQuery == "" {
		cfg.CPUQuery = DefaultCPUQuery
	}
	if cfg.InstancesQuery == "" {
		cfg.InstancesQuery = DefaultInstancesQuery
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &PrometheusCollector{
		api:            api,
		cpuQuery:       cfg.CPUQuery,
		instancesQuery: cfg.InstancesQuery,
		timeout:        cfg.Timeout,
		now:            time.Now,
	}
}

func (c *PrometheusCollector) GetCurrentSample(ctx context.Context) (models.Sample, error) {
	at := c.now()

	cpu, err := c.query(ctx, c.cpuQuery, at)
	if err != nil {
		return models.Sample{}, err
	}
	instances, err := c.query(ctx, c.instancesQuery, at)
	if err != nil {
		return models.Sample{}, err
	}

	return models.Sample{
		Timestamp:      at,
		CPUUtilization: math.Min(math.Max(cpu, 0), 100),
		InstanceCount:  int(math.Round(instances)),
	}, nil
}

func (c *PrometheusCollector) query(ctx context.Context, q string, at time.Time) (float64, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	val, warnings, err := c.api.Query(qctx, q, at)
	if err != nil {
		return 0, fmt.Errorf("%w: query %q: %v", ErrCollectionFailed, q, err)
	}
	if len(warnings) > 0 {
		logger.WithComponent("collector").Warnf("Prometheus warnings for %q: %v", q, warnings)
	}

	v, err := firstValue(val)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", q, err)
	}
	return v, nil
}

// firstValue reduces an instant query result to one number.
func firstValue(val model.Value) (float64, error) {
	var v float64
	switch result := val.(type) {
	case model.Vector:
		if len(result) == 0 {
			return 0, ErrNoData
		}
		v = float64(result[0].Value)
	case *model.Scalar:
		v = float64(result.Value)
	default:
		return 0, fmt.Errorf("%w: unexpected result type %s", ErrInvalidResponse, val.Type())
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite value", ErrInvalidResponse)
	}
	return v, nil
}

func (c *PrometheusCollector) HealthCheck(ctx context.Context) error {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.api.Buildinfo(qctx); err != nil {
		return fmt.Errorf("prometheus health check failed: %w", err)
	}
	return nil
}

func (c *PrometheusCollector) Close() error {
	return nil
}
