package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// HTTPCollector reads fleet metrics from the simulator service.
type HTTPCollector struct {
	client   *http.Client
	endpoint string
	fleetID  string
}

type HTTPCollectorConfig struct {
	Endpoint string
	FleetID  string
	Timeout  time.Duration
}

func NewHTTPCollector(cfg HTTPCollectorConfig) *HTTPCollector {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPCollector{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		fleetID:  cfg.FleetID,
	}
}

// MetricsResponse is the simulator's per-fleet payload.
type MetricsResponse struct {
	FleetID       string          `json:"fleet_id"`
	Timestamp     string          `json:"timestamp"`
	InstanceCount int             `json:"instance_count"`
	Servers       []ServerMetrics `json:"servers"`
}

type ServerMetrics struct {
	ServerID    string  `json:"server_id"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	RequestLoad int     `json:"request_load"`
}

func (c *HTTPCollector) GetCurrentSample(ctx context.Context) (models.Sample, error) {
	url := fmt.Sprintf("%s/metrics/%s", c.endpoint, c.fleetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Sample{}, fmt.Errorf("%w: failed to create request: %v", ErrCollectionFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	logger.WithFleet(c.fleetID).Debugf("Collecting metrics from %s", url)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Sample{}, ErrTimeout
		}
		return models.Sample{}, fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Sample{}, ErrFleetNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.Sample{}, fmt.Errorf("%w: unexpected status code %d", ErrCollectionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Sample{}, fmt.Errorf("%w: failed to read response body: %v", ErrCollectionFailed, err)
	}

	var metrics MetricsResponse
	if err := json.Unmarshal(body, &metrics); err != nil {
		return models.Sample{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	sample := toSample(&metrics)
	logger.WithFleet(c.fleetID).Debugf("Collected cpu=%.1f%% across %d servers", sample.CPUUtilization, len(metrics.Servers))
	return sample, nil
}

// toSample averages per-server usage into one fleet observation.
func toSample(resp *MetricsResponse) models.Sample {
	timestamp := time.Now()
	if resp.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, resp.Timestamp); err == nil {
			timestamp = parsed
		}
	}

	var cpu, memory float64
	var requests int
	for _, s := range resp.Servers {
		cpu += s.CPUUsage
		memory += s.MemoryUsage
		requests += s.RequestLoad
	}
	if n := len(resp.Servers); n > 0 {
		cpu /= float64(n)
		memory /= float64(n)
	}

	instances := resp.InstanceCount
	if instances == 0 {
		instances = len(resp.Servers)
	}

	return models.Sample{
		Timestamp:      timestamp,
		CPUUtilization: cpu,
		InstanceCount:  instances,
		Dimensions: map[string]float64{
			"memory_utilization": memory,
			"request_load":       float64(requests),
		},
	}
}

func (c *HTTPCollector) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/health", c.endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPCollector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
