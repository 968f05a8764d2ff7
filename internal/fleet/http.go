package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type HTTPConfig struct {
	Endpoint string
	FleetID  string
	Timeout  time.Duration
}

type httpBackend struct {
	client   *http.Client
	endpoint string
	fleetID  string
}

func newHTTPBackend(cfg HTTPConfig) httpBackend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return httpBackend{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		fleetID:  cfg.FleetID,
	}
}

func (b httpBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFleetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrScalingFailed, method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// HTTPFleet drives the simulator service's fleet endpoints.
type HTTPFleet struct {
	backend httpBackend
}

func NewHTTPFleet(cfg HTTPConfig) *HTTPFleet {
	return &HTTPFleet{backend: newHTTPBackend(cfg)}
}

// DesiredRequest is the body of PUT /fleet/{id}.
type DesiredRequest struct {
	Desired int `json:"desired"`
}

func (f *HTTPFleet) SetDesiredInstanceCount(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, n)
	}
	logger.WithFleet(f.backend.fleetID).Infof("Requesting %d instances", n)
	return f.backend.do(ctx, http.MethodPut, "/fleet/"+f.backend.fleetID, DesiredRequest{Desired: n}, nil)
}

func (f *HTTPFleet) CurrentInstanceCount(ctx context.Context) (int, error) {
	var state models.FleetState
	if err := f.backend.do(ctx, http.MethodGet, "/fleet/"+f.backend.fleetID, nil, &state); err != nil {
		return 0, err
	}
	return state.Running(), nil
}

// HTTPLoadBalancer asks the simulator to re-read fleet membership.
type HTTPLoadBalancer struct {
	backend httpBackend
}

func NewHTTPLoadBalancer(cfg HTTPConfig) *HTTPLoadBalancer {
	return &HTTPLoadBalancer{backend: newHTTPBackend(cfg)}
}

func (lb *HTTPLoadBalancer) RefreshMembers(ctx context.Context) error {
	return lb.backend.do(ctx, http.MethodPost, "/lb/"+lb.backend.fleetID+"/refresh", nil, nil)
}

// NoopLoadBalancer is used where membership follows the fleet on its own,
// e.g. a Kubernetes Service in front of a Deployment.
type NoopLoadBalancer struct{}

func (NoopLoadBalancer) RefreshMembers(context.Context) error { return nil }
