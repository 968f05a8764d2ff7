package learner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var ErrRetrainFailed = errors.New("retraining service failed")

// NoopRetrainer keeps the current strategy set.
type NoopRetrainer struct{}

func (NoopRetrainer) Retrain(context.Context, []models.ScalingDecision) ([]forecast.Strategy, error) {
	return nil, nil
}

type HTTPRetrainerConfig struct {
	Endpoint string
	FleetID  string
	Timeout  time.Duration
}

// HTTPRetrainer posts successful decisions to a modeling service and resolves
// the strategy names it answers with through the registry.
type HTTPRetrainer struct {
	client   *http.Client
	endpoint string
	fleetID  string
	registry *forecast.Registry
}

type RetrainRequest struct {
	FleetID   string                   `json:"fleet_id"`
	Decisions []models.ScalingDecision `json:"decisions"`
}

type RetrainResponse struct {
	Strategies []string `json:"strategies"`
}

func NewHTTPRetrainer(cfg HTTPRetrainerConfig, registry *forecast.Registry) *HTTPRetrainer {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPRetrainer{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		fleetID:  cfg.FleetID,
		registry: registry,
	}
}

func (r *HTTPRetrainer) Retrain(ctx context.Context, successful []models.ScalingDecision) ([]forecast.Strategy, error) {
	body, err := json.Marshal(RetrainRequest{FleetID: r.fleetID, Decisions: successful})
	if err != nil {
		return nil, fmt.Errorf("failed to encode retrain request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/retrain", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrainFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRetrainFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out RetrainResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRetrainFailed, err)
	}
	if len(out.Strategies) == 0 {
		return nil, nil
	}
	return r.registry.Build(out.Strategies)
}
