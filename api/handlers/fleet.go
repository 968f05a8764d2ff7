package handlers

import (
	"context"
	"iter"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/internal/controller"
	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type StatusSource interface {
	Status() controller.Status
}

type HistorySource interface {
	Snapshot() []models.Sample
	Window(d time.Duration) iter.Seq[models.Sample]
}

type ForecastSource interface {
	Predict(ctx context.Context, history []models.Sample, horizon time.Duration) models.Forecast
	Horizon() time.Duration
	Strategies() []forecast.Strategy
}

type FleetHandler struct {
	status     StatusSource
	history    HistorySource
	forecaster ForecastSource
}

func NewFleetHandler(status StatusSource, history HistorySource, forecaster ForecastSource) *FleetHandler {
	return &FleetHandler{
		status:     status,
		history:    history,
		forecaster: forecaster,
	}
}

func (h *FleetHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Status())
}

type ForecastResponse struct {
	Forecast   models.Forecast `json:"forecast"`
	Strategies []string        `json:"strategies"`
	Samples    int             `json:"samples"`
}

// Forecast runs the ensemble over the current history. horizon overrides
// the configured one, e.g. ?horizon=15m.
func (h *FleetHandler) Forecast(c *gin.Context) {
	horizon := h.forecaster.Horizon()
	if raw := c.Query("horizon"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be a positive duration"})
			return
		}
		horizon = d
	}

	samples := h.history.Snapshot()
	strategies := h.forecaster.Strategies()
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}

	c.JSON(http.StatusOK, ForecastResponse{
		Forecast:   h.forecaster.Predict(c.Request.Context(), samples, horizon),
		Strategies: names,
		Samples:    len(samples),
	})
}

type HistoryResponse struct {
	Samples []models.Sample `json:"samples"`
	Count   int             `json:"count"`
}

// History returns samples oldest first; ?window=1h keeps those within the
// window of the latest sample.
func (h *FleetHandler) History(c *gin.Context) {
	var samples []models.Sample
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a non-negative duration"})
			return
		}
		samples = slices.Collect(h.history.Window(d))
	} else {
		samples = h.history.Snapshot()
	}
	if samples == nil {
		samples = []models.Sample{}
	}

	c.JSON(http.StatusOK, HistoryResponse{Samples: samples, Count: len(samples)})
}
