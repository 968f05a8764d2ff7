package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/api/middleware"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type ThresholdStore interface {
	Load() models.PolicyThresholds
	Swap(next models.PolicyThresholds) error
	Version() uint64
}

type ThresholdHandler struct {
	store ThresholdStore
}

func NewThresholdHandler(store ThresholdStore) *ThresholdHandler {
	return &ThresholdHandler{store: store}
}

type ThresholdsResponse struct {
	Thresholds models.PolicyThresholds `json:"thresholds"`
	Version    uint64                  `json:"version"`
}

func (h *ThresholdHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, ThresholdsResponse{
		Thresholds: h.store.Load(),
		Version:    h.store.Version(),
	})
}

// Update merges the body over the current thresholds and swaps the result
// in. An invalid result leaves the current thresholds in effect.
func (h *ThresholdHandler) Update(c *gin.Context) {
	next := h.store.Load()
	if err := c.ShouldBindJSON(&next); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.store.Swap(next); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	logger.InfoCtxf(c.Request.Context(), "Operator %s updated thresholds to version %d", middleware.GetUsername(c), h.store.Version())
	c.JSON(http.StatusOK, ThresholdsResponse{
		Thresholds: h.store.Load(),
		Version:    h.store.Version(),
	})
}
