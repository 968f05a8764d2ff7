package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/internal/ledger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type DecisionSource interface {
	Recent(n int) []models.ScalingDecision
	Get(id string) (models.ScalingDecision, bool)
	Stats() ledger.Stats
}

type DecisionHandler struct {
	ledger       DecisionSource
	defaultLimit int
	maxLimit     int
}

func NewDecisionHandler(source DecisionSource, defaultLimit, maxLimit int) *DecisionHandler {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &DecisionHandler{
		ledger:       source,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

type DecisionsResponse struct {
	Decisions []models.ScalingDecision `json:"decisions"`
	Count     int                      `json:"count"`
}

// List returns the latest decisions, oldest first.
func (h *DecisionHandler) List(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, h.maxLimit)
	}

	decisions := h.ledger.Recent(limit)
	if decisions == nil {
		decisions = []models.ScalingDecision{}
	}
	c.JSON(http.StatusOK, DecisionsResponse{Decisions: decisions, Count: len(decisions)})
}

func (h *DecisionHandler) Get(c *gin.Context) {
	d, ok := h.ledger.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *DecisionHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Stats())
}
