package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Checker is one dependency probed by /health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessProbe reports whether the service can do useful work.
type ReadinessProbe interface {
	Ready(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]Checker
	ready  ReadinessProbe
}

func NewHealthHandler(ready ReadinessProbe, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{checks: checks, ready: ready}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	status := "healthy"

	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			checks[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: timestamp(),
		Checks:    checks,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.ready != nil {
		if err := h.ready.Ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:    "not ready",
				Timestamp: timestamp(),
				Checks:    map[string]string{"controller": err.Error()},
			})
			return
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: timestamp(),
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: timestamp(),
	})
}
