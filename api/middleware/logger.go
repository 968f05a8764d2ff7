package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
)

// RequestLogger writes one entry per request. Health probes log at debug so
// they do not drown the access log.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if query != "" {
			fields["query"] = query
		}
		if traceID := GetTraceID(c); traceID != "" {
			fields["trace_id"] = traceID
		}
		if username := GetUsername(c); username != "" {
			fields["operator"] = username
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)

		switch {
		case status >= 500:
			entry.Error("server error")
		case status >= 400:
			entry.Warn("client error")
		case strings.HasPrefix(path, "/health"):
			entry.Debug("health probe")
		default:
			entry.Info("request completed")
		}
	}
}
