package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, mode string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Setup("debug", mode)
	SetOutput(&buf)
	t.Cleanup(func() {
		Setup("info", "production")
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestWithFleet_JSON(t *testing.T) {
	buf := capture(t, "production")

	WithFleet("web").WithField("tick", 3).Info("Tick done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "web", entry["fleet_id"])
	assert.Equal(t, float64(3), entry["tick"])
	assert.Equal(t, "Tick done", entry["msg"])
	assert.Equal(t, "info", entry["level"])
}

func TestContextLogging_AddsTraceID(t *testing.T) {
	buf := capture(t, "production")

	ctx := WithTraceID(context.Background(), "abc-123")
	assert.Equal(t, "abc-123", TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))

	WarnCtxf(ctx, "login failed for %s", "ops")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc-123", entry["trace_id"])
	assert.Equal(t, "login failed for ops", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
}

func TestSetup_LevelAndFormatter(t *testing.T) {
	buf := capture(t, "development")
	Setup("warn", "development")

	Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	WithComponent("forecast").Warnf("Strategy %s excluded", "holt")
	assert.Contains(t, buf.String(), "component=forecast")
	assert.Contains(t, buf.String(), "Strategy holt excluded")

	// unknown levels fall back to info
	buf.Reset()
	Setup("loud", "development")
	Infof("shown")
	assert.Contains(t, buf.String(), "shown")
}
