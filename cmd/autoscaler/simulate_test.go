package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/config"
)

func simulationConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.App.Mode = "test"
	cfg.Controller.FleetID = "sim"
	cfg.Policy.Schedule.Enabled = false
	return cfg
}

func TestRunSimulation(t *testing.T) {
	cfg := simulationConfig(t)
	var out bytes.Buffer

	err := runSimulation(context.Background(), cfg, simulationOptions{
		Ticks:   10,
		Pattern: "steady",
		BaseCPU: 50,
		Start:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 12)
	assert.True(t, strings.HasPrefix(lines[0], "TICK"))
	assert.Contains(t, lines[1], "01-05 00:01")
	assert.Contains(t, lines[10], "01-05 00:10")
	assert.Contains(t, out.String(), "10 ticks, 0 scaling actions (0 failed), 10 ledger entries")

	// the caller's config is left alone
	assert.Equal(t, "http", cfg.Collector.Type)
}

func TestRunSimulation_ActionsOnly(t *testing.T) {
	cfg := simulationConfig(t)
	var out bytes.Buffer

	err := runSimulation(context.Background(), cfg, simulationOptions{
		Ticks:       5,
		Pattern:     "steady",
		Start:       time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		ActionsOnly: true,
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.True(t, strings.HasPrefix(lines[0], "TICK"))
	assert.Contains(t, lines[len(lines)-1], "5 ticks, 0 scaling actions")
}

func TestRunSimulation_UnknownPattern(t *testing.T) {
	err := runSimulation(context.Background(), simulationConfig(t), simulationOptions{
		Ticks:   1,
		Pattern: "chaos",
		Start:   time.Now(),
	}, &bytes.Buffer{})
	require.Error(t, err)
}
