package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/internal/controller"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var testStart = time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.App.Mode = "test"
	cfg.Controller.FleetID = "web"
	cfg.Collector.Type = "trace"
	cfg.Collector.Trace.Pattern = "steady"
	cfg.Collector.Trace.BaseCPU = 50
	cfg.Fleet.ProvisionTime = 0
	cfg.Fleet.DrainTime = 0
	cfg.Policy.Schedule.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNew_TicksWithConfiguredComponents(t *testing.T) {
	cfg := testConfig(t)
	clk := &clock{now: testStart}

	o, err := New(context.Background(), cfg, Options{Now: clk.Now})
	require.NoError(t, err)
	defer o.Stop()

	res := o.Controller().Tick(context.Background())

	require.Equal(t, controller.ResultOK, res.Result, res.Error)
	require.NotNil(t, res.Decision)
	assert.Equal(t, models.ActionNone, res.Decision.Action)
	assert.Equal(t, 1, o.Buffer().Len())
	assert.Equal(t, 1, o.Ledger().Len())

	n, err := o.Fleet().CurrentInstanceCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNew_ThresholdSwapIsPublished(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer o.Stop()

	updates := o.EventBus().Subscribe(models.EventTypeThresholdsUpdated)

	next := o.Thresholds().Load()
	next.ScaleUpLoadThreshold = 85
	require.NoError(t, o.Thresholds().Swap(next))

	select {
	case event := <-updates:
		assert.Equal(t, "web", event.FleetID)
	case <-time.After(time.Second):
		t.Fatal("no thresholds_updated event")
	}
}

func TestNew_BoltLedgerSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Store = "bolt"
	cfg.Ledger.BoltPath = filepath.Join(t.TempDir(), "ledger.db")
	clk := &clock{now: testStart}

	first, err := New(context.Background(), cfg, Options{Now: clk.Now})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		first.Controller().Tick(context.Background())
		clk.now = clk.now.Add(time.Minute)
	}
	first.Stop()

	second, err := New(context.Background(), cfg, Options{Now: clk.Now})
	require.NoError(t, err)
	defer second.Stop()

	entries := second.Ledger().Snapshot()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, models.OutcomeSuccess, e.Outcome)
	}
}

func TestOrchestrator_StartStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Controller.Interval = 50 * time.Millisecond
	cfg.Controller.CollectTimeout = 10 * time.Millisecond

	o, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)

	require.NoError(t, o.Start())
	assert.ErrorIs(t, o.Start(), ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		return o.Controller().Ticks() >= 2
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, o.Ready(context.Background()))

	o.Stop()
	assert.False(t, o.Controller().Running())
	o.Stop()
}

func TestNew_RejectsBadComponents(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{name: "unknown strategy", modify: func(c *config.Config) { c.Forecast.Strategies = []string{"arima"} }},
		{name: "unknown trace pattern", modify: func(c *config.Config) { c.Collector.Trace.Pattern = "chaos" }},
		{name: "unknown ledger store", modify: func(c *config.Config) { c.Ledger.Store = "etcd" }},
		{name: "invalid thresholds", modify: func(c *config.Config) { c.Policy.Thresholds.MinInstances = 50 }},
		{name: "unknown redis event type", modify: func(c *config.Config) {
			c.Notifier.Redis.Enabled = true
			c.Notifier.Redis.Types = []string{"nope"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)

			_, err := New(context.Background(), cfg, Options{})
			assert.Error(t, err)
		})
	}
}

func TestParseEventTypes(t *testing.T) {
	types, err := parseEventTypes([]string{"scaling_complete", "scaling_failed"})
	require.NoError(t, err)
	assert.Equal(t, []models.EventType{models.EventTypeScalingComplete, models.EventTypeScalingFailed}, types)

	_, err = parseEventTypes([]string{"scaling_done"})
	assert.Error(t, err)
}
