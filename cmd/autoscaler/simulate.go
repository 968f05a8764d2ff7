package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/controller"
	"github.com/OldStager01/predictive-autoscaler/internal/orchestrator"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the control loop over a synthetic trace and print each decision",
	Long: `Run the control loop tick by tick over a synthetic load trace against a
simulated fleet. Time is simulated, so a day of one-minute ticks finishes in
seconds. Collector, fleet and ledger settings from the config are replaced;
policy, forecast and learner settings are used as configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var opts simulationOptions
		opts.Ticks, _ = cmd.Flags().GetInt("ticks")
		opts.Pattern, _ = cmd.Flags().GetString("pattern")
		opts.BaseCPU, _ = cmd.Flags().GetFloat64("base-cpu")
		opts.SpikeAt, _ = cmd.Flags().GetInt("spike-at")
		opts.SpikeCPU, _ = cmd.Flags().GetFloat64("spike-cpu")
		opts.SpikeDuration, _ = cmd.Flags().GetDuration("spike-duration")
		opts.ActionsOnly, _ = cmd.Flags().GetBool("actions-only")
		start, _ := cmd.Flags().GetString("start")
		if opts.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}

		return runSimulation(cmd.Context(), cfg, opts, cmd.OutOrStdout())
	},
}

func init() {
	simulateCmd.Flags().Int("ticks", 24*60, "number of control loop ticks")
	simulateCmd.Flags().String("pattern", "daily", "trace pattern (steady, daily, weekly, random, gradual_rise, sine_wave, ramp)")
	simulateCmd.Flags().Float64("base-cpu", 50, "base CPU utilization of the trace")
	simulateCmd.Flags().String("start", "2026-01-05T00:00:00Z", "simulated start time (RFC3339)")
	simulateCmd.Flags().Int("spike-at", 0, "tick at which to inject a load spike, 0 for none")
	simulateCmd.Flags().Float64("spike-cpu", 95, "CPU utilization at the spike peak")
	simulateCmd.Flags().Duration("spike-duration", 20*time.Minute, "spike length")
	simulateCmd.Flags().Bool("actions-only", false, "print only ticks that scaled")
}

type simulationOptions struct {
	Ticks         int
	Pattern       string
	BaseCPU       float64
	Start         time.Time
	SpikeAt       int
	SpikeCPU      float64
	SpikeDuration time.Duration
	ActionsOnly   bool
}

// simClock is advanced by the simulation, one controller interval per tick.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func runSimulation(ctx context.Context, base *config.Config, opts simulationOptions, w io.Writer) error {
	cfg := *base
	cfg.Collector.Type = "trace"
	cfg.Collector.Trace.Pattern = opts.Pattern
	if opts.BaseCPU > 0 {
		cfg.Collector.Trace.BaseCPU = opts.BaseCPU
	}
	cfg.Fleet.Type = "simulated"
	cfg.Fleet.ProvisionTime = 0
	cfg.Fleet.DrainTime = 0
	cfg.Ledger.Store = "memory"
	cfg.Notifier.Redis.Enabled = false

	clock := &simClock{now: opts.Start}
	orch, err := orchestrator.New(ctx, &cfg, orchestrator.Options{Now: clock.Now})
	if err != nil {
		return fmt.Errorf("failed to build simulation: %w", err)
	}
	defer orch.Stop()

	trace, _ := orch.Collector().(*collector.TraceCollector)
	ctrl := orch.Controller()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tTIME\tLOAD\tINSTANCES\tPREDICTED\tCONFIDENCE\tACTION\tTARGET\tRULE\tOUTCOME")

	var scaled, failed int
	for i := 1; i <= opts.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		clock.Advance(cfg.Controller.Interval)
		if i == opts.SpikeAt && trace != nil {
			trace.InjectSpike(opts.SpikeCPU, opts.SpikeDuration, opts.SpikeDuration/4)
		}

		res := ctrl.Tick(ctx)
		if res.Executed {
			scaled++
			if res.Outcome != models.OutcomeSuccess {
				failed++
			}
		}
		if opts.ActionsOnly && !res.Executed {
			continue
		}
		writeTick(tw, res)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats := orch.Ledger().Stats()
	fmt.Fprintf(w, "\n%d ticks, %d scaling actions (%d failed), %d ledger entries, final thresholds %+v\n",
		ctrl.Ticks(), scaled, failed, stats.Total, orch.Thresholds().Load())
	return nil
}

func writeTick(w io.Writer, res controller.TickResult) {
	if res.Sample == nil {
		fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\t%s\t-\t-\t%s\n",
			res.Tick, res.StartedAt.Format("01-02 15:04"), res.Result, res.Error)
		return
	}

	predicted, confidence := "-", "-"
	if res.Forecast != nil {
		predicted = fmt.Sprintf("%.1f", res.Forecast.PredictedLoad)
		confidence = fmt.Sprintf("%.2f", res.Forecast.Confidence)
	}
	action, target, rule := "none", "-", "-"
	if res.Decision != nil {
		action = string(res.Decision.Action)
		target = fmt.Sprintf("%d", res.Decision.TargetInstances)
		rule = string(res.Decision.Rule)
	}
	outcome := string(res.Outcome)
	if res.Suppressed {
		outcome = "suppressed"
	}
	if outcome == "" {
		outcome = "-"
	}

	fmt.Fprintf(w, "%d\t%s\t%.1f\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
		res.Tick, res.Sample.Timestamp.Format("01-02 15:04"), res.Sample.CPUUtilization,
		res.Sample.InstanceCount, predicted, confidence, action, target, rule, outcome)
}
