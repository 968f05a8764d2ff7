package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OldStager01/predictive-autoscaler/api"
	"github.com/OldStager01/predictive-autoscaler/api/handlers"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/orchestrator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop, the API and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger.Infof("Starting %s in %s mode for fleet %s", cfg.App.Name, cfg.App.Mode, cfg.Controller.FleetID)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		orch, err := orchestrator.New(ctx, cfg, orchestrator.Options{})
		if err != nil {
			return fmt.Errorf("failed to build orchestrator: %w", err)
		}
		defer orch.Stop()

		if cfg.Prometheus.Enabled {
			orch.Metrics().StartServer(ctx, cfg.Prometheus.Port)
		}

		if err := orch.Start(); err != nil {
			return fmt.Errorf("failed to start orchestrator: %w", err)
		}

		errCh := make(chan error, 1)
		var server *api.Server
		if cfg.API.Enabled {
			checks := map[string]handlers.Checker{"collector": orch.Collector()}
			if db := orch.DB(); db != nil {
				checks["database"] = db
			}
			server = api.NewServer(cfg, api.Dependencies{
				Status:     orch.Controller(),
				History:    orch.Buffer(),
				Forecaster: orch.Forecaster(),
				Decisions:  orch.Ledger(),
				Thresholds: orch.Thresholds(),
				Ready:      orch,
				Checks:     checks,
				Events:     orch.EventBus().SubscribeAll(),
			})
			go func() {
				logger.Infof("API server listening on port %d", cfg.API.Port)
				if err := server.Start(); err != nil {
					errCh <- err
				}
			}()
		}

		select {
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
		case err := <-errCh:
			logger.Errorf("API server failed: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("API shutdown error: %v", err)
			}
		}

		logger.Info("Shutdown complete")
		return nil
	},
}
