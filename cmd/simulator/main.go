package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/simulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", 9000, "simulator server port")
	logLevel := flag.String("log-level", "info", "log level")
	instances := flag.Int("instances", 3, "initial instances of a fleet created on first use")
	baseCPU := flag.Float64("base-cpu", 50, "fleet-wide base CPU utilization")
	variance := flag.Float64("variance", 5, "per-server CPU jitter")
	provisionTime := flag.Duration("provision-time", 10*time.Second, "time a new instance spends provisioning")
	drainTime := flag.Duration("drain-time", 30*time.Second, "time a released instance spends draining")
	flag.Parse()

	logger.Setup(*logLevel, "development")
	logger.Info("Starting fleet simulator")

	sim := simulator.New(simulator.Config{
		Port: *port,
		Fleet: simulator.FleetConfig{
			InitialInstances: *instances,
			BaseCPU:          *baseCPU,
			Variance:         *variance,
			ProvisionTime:    *provisionTime,
			DrainTime:        *drainTime,
		},
	})

	if err := sim.Start(); err != nil {
		return fmt.Errorf("failed to start simulator: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down simulator")
	return sim.Stop()
}
