package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/OldStager01/predictive-autoscaler/internal/collector"
	"github.com/OldStager01/predictive-autoscaler/internal/executor"
	"github.com/OldStager01/predictive-autoscaler/internal/fleet"
	"github.com/OldStager01/predictive-autoscaler/internal/forecast"
	"github.com/OldStager01/predictive-autoscaler/internal/learner"
	"github.com/OldStager01/predictive-autoscaler/internal/ledger"
	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/internal/metrics"
	"github.com/OldStager01/predictive-autoscaler/internal/notify"
	"github.com/OldStager01/predictive-autoscaler/internal/resilience"
	"github.com/OldStager01/predictive-autoscaler/internal/trace"
	"github.com/OldStager01/predictive-autoscaler/pkg/config"
	"github.com/OldStager01/predictive-autoscaler/pkg/database"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

func buildFleet(cfg *config.Config, now func() time.Time) (executor.FleetManager, error) {
	fleetID := cfg.Controller.FleetID

	switch cfg.Fleet.Type {
	case "simulated":
		return fleet.NewSimulatedFleet(fleet.SimulatedConfig{
			FleetID:          fleetID,
			InitialInstances: cfg.Fleet.InitialInstances,
			ProvisionTime:    cfg.Fleet.ProvisionTime,
			DrainTime:        cfg.Fleet.DrainTime,
			Now:              now,
		}), nil
	case "http":
		return fleet.NewHTTPFleet(fleet.HTTPConfig{
			Endpoint: cfg.Fleet.Endpoint,
			FleetID:  fleetID,
			Timeout:  cfg.Fleet.Timeout,
		}), nil
	case "kubernetes":
		client, err := fleet.NewKubernetesClient(cfg.Fleet.Kubeconfig)
		if err != nil {
			return nil, err
		}
		return fleet.NewKubernetesFleet(client, fleet.KubernetesConfig{
			Namespace:  cfg.Fleet.Namespace,
			Deployment: cfg.Fleet.Deployment,
		}), nil
	default:
		return nil, fmt.Errorf("unknown fleet type %q", cfg.Fleet.Type)
	}
}

func buildLoadBalancer(cfg *config.Config) executor.LoadBalancer {
	if cfg.LoadBalancer.Type == "http" {
		return fleet.NewHTTPLoadBalancer(fleet.HTTPConfig{
			Endpoint: cfg.LoadBalancer.Endpoint,
			FleetID:  cfg.Controller.FleetID,
			Timeout:  cfg.LoadBalancer.Timeout,
		})
	}
	return fleet.NoopLoadBalancer{}
}

// buildCollector wraps network collectors in retry and a circuit breaker. The
// trace collector reads the fleet it is given for instance counts.
func buildCollector(cfg *config.Config, instances collector.InstanceCounter, m *metrics.Metrics, now func() time.Time) (collector.Collector, error) {
	cc := cfg.Collector

	var base collector.Collector
	switch cc.Type {
	case "trace":
		pattern, err := trace.Parse(cc.Trace.Pattern, now())
		if err != nil {
			return nil, err
		}
		return collector.NewTraceCollector(collector.TraceCollectorConfig{
			Pattern:            pattern,
			BaseCPU:            cc.Trace.BaseCPU,
			ReferenceInstances: cc.Trace.ReferenceInstances,
			Instances:          instances,
			Now:                now,
		}), nil
	case "http":
		base = collector.NewHTTPCollector(collector.HTTPCollectorConfig{
			Endpoint: cc.Endpoint,
			FleetID:  cfg.Controller.FleetID,
			Timeout:  cc.Timeout,
		})
	case "prometheus":
		pc, err := collector.NewPrometheusCollector(collector.PrometheusCollectorConfig{
			Address:        cc.Endpoint,
			CPUQuery:       cc.Prometheus.CPUQuery,
			InstancesQuery: cc.Prometheus.InstancesQuery,
			Timeout:        cc.Timeout,
		})
		if err != nil {
			return nil, err
		}
		base = pc
	default:
		return nil, fmt.Errorf("unknown collector type %q", cc.Type)
	}

	m.SetCircuitBreakerState("collector", int(resilience.StateClosed))
	return collector.NewResilientCollector(collector.ResilientCollectorConfig{
		Collector:     base,
		MaxFailures:   cc.CircuitBreaker.MaxFailures,
		OpenTimeout:   cc.CircuitBreaker.Timeout,
		RetryAttempts: cc.RetryAttempts,
		RetryDelay:    cc.RetryDelay,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.WithComponent("collector").Warnf("Circuit %s: %s -> %s", name, from, to)
			m.SetCircuitBreakerState(name, int(to))
		},
	}), nil
}

// buildRedis returns the redis notifier, filtered to the configured event
// types, and the client to close on shutdown.
func buildRedis(cfg *config.Config) (notify.Notifier, func() error, error) {
	rc := cfg.Notifier.Redis
	if !rc.Enabled {
		return nil, nil, nil
	}

	redisCfg := notify.RedisConfig{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		Channel:  rc.Channel,
		Timeout:  rc.Timeout,
	}
	client := notify.NewRedisClient(redisCfg)
	var n notify.Notifier = notify.NewRedisNotifier(client, redisCfg)

	if len(rc.Types) > 0 {
		types, err := parseEventTypes(rc.Types)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		n = notify.Filter{Next: n, Types: types}
	}
	return n, client.Close, nil
}

func parseEventTypes(names []string) ([]models.EventType, error) {
	known := make(map[string]models.EventType)
	for _, t := range models.AllEventTypes() {
		known[string(t)] = t
	}
	types := make([]models.EventType, 0, len(names))
	for _, name := range names {
		t, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown event type %q", name)
		}
		types = append(types, t)
	}
	return types, nil
}

// buildLedgerStore opens the configured store. A postgres store reuses db when
// given and opens its own connection otherwise.
func buildLedgerStore(cfg *config.Config, db *database.DB) (ledger.Store, *database.DB, error) {
	switch cfg.Ledger.Store {
	case "", "memory":
		return ledger.NewMemoryStore(), db, nil
	case "bolt":
		store, err := ledger.NewBoltStore(cfg.Ledger.BoltPath)
		if err != nil {
			return nil, db, err
		}
		return store, db, nil
	case "postgres":
		if db == nil {
			opened, err := database.New(cfg.Database.ToDBConfig())
			if err != nil {
				return nil, nil, err
			}
			db = opened
		}
		return ledger.NewPostgresStore(db, cfg.Controller.FleetID), db, nil
	default:
		return nil, db, fmt.Errorf("unknown ledger store %q", cfg.Ledger.Store)
	}
}

func buildForecaster(cfg *config.Config) (*forecast.Forecaster, *forecast.Registry, error) {
	registry := forecast.NewRegistry()
	for name, params := range cfg.Forecast.Params {
		registry.Configure(name, params)
	}

	names := cfg.Forecast.Strategies
	if len(names) == 0 {
		names = forecast.DefaultStrategies
	}
	strategies, err := registry.Build(names)
	if err != nil {
		return nil, nil, err
	}

	f := forecast.New(forecast.Config{
		Horizon:         cfg.Forecast.Horizon,
		SampleInterval:  cfg.Controller.Interval,
		MinSamples:      cfg.Forecast.MinSamples,
		StrategyTimeout: cfg.Forecast.StrategyTimeout,
	}, strategies...)
	return f, registry, nil
}

func buildRetrainer(cfg *config.Config, registry *forecast.Registry) learner.Retrainer {
	rc := cfg.Learner.Retrainer
	if rc.Type == "http" {
		return learner.NewHTTPRetrainer(learner.HTTPRetrainerConfig{
			Endpoint: rc.Endpoint,
			FleetID:  cfg.Controller.FleetID,
			Timeout:  rc.Timeout,
		}, registry)
	}
	return learner.NoopRetrainer{}
}

func loadCtx(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(parent, d)
}
