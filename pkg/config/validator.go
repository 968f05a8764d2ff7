package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/validation"
)

var (
	validModes       = map[string]bool{"development": true, "production": true, "test": true}
	validLogLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validCollectors  = map[string]bool{"http": true, "prometheus": true, "trace": true}
	validFleets      = map[string]bool{"simulated": true, "http": true, "kubernetes": true}
	validBalancers   = map[string]bool{"noop": true, "http": true}
	validLedgers     = map[string]bool{"memory": true, "bolt": true, "postgres": true}
	validRetrainers  = map[string]bool{"noop": true, "http": true}
	knownStrategies  = []string{"holt", "linear", "moving_average", "seasonal", "trend"}
	defaultJWTSecret = "change-me-in-production"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}
	if !validModes[c.App.Mode] {
		errs = append(errs, errors.New("app.mode must be one of: development, production, test"))
	}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, errors.New("app.log_level must be one of: debug, info, warn, error"))
	}

	// Controller validation
	if c.Controller.FleetID == "" {
		errs = append(errs, errors.New("controller.fleet_id is required"))
	} else if err := validation.ValidateFleetID(c.Controller.FleetID); err != nil {
		errs = append(errs, fmt.Errorf("controller.fleet_id: %w", err))
	}
	if c.Controller.Interval <= 0 {
		errs = append(errs, errors.New("controller.interval must be positive"))
	}
	if c.Controller.CollectTimeout <= 0 {
		errs = append(errs, errors.New("controller.collect_timeout must be positive"))
	}
	if c.Controller.CollectTimeout >= c.Controller.Interval {
		errs = append(errs, errors.New("controller.collect_timeout must be less than controller.interval"))
	}

	if c.History.Capacity <= 0 {
		errs = append(errs, errors.New("history.capacity must be positive"))
	}

	// Forecast validation
	if c.Forecast.Horizon <= 0 {
		errs = append(errs, errors.New("forecast.horizon must be positive"))
	}
	if c.Forecast.MinSamples <= 0 {
		errs = append(errs, errors.New("forecast.min_samples must be positive"))
	}
	if c.Forecast.MinSamples > c.History.Capacity {
		errs = append(errs, errors.New("forecast.min_samples must not exceed history.capacity"))
	}
	for _, name := range c.Forecast.Strategies {
		if !slices.Contains(knownStrategies, name) {
			errs = append(errs, fmt.Errorf("forecast.strategies: unknown strategy %q", name))
		}
	}

	// Policy validation
	if err := c.Policy.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("policy.thresholds: %w", err))
	}
	if c.Policy.Schedule.Enabled {
		if _, err := c.Policy.Schedule.Build(); err != nil {
			errs = append(errs, fmt.Errorf("policy.schedule: %w", err))
		} else if c.Policy.Schedule.Floor > c.Policy.Thresholds.MaxInstances {
			errs = append(errs, errors.New("policy.schedule.floor must not exceed policy.thresholds.max_instances"))
		}
	}

	// Learner validation
	if c.Learner.EveryTicks == 0 {
		errs = append(errs, errors.New("learner.every_ticks must be positive"))
	}
	if c.Learner.FailureRatio < 0 || c.Learner.FailureRatio >= 1 {
		errs = append(errs, errors.New("learner.failure_ratio must be in [0, 1)"))
	}
	if c.Learner.Step <= 0 {
		errs = append(errs, errors.New("learner.step must be positive"))
	}
	if !validRetrainers[c.Learner.Retrainer.Type] {
		errs = append(errs, errors.New("learner.retrainer.type must be one of: noop, http"))
	} else if c.Learner.Retrainer.Type == "http" && c.Learner.Retrainer.Endpoint == "" {
		errs = append(errs, errors.New("learner.retrainer.endpoint is required for the http retrainer"))
	}

	// Retry validation
	if c.Retry.BaseTicks < 0 {
		errs = append(errs, errors.New("retry.base_ticks must not be negative"))
	}
	if c.Retry.MaxTicks < c.Retry.BaseTicks {
		errs = append(errs, errors.New("retry.max_ticks must be >= retry.base_ticks"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry.multiplier must be >= 1"))
	}

	// Collector validation
	if !validCollectors[c.Collector.Type] {
		errs = append(errs, errors.New("collector.type must be one of: http, prometheus, trace"))
	} else if c.Collector.Type != "trace" && c.Collector.Endpoint == "" {
		errs = append(errs, fmt.Errorf("collector.endpoint is required for the %s collector", c.Collector.Type))
	}
	if c.Collector.Timeout <= 0 {
		errs = append(errs, errors.New("collector.timeout must be positive"))
	}

	// Fleet validation
	if !validFleets[c.Fleet.Type] {
		errs = append(errs, errors.New("fleet.type must be one of: simulated, http, kubernetes"))
	}
	switch c.Fleet.Type {
	case "http":
		if c.Fleet.Endpoint == "" {
			errs = append(errs, errors.New("fleet.endpoint is required for the http fleet"))
		}
	case "kubernetes":
		if c.Fleet.Deployment == "" {
			errs = append(errs, errors.New("fleet.deployment is required for the kubernetes fleet"))
		}
	case "simulated":
		if c.Fleet.InitialInstances < 0 {
			errs = append(errs, errors.New("fleet.initial_instances must not be negative"))
		}
	}
	if !validBalancers[c.LoadBalancer.Type] {
		errs = append(errs, errors.New("load_balancer.type must be one of: noop, http"))
	} else if c.LoadBalancer.Type == "http" && c.LoadBalancer.Endpoint == "" {
		errs = append(errs, errors.New("load_balancer.endpoint is required for the http load balancer"))
	}

	if c.Notifier.BusBuffer <= 0 {
		errs = append(errs, errors.New("notifier.bus_buffer must be positive"))
	}
	if c.Notifier.Redis.Enabled && c.Notifier.Redis.Addr == "" {
		errs = append(errs, errors.New("notifier.redis.addr is required when redis is enabled"))
	}

	// Ledger validation
	if !validLedgers[c.Ledger.Store] {
		errs = append(errs, errors.New("ledger.store must be one of: memory, bolt, postgres"))
	}
	if c.Ledger.Store == "bolt" && c.Ledger.BoltPath == "" {
		errs = append(errs, errors.New("ledger.bolt_path is required for the bolt store"))
	}
	if c.Ledger.Store == "postgres" {
		errs = append(errs, c.Database.validate()...)
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			errs = append(errs, errors.New("api.port must be between 1 and 65535"))
		}
		if c.App.Mode == "production" && c.API.JWTSecret == defaultJWTSecret {
			errs = append(errs, errors.New("api.jwt_secret must be changed in production"))
		}
		for i, op := range c.API.Operators {
			if op.Username == "" || op.PasswordHash == "" {
				errs = append(errs, fmt.Errorf("api.operators[%d] needs username and password_hash", i))
			} else if err := validation.ValidateUsername(op.Username); err != nil {
				errs = append(errs, fmt.Errorf("api.operators[%d]: %w", i, err))
			}
		}
	}

	if c.Prometheus.Enabled && (c.Prometheus.Port <= 0 || c.Prometheus.Port > 65535) {
		errs = append(errs, errors.New("prometheus.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}

func (d DatabaseConfig) validate() []error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if d.Port <= 0 || d.Port > 65535 {
		errs = append(errs, errors.New("database.port must be between 1 and 65535"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if d.MaxConnections <= 0 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}
	return errs
}

// LoadLocation resolves the schedule timezone, defaulting to UTC.
func (s ScheduleConfig) LoadLocation() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}
