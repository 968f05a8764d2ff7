package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/autoscaler")
	}

	v.SetEnvPrefix("AUTOSCALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file: defaults and env vars only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "predictive-autoscaler")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Controller defaults
	v.SetDefault("controller.fleet_id", "default")
	v.SetDefault("controller.interval", "60s")
	v.SetDefault("controller.collect_timeout", "10s")
	v.SetDefault("controller.execute_timeout", "30s")

	v.SetDefault("history.capacity", 1440)

	// Forecast defaults
	v.SetDefault("forecast.horizon", "30m")
	v.SetDefault("forecast.min_samples", 60)
	v.SetDefault("forecast.strategy_timeout", "3s")
	v.SetDefault("forecast.strategies", []string{"linear", "holt", "moving_average", "seasonal"})

	// Policy defaults
	v.SetDefault("policy.thresholds.scale_up_load", 80.0)
	v.SetDefault("policy.thresholds.scale_up_confidence", 0.7)
	v.SetDefault("policy.thresholds.scale_down_load", 20.0)
	v.SetDefault("policy.thresholds.scale_down_current", 30.0)
	v.SetDefault("policy.thresholds.min_instances", 2)
	v.SetDefault("policy.thresholds.max_instances", 20)
	v.SetDefault("policy.schedule.enabled", true)
	v.SetDefault("policy.schedule.timezone", "UTC")
	v.SetDefault("policy.schedule.floor", 5)
	v.SetDefault("policy.schedule.windows", []map[string]any{
		{"start": "09:00", "end": "11:59"},
		{"start": "14:00", "end": "16:59"},
	})

	// Learner defaults
	v.SetDefault("learner.every_ticks", 10)
	v.SetDefault("learner.failure_ratio", 0.3)
	v.SetDefault("learner.min_samples", 3)
	v.SetDefault("learner.step", 5.0)
	v.SetDefault("learner.confidence_step", 0.05)
	v.SetDefault("learner.retrain_after", 100)
	v.SetDefault("learner.retrain_timeout", "5m")
	v.SetDefault("learner.retrainer.type", "noop")
	v.SetDefault("learner.retrainer.timeout", "2m")

	// Retry defaults
	v.SetDefault("retry.base_ticks", 1)
	v.SetDefault("retry.max_ticks", 10)
	v.SetDefault("retry.multiplier", 2.0)

	// Collector defaults
	v.SetDefault("collector.type", "http")
	v.SetDefault("collector.endpoint", "http://localhost:9000")
	v.SetDefault("collector.timeout", "5s")
	v.SetDefault("collector.retry_attempts", 3)
	v.SetDefault("collector.retry_delay", "1s")
	v.SetDefault("collector.circuit_breaker.max_failures", 5)
	v.SetDefault("collector.circuit_breaker.timeout", "30s")
	v.SetDefault("collector.trace.pattern", "daily")
	v.SetDefault("collector.trace.base_cpu", 50.0)

	// Fleet defaults
	v.SetDefault("fleet.type", "simulated")
	v.SetDefault("fleet.endpoint", "http://localhost:9000")
	v.SetDefault("fleet.timeout", "10s")
	v.SetDefault("fleet.initial_instances", 2)
	v.SetDefault("fleet.provision_time", "10s")
	v.SetDefault("fleet.drain_time", "30s")
	v.SetDefault("fleet.namespace", "default")

	v.SetDefault("load_balancer.type", "noop")
	v.SetDefault("load_balancer.timeout", "10s")

	// Notifier defaults
	v.SetDefault("notifier.bus_buffer", 100)
	v.SetDefault("notifier.redis.enabled", false)
	v.SetDefault("notifier.redis.addr", "localhost:6379")
	v.SetDefault("notifier.redis.channel", "autoscaler:events")
	v.SetDefault("notifier.redis.timeout", "2s")

	v.SetDefault("ledger.store", "memory")
	v.SetDefault("ledger.bolt_path", "data/ledger.db")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "autoscaler")
	v.SetDefault("database.user", "admin")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.ping_timeout", "5s")
	v.SetDefault("database.migration_timeout", "60s")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.idle_timeout", "60s")
	v.SetDefault("api.jwt_secret", "change-me-in-production")
	v.SetDefault("api.jwt_duration", "24h")
	v.SetDefault("api.jwt_issuer", "predictive-autoscaler")
	v.SetDefault("api.default_limit", 100)
	v.SetDefault("api.max_limit", 1000)
	v.SetDefault("api.cors.allowed_origins", []string{"*"})
	v.SetDefault("api.cors.allowed_methods", []string{"GET", "PUT", "POST", "OPTIONS"})
	v.SetDefault("api.cors.allowed_headers", []string{"Authorization", "Content-Type", "X-Trace-ID"})

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.client_buffer", 256)

	// Prometheus defaults
	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)
}
