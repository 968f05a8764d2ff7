package config

import (
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type Config struct {
	App          AppConfig          `mapstructure:"app" yaml:"app"`
	Controller   ControllerConfig   `mapstructure:"controller" yaml:"controller"`
	History      HistoryConfig      `mapstructure:"history" yaml:"history"`
	Forecast     ForecastConfig     `mapstructure:"forecast" yaml:"forecast"`
	Policy       PolicyConfig       `mapstructure:"policy" yaml:"policy"`
	Learner      LearnerConfig      `mapstructure:"learner" yaml:"learner"`
	Retry        RetryConfig        `mapstructure:"retry" yaml:"retry"`
	Collector    CollectorConfig    `mapstructure:"collector" yaml:"collector"`
	Fleet        FleetConfig        `mapstructure:"fleet" yaml:"fleet"`
	LoadBalancer LoadBalancerConfig `mapstructure:"load_balancer" yaml:"load_balancer"`
	Notifier     NotifierConfig     `mapstructure:"notifier" yaml:"notifier"`
	Ledger       LedgerConfig       `mapstructure:"ledger" yaml:"ledger"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
	API          APIConfig          `mapstructure:"api" yaml:"api"`
	WebSocket    WebSocketConfig    `mapstructure:"websocket" yaml:"websocket"`
	Prometheus   PrometheusConfig   `mapstructure:"prometheus" yaml:"prometheus"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name" yaml:"name"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type ControllerConfig struct {
	FleetID        string        `mapstructure:"fleet_id" yaml:"fleet_id"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	CollectTimeout time.Duration `mapstructure:"collect_timeout" yaml:"collect_timeout"`
	ExecuteTimeout time.Duration `mapstructure:"execute_timeout" yaml:"execute_timeout"`
}

type HistoryConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

type ForecastConfig struct {
	Horizon         time.Duration                 `mapstructure:"horizon" yaml:"horizon"`
	MinSamples      int                           `mapstructure:"min_samples" yaml:"min_samples"`
	StrategyTimeout time.Duration                 `mapstructure:"strategy_timeout" yaml:"strategy_timeout"`
	Strategies      []string                      `mapstructure:"strategies" yaml:"strategies"`
	Params          map[string]map[string]float64 `mapstructure:"params" yaml:"params,omitempty"`
}

type PolicyConfig struct {
	Thresholds models.PolicyThresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Schedule   ScheduleConfig          `mapstructure:"schedule" yaml:"schedule"`
}

type ScheduleConfig struct {
	Enabled  bool                `mapstructure:"enabled" yaml:"enabled"`
	Timezone string              `mapstructure:"timezone" yaml:"timezone"`
	Floor    int                 `mapstructure:"floor" yaml:"floor"`
	Windows  []PeakWindowConfig `mapstructure:"windows" yaml:"windows"`
}

type PeakWindowConfig struct {
	Days  []string `mapstructure:"days" yaml:"days,omitempty"`
	Start string   `mapstructure:"start" yaml:"start"`
	End   string   `mapstructure:"end" yaml:"end"`
}

type LearnerConfig struct {
	EveryTicks     uint64          `mapstructure:"every_ticks" yaml:"every_ticks"`
	FailureRatio   float64         `mapstructure:"failure_ratio" yaml:"failure_ratio"`
	MinSamples     int             `mapstructure:"min_samples" yaml:"min_samples"`
	Step           float64         `mapstructure:"step" yaml:"step"`
	ConfidenceStep float64         `mapstructure:"confidence_step" yaml:"confidence_step"`
	RetrainAfter   int             `mapstructure:"retrain_after" yaml:"retrain_after"`
	RetrainTimeout time.Duration   `mapstructure:"retrain_timeout" yaml:"retrain_timeout"`
	Retrainer      RetrainerConfig `mapstructure:"retrainer" yaml:"retrainer"`
}

type RetrainerConfig struct {
	Type     string        `mapstructure:"type" yaml:"type"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RetryConfig struct {
	BaseTicks  int     `mapstructure:"base_ticks" yaml:"base_ticks"`
	MaxTicks   int     `mapstructure:"max_ticks" yaml:"max_ticks"`
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
}

type CollectorConfig struct {
	Type           string                    `mapstructure:"type" yaml:"type"`
	Endpoint       string                    `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout        time.Duration             `mapstructure:"timeout" yaml:"timeout"`
	RetryAttempts  int                       `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay     time.Duration             `mapstructure:"retry_delay" yaml:"retry_delay"`
	CircuitBreaker CircuitBreakerConfig      `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	Prometheus     PrometheusCollectorConfig `mapstructure:"prometheus" yaml:"prometheus"`
	Trace          TraceConfig               `mapstructure:"trace" yaml:"trace"`
}

type CircuitBreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures" yaml:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type PrometheusCollectorConfig struct {
	CPUQuery       string `mapstructure:"cpu_query" yaml:"cpu_query"`
	InstancesQuery string `mapstructure:"instances_query" yaml:"instances_query"`
}

type TraceConfig struct {
	Pattern            string  `mapstructure:"pattern" yaml:"pattern"`
	BaseCPU            float64 `mapstructure:"base_cpu" yaml:"base_cpu"`
	ReferenceInstances int     `mapstructure:"reference_instances" yaml:"reference_instances"`
}

type FleetConfig struct {
	Type             string        `mapstructure:"type" yaml:"type"`
	Endpoint         string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	InitialInstances int           `mapstructure:"initial_instances" yaml:"initial_instances"`
	ProvisionTime    time.Duration `mapstructure:"provision_time" yaml:"provision_time"`
	DrainTime        time.Duration `mapstructure:"drain_time" yaml:"drain_time"`
	Namespace        string        `mapstructure:"namespace" yaml:"namespace"`
	Deployment       string        `mapstructure:"deployment" yaml:"deployment"`
	Kubeconfig       string        `mapstructure:"kubeconfig" yaml:"kubeconfig"`
}

type LoadBalancerConfig struct {
	Type     string        `mapstructure:"type" yaml:"type"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type NotifierConfig struct {
	BusBuffer int         `mapstructure:"bus_buffer" yaml:"bus_buffer"`
	Redis     RedisConfig `mapstructure:"redis" yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"-"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Channel  string        `mapstructure:"channel" yaml:"channel"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Types    []string      `mapstructure:"types" yaml:"types,omitempty"`
}

type LedgerConfig struct {
	Store    string `mapstructure:"store" yaml:"store"`
	BoltPath string `mapstructure:"bolt_path" yaml:"bolt_path"`
}

type DatabaseConfig struct {
	Host             string        `mapstructure:"host" yaml:"host"`
	Port             int           `mapstructure:"port" yaml:"port"`
	Name             string        `mapstructure:"name" yaml:"name"`
	User             string        `mapstructure:"user" yaml:"user"`
	Password         string        `mapstructure:"password" yaml:"-"`
	MaxConnections   int           `mapstructure:"max_connections" yaml:"max_connections"`
	SSLMode          string        `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	PingTimeout      time.Duration `mapstructure:"ping_timeout" yaml:"ping_timeout"`
	MigrationTimeout time.Duration `mapstructure:"migration_timeout" yaml:"migration_timeout"`
}

type APIConfig struct {
	Enabled      bool             `mapstructure:"enabled" yaml:"enabled"`
	Port         int              `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration    `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration    `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration    `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	JWTSecret    string           `mapstructure:"jwt_secret" yaml:"-"`
	JWTDuration  time.Duration    `mapstructure:"jwt_duration" yaml:"jwt_duration"`
	JWTIssuer    string           `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	Operators    []OperatorConfig `mapstructure:"operators" yaml:"operators"`
	DefaultLimit int              `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int              `mapstructure:"max_limit" yaml:"max_limit"`
	CORS         CORSConfig       `mapstructure:"cors" yaml:"cors"`
}

// OperatorConfig is an API user; PasswordHash is a bcrypt hash as printed by
// the hash-password command.
type OperatorConfig struct {
	Username     string `mapstructure:"username" yaml:"username"`
	PasswordHash string `mapstructure:"password_hash" yaml:"-"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials" yaml:"allow_credentials"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections" yaml:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout" yaml:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size" yaml:"write_buffer_size"`
	ClientBuffer    int           `mapstructure:"client_buffer" yaml:"client_buffer"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}
