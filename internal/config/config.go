// Package config defines the process configuration for AirWatch. It is loaded
// once at startup and treated as read-only afterwards.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format aborts startup.
package config

import (
	"time"

	"airwatch/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for it.
type SecretString = types.SecretString

// Push provider names accepted by PUSH_PROVIDER.
const (
	PushProviderFCM  = "fcm"
	PushProviderStub = "stub"
)

// Metrics backends accepted by METRICS_BACKEND.
const (
	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"airwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Timezone    string `envconfig:"TIMEZONE" default:"Asia/Ho_Chi_Minh"`

	// Location is Timezone resolved by LoadConfig.
	Location *time.Location `ignored:"true" validate:"-"`

	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	AWS           AWSConfig
	Evaluation    EvaluationConfig
	Status        StatusConfig
	Alert         AlertConfig
	Push          PushConfig
	Sensor        SensorConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string   `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	// bcrypt hash of the key guarding the write endpoints. Empty disables the
	// check, which is only accepted outside prod.
	APIKeyHash SecretString `envconfig:"API_KEY_HASH"`

	RequestTimeout     time.Duration `envconfig:"API_REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	RateLimitPerMinute int           `envconfig:"API_RATE_LIMIT_PER_MINUTE" default:"600" validate:"gte=0"`
	// Failed API key attempts from one IP within 15 minutes before the IP
	// is refused. Zero disables blocking.
	AuthFailureLimit int `envconfig:"API_AUTH_FAILURE_LIMIT" default:"10" validate:"gte=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL             SecretString  `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"min=1"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"min=0,ltefield=MaxConns"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// CacheConfig holds the latest-reading cache settings. An empty Addr
// disables the cache.
type CacheConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR"`
	Password  SecretString  `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0" validate:"min=0"`
	LatestTTL time.Duration `envconfig:"REDIS_LATEST_TTL" default:"10m"`
}

// Enabled reports whether a Redis address was configured.
func (c CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region         string `envconfig:"AWS_REGION" default:"us-east-1"`
	IngestQueueURL string `envconfig:"SQS_INGEST_QUEUE_URL" validate:"omitempty,url"`
	AlertEventsURL string `envconfig:"SQS_ALERT_EVENTS_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// EvaluationConfig tunes the periodic evaluation cycle.
type EvaluationConfig struct {
	Interval        time.Duration `envconfig:"EVAL_INTERVAL" default:"60s" validate:"gt=0"`
	RetrainInterval time.Duration `envconfig:"EVAL_RETRAIN_INTERVAL" default:"1h" validate:"gt=0"`
	NodeTimeout     time.Duration `envconfig:"EVAL_NODE_TIMEOUT" default:"30s" validate:"gt=0"`
	Workers         int           `envconfig:"EVAL_WORKERS" default:"4" validate:"min=1"`
	ActiveWindow    time.Duration `envconfig:"EVAL_ACTIVE_WINDOW" default:"5m" validate:"gt=0"`
	ReadingMaxAge   time.Duration `envconfig:"EVAL_READING_MAX_AGE" default:"5m" validate:"gt=0"`
	HistoryWindow   time.Duration `envconfig:"EVAL_HISTORY_WINDOW" default:"168h" validate:"gt=0"`
	ShutdownGrace   time.Duration `envconfig:"EVAL_SHUTDOWN_GRACE" default:"10s" validate:"gte=0"`
}

// StatusConfig tunes the read-path queries.
type StatusConfig struct {
	ReadingMaxAge time.Duration `envconfig:"STATUS_READING_MAX_AGE" default:"10m" validate:"gt=0"`
}

// AlertConfig holds the dispatcher settings.
type AlertConfig struct {
	Cooldown    time.Duration `envconfig:"ALERT_COOLDOWN" default:"30m" validate:"gt=0"`
	SendTimeout time.Duration `envconfig:"ALERT_SEND_TIMEOUT" default:"10s" validate:"gt=0"`
}

// PushConfig selects and configures the push transport.
type PushConfig struct {
	Provider           string       `envconfig:"PUSH_PROVIDER" default:"fcm" validate:"oneof=fcm stub"`
	FCMProjectID       string       `envconfig:"FCM_PROJECT_ID"`
	FCMCredentialsJSON SecretString `envconfig:"FCM_CREDENTIALS_JSON"`
}

// SensorConfig holds the physical limits applied to incoming readings.
type SensorConfig struct {
	PM25Max float64 `envconfig:"SENSOR_PM25_MAX" default:"500" validate:"gt=0"`
	PM10Max float64 `envconfig:"SENSOR_PM10_MAX" default:"600" validate:"gt=0"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"AirWatch"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
