// Package config defines the configuration of a sprinkler run. It is loaded
// once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup.
package config

import (
	"time"

	"sprinkler/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	// SchedulePath is used when no path is given on the command line.
	SchedulePath string `envconfig:"SCHEDULE_PATH"`
	// Timezone decides what "today" is. Empty means the process local zone.
	Timezone string `envconfig:"TZ_NAME" validate:"omitempty,timezone"`

	// Domain Configurations
	Irrigation IrrigationConfig
	HTTP       HTTPConfig
	Sensor     SensorConfig
	Forecast   ForecastConfig
	Metrics    MetricsConfig
	AWS        AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// IrrigationConfig controls session splitting and dry runs.
type IrrigationConfig struct {
	MaxSessionDuration time.Duration `envconfig:"MAX_SESSION_DURATION" default:"300s" validate:"gt=0"`
	InterSessionDelay  time.Duration `envconfig:"INTER_SESSION_DELAY" default:"1200s" validate:"gt=0"`

	// DryRun logs valve triggers instead of sending them.
	DryRun bool `envconfig:"DRY_RUN" default:"false"`
}

// HTTPConfig applies to every outbound call: sensor, forecast and valves.
type HTTPConfig struct {
	Timeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`
	UserAgent string        `envconfig:"HTTP_USER_AGENT" default:"sprinkler/1.0"`
}

// SensorConfig locates the rain sensor status page. An empty URL disables
// the sensor.
type SensorConfig struct {
	URL string `envconfig:"RAIN_SENSOR_URL" default:"http://10.0.0.6/" validate:"omitempty,url"`
}

// ForecastConfig holds the forecast provider credentials and location.
type ForecastConfig struct {
	Enabled bool         `envconfig:"FORECAST_ENABLED" default:"true"`
	BaseURL string       `envconfig:"FORECAST_BASE_URL" default:"http://api.wunderground.com" validate:"required,url"`
	APIKey  SecretString `envconfig:"WUNDERGROUND_API_KEY" validate:"required_if=Enabled true"`
	State   string       `envconfig:"FORECAST_STATE" validate:"required_if=Enabled true"`
	Zip     string       `envconfig:"FORECAST_ZIP" validate:"required_if=Enabled true"`
	// PopLimit is the next-day probability of precipitation above which the
	// run is suppressed.
	PopLimit float64 `envconfig:"FORECAST_POP_LIMIT" default:"49" validate:"gte=0,lte=100"`
}

// MetricsConfig selects the telemetry sink.
type MetricsConfig struct {
	Backend        string `envconfig:"METRICS_BACKEND" default:"none" validate:"oneof=none cloudwatch pushgateway"`
	Namespace      string `envconfig:"METRIC_NAMESPACE" default:"Sprinkler" validate:"required"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL" validate:"required_if=Backend pushgateway"`
}

// AWSConfig holds regional configuration for SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Location returns the zone used to compute today's date.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		// Validation already rejected unknown zones.
		return time.Local
	}
	return loc
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
