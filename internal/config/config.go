// Package config provides configuration management for the world engine.
// It supports loading configuration from environment variables and config files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the world engine.
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Persistence configuration
	Persistence PersistenceConfig `mapstructure:"persistence"`

	// Logging configuration
	Log LogConfig `mapstructure:"log"`

	// Debounce configuration
	Debounce DebounceConfig `mapstructure:"debounce"`

	// Integrity configuration
	Integrity IntegrityConfig `mapstructure:"integrity"`

	// AreaGen configuration
	AreaGen AreaGenConfig `mapstructure:"areagen"`

	// Temporal configuration
	Temporal TemporalConfig `mapstructure:"temporal"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	Environment    string  `mapstructure:"environment"`
	ExporterType   string  `mapstructure:"exporter_type"` // otlp-http, otlp-grpc, noop
	Endpoint       string  `mapstructure:"endpoint"`
	Insecure       bool    `mapstructure:"insecure"`
	SampleRate     float64 `mapstructure:"sample_rate"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort            int           `mapstructure:"http_port"`
	MaxConcurrentReqs   int           `mapstructure:"max_concurrent_requests"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	EnableTracing       bool          `mapstructure:"enable_tracing"`
	CORSOrigins         []string      `mapstructure:"cors_origins"`
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
}

// PersistenceMode selects the storage backend. Memory mode runs entirely
// in-process for local dev and tests; cosmos mode requires every container
// name below to be set and is validated fail-fast at Load time.
type PersistenceMode string

const (
	PersistenceModeMemory PersistenceMode = "memory"
	PersistenceModeCosmos PersistenceMode = "cosmos"
)

// PersistenceConfig holds storage backend settings, including the
// container/bucket names each store partitions into when Mode is cosmos.
type PersistenceConfig struct {
	Mode       PersistenceMode      `mapstructure:"mode"`
	DataDir    string               `mapstructure:"data_dir"`
	SyncWrites bool                 `mapstructure:"sync_writes"`
	Containers ContainerNamesConfig `mapstructure:"containers"`
}

// ContainerNamesConfig names the cosmos containers each component
// partitions into. Required (non-empty) only when Persistence.Mode is cosmos.
type ContainerNamesConfig struct {
	EventLog        string `mapstructure:"event_log"`
	Layer           string `mapstructure:"layer"`
	WorldClock      string `mapstructure:"world_clock"`
	LocationClock   string `mapstructure:"location_clock"`
	DeadLetter      string `mapstructure:"dead_letter"`
	Debounce        string `mapstructure:"debounce"`
	ProcessedEvents string `mapstructure:"processed_events"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, file path
}

// DebounceConfig holds exit-hint debounce settings (§4.10).
type DebounceConfig struct {
	WindowMS int `mapstructure:"window_ms"`
}

// WindowDuration returns WindowMS as a time.Duration.
func (d DebounceConfig) WindowDuration() time.Duration {
	return time.Duration(d.WindowMS) * time.Millisecond
}

// IntegrityConfig holds description-layer integrity job settings (§4.6).
type IntegrityConfig struct {
	BatchSize    int  `mapstructure:"batch_size"`
	RecomputeAll bool `mapstructure:"recompute_all"`
}

// AreaGenConfig holds area generation orchestrator settings (§4.9).
type AreaGenConfig struct {
	MaxBudgetLocations int `mapstructure:"max_budget_locations"`
}

// TemporalConfig holds world-clock/location-clock reconciliation tunables
// (§4.4, §4.5). EpsilonMS must be strictly less than SlowThresholdMS.
type TemporalConfig struct {
	EpsilonMS           int     `mapstructure:"epsilon_ms"`
	SlowThresholdMS     int     `mapstructure:"slow_threshold_ms"`
	CompressThresholdMS int     `mapstructure:"compress_threshold_ms"`
	DriftRate           float64 `mapstructure:"drift_rate"`
	WaitMaxStepMS       int     `mapstructure:"wait_max_step_ms"`
	SlowMaxStepMS       int     `mapstructure:"slow_max_step_ms"`
}

// Default configuration values.
var defaults = map[string]interface{}{
	// Server defaults
	"server.http_port":               8080,
	"server.max_concurrent_requests": 100,
	"server.request_timeout":         "30s",
	"server.enable_tracing":          false,
	"server.cors_origins":            []string{"*"},
	"server.shutdown_grace_period":   "10s",

	// Persistence defaults
	"persistence.mode":        "memory",
	"persistence.data_dir":    "./data",
	"persistence.sync_writes": false,

	// Log defaults
	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	// Debounce defaults
	"debounce.window_ms": 60000,

	// Integrity defaults
	"integrity.batch_size":    100,
	"integrity.recompute_all": false,

	// AreaGen defaults
	"areagen.max_budget_locations": 20,

	// Temporal defaults
	"temporal.epsilon_ms":            50,
	"temporal.slow_threshold_ms":     2000,
	"temporal.compress_threshold_ms": 5000,
	"temporal.drift_rate":            0.1,
	"temporal.wait_max_step_ms":      1000,
	"temporal.slow_max_step_ms":      250,

	// Tracing defaults
	"tracing.enabled":         false,
	"tracing.service_name":    "worldengine",
	"tracing.service_version": "1.0.0",
	"tracing.environment":     "development",
	"tracing.exporter_type":   "otlp-http",
	"tracing.endpoint":        "localhost:4318",
	"tracing.insecure":        true,
	"tracing.sample_rate":     1.0,
}

// Load loads configuration from environment variables and optional config file.
// Environment variables are prefixed with WORLDENGINE_ and use underscores.
// Example: WORLDENGINE_SERVER_HTTP_PORT=8080
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Environment variables
	v.SetEnvPrefix("WORLDENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map flat env vars named in §6 onto the nested structure
	bindFlatEnvVars(v)

	// Try to read config file (optional)
	v.SetConfigName("worldengine")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/worldengine")
	v.AddConfigPath("$HOME/.worldengine")

	// It's okay if config file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindFlatEnvVars maps the flat environment variable names recognized by
// §6 (e.g. EXIT_HINT_DEBOUNCE_MS) onto the nested config structure, so
// operators can set them without the WORLDENGINE_ prefix/nesting.
func bindFlatEnvVars(v *viper.Viper) {
	flatMappings := map[string]string{
		"PERSISTENCE_MODE":               "persistence.mode",
		"DATA_DIR":                       "persistence.data_dir",
		"EVENTLOG_CONTAINER":             "persistence.containers.event_log",
		"LAYER_CONTAINER":                "persistence.containers.layer",
		"WORLDCLOCK_CONTAINER":           "persistence.containers.world_clock",
		"LOCATIONCLOCK_CONTAINER":        "persistence.containers.location_clock",
		"DEADLETTER_CONTAINER":           "persistence.containers.dead_letter",
		"DEBOUNCE_CONTAINER":             "persistence.containers.debounce",
		"PROCESSEDEVENTS_CONTAINER":      "persistence.containers.processed_events",
		"HTTP_PORT":                      "server.http_port",
		"LOG_LEVEL":                      "log.level",
		"LOG_FORMAT":                     "log.format",
		"EXIT_HINT_DEBOUNCE_MS":          "debounce.window_ms",
		"INTEGRITY_JOB_BATCH_SIZE":       "integrity.batch_size",
		"INTEGRITY_JOB_RECOMPUTE_ALL":    "integrity.recompute_all",
		"MAX_BUDGET_LOCATIONS":           "areagen.max_budget_locations",
		"TEMPORAL_EPSILON_MS":            "temporal.epsilon_ms",
		"TEMPORAL_SLOW_THRESHOLD_MS":     "temporal.slow_threshold_ms",
		"TEMPORAL_COMPRESS_THRESHOLD_MS": "temporal.compress_threshold_ms",
		"TEMPORAL_DRIFT_RATE":            "temporal.drift_rate",
		"TEMPORAL_WAIT_MAX_STEP_MS":      "temporal.wait_max_step_ms",
		"TEMPORAL_SLOW_MAX_STEP_MS":      "temporal.slow_max_step_ms",
	}

	for envName, configKey := range flatMappings {
		_ = v.BindEnv(configKey, envName)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	validModes := map[PersistenceMode]bool{PersistenceModeMemory: true, PersistenceModeCosmos: true}
	if !validModes[c.Persistence.Mode] {
		return fmt.Errorf("invalid persistence mode: %s (valid: memory, cosmos)", c.Persistence.Mode)
	}

	if c.Persistence.Mode == PersistenceModeCosmos {
		if err := c.Persistence.Containers.validate(); err != nil {
			return err
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Log.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Log.Format)
	}

	if c.Debounce.WindowMS < 0 {
		return fmt.Errorf("debounce window must be non-negative: %d", c.Debounce.WindowMS)
	}
	if c.Integrity.BatchSize < 1 {
		return fmt.Errorf("integrity batch size must be at least 1: %d", c.Integrity.BatchSize)
	}
	if c.AreaGen.MaxBudgetLocations < 1 {
		return fmt.Errorf("areagen max budget locations must be at least 1: %d", c.AreaGen.MaxBudgetLocations)
	}

	return c.Temporal.validate()
}

// validate enforces §6's "required in cosmos mode, fail-fast on startup
// when missing" rule for every container name.
func (n ContainerNamesConfig) validate() error {
	named := map[string]string{
		"event_log":        n.EventLog,
		"layer":            n.Layer,
		"world_clock":      n.WorldClock,
		"location_clock":   n.LocationClock,
		"dead_letter":      n.DeadLetter,
		"debounce":         n.Debounce,
		"processed_events": n.ProcessedEvents,
	}
	for name, value := range named {
		if value == "" {
			return fmt.Errorf("persistence.containers.%s is required when persistence.mode is cosmos", name)
		}
	}
	return nil
}

// validate enforces the epsilon < slowThreshold constraint and
// non-negativity of every tunable (§6 Configuration).
func (t TemporalConfig) validate() error {
	if t.EpsilonMS < 0 || t.SlowThresholdMS < 0 || t.CompressThresholdMS < 0 ||
		t.DriftRate < 0 || t.WaitMaxStepMS < 0 || t.SlowMaxStepMS < 0 {
		return fmt.Errorf("temporal tunables must all be non-negative")
	}
	if t.EpsilonMS >= t.SlowThresholdMS {
		return fmt.Errorf("temporal.epsilon_ms (%d) must be less than temporal.slow_threshold_ms (%d)", t.EpsilonMS, t.SlowThresholdMS)
	}
	return nil
}

// String returns a string representation of the config (without sensitive values).
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: {HTTP: %d}, Persistence: {Mode: %s, Dir: %s}, Log: {Level: %s}}",
		c.Server.HTTPPort,
		c.Persistence.Mode,
		c.Persistence.DataDir,
		c.Log.Level,
	)
}
