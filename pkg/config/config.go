package config

import "time"

// Config is the root configuration for the Charon gateway.
type Config struct {
	// Server configures the HTTP front end.
	Server ServerConfig `yaml:"server"`

	// Classifier configures the categorization collaborator.
	Classifier UpstreamConfig `yaml:"classifier"`

	// Generator configures the completion collaborator.
	Generator UpstreamConfig `yaml:"generator"`

	// Pipeline configures per-stage timeout policy and request limits.
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Rules configures where RuleSet snapshots are loaded from.
	Rules RulesConfig `yaml:"rules"`

	// Audit configures decision provenance storage and retention.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	// ListenAddress is "host:port".
	// Default: "127.0.0.1:8787"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading an entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. Generation can take minutes,
	// so this must exceed the generation timeout.
	// Default: 15m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive idle connections.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig configures one collaborator client.
type UpstreamConfig struct {
	// BaseURL is the collaborator's base URL, no trailing slash.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds one call including retries. Classification and
	// generation may take minutes.
	// Default: 5m
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry count for transient failures. Forced to
	// zero for the generator regardless of this setting.
	// Default: 2 (classifier), 0 (generator)
	MaxRetries int `yaml:"max_retries"`

	// MaxConcurrent caps in-flight calls to the collaborator, matching its
	// real concurrent capacity. Zero disables the cap.
	// Default: 32
	MaxConcurrent int64 `yaml:"max_concurrent"`

	// MaxIdleConns and IdleConnTimeout tune the connection pool.
	// Defaults: 16, 90s
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	// ClassificationTimeout bounds the classification stage.
	// Default: 5m
	ClassificationTimeout time.Duration `yaml:"classification_timeout"`

	// GenerationTimeout bounds the generation stage. Independent of the
	// classification budget; there is no umbrella deadline.
	// Default: 10m
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// MaxPromptBytes rejects oversized prompts before any stage runs.
	// Zero disables the check.
	// Default: 1048576 (1MB)
	MaxPromptBytes int `yaml:"max_prompt_bytes"`
}

// RulesConfig configures RuleSet loading.
type RulesConfig struct {
	// Path is a ruleset YAML file or a directory of them.
	Path string `yaml:"path"`

	// Watch enables hot reload on file changes.
	// Default: true
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces rapid file events into one reload.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// AuditConfig configures decision provenance storage.
type AuditConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Retention controls pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls audit pruning.
type RetentionConfig struct {
	// MaxAgeDays deletes records older than this many days. Zero keeps
	// records forever.
	// Default: 90
	MaxAgeDays int `yaml:"max_age_days"`

	// MaxRecords caps total records. Zero means unlimited.
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is a cron expression for automatic pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace and Subsystem prefix all metric names.
	// Defaults: "charon", "pipeline"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}
