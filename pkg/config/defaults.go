package config

import "time"

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:   "127.0.0.1:8787",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    15 * time.Minute,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Classifier: UpstreamConfig{
			Timeout:         5 * time.Minute,
			MaxRetries:      2,
			MaxConcurrent:   32,
			MaxIdleConns:    16,
			IdleConnTimeout: 90 * time.Second,
		},
		Generator: UpstreamConfig{
			Timeout:         10 * time.Minute,
			MaxRetries:      0,
			MaxConcurrent:   32,
			MaxIdleConns:    16,
			IdleConnTimeout: 90 * time.Second,
		},
		Pipeline: PipelineConfig{
			ClassificationTimeout: 5 * time.Minute,
			GenerationTimeout:     10 * time.Minute,
			MaxPromptBytes:        1 << 20,
		},
		Rules: RulesConfig{
			Path:          "rules/",
			Watch:         true,
			WatchDebounce: 100 * time.Millisecond,
		},
		Audit: AuditConfig{
			Backend: "sqlite",
			Path:    "data/audit.db",
			Retention: RetentionConfig{
				MaxAgeDays: 90,
				Schedule:   "0 3 * * *",
			},
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "charon",
				Subsystem: "pipeline",
			},
		},
	}
}

// applyDefaults fills zero values in cfg from Default.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = def.Server.ListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}

	applyUpstreamDefaults(&cfg.Classifier, &def.Classifier)
	applyUpstreamDefaults(&cfg.Generator, &def.Generator)

	if cfg.Pipeline.ClassificationTimeout == 0 {
		cfg.Pipeline.ClassificationTimeout = def.Pipeline.ClassificationTimeout
	}
	if cfg.Pipeline.GenerationTimeout == 0 {
		cfg.Pipeline.GenerationTimeout = def.Pipeline.GenerationTimeout
	}
	if cfg.Pipeline.MaxPromptBytes == 0 {
		cfg.Pipeline.MaxPromptBytes = def.Pipeline.MaxPromptBytes
	}

	if cfg.Rules.Path == "" {
		cfg.Rules.Path = def.Rules.Path
	}
	if cfg.Rules.WatchDebounce == 0 {
		cfg.Rules.WatchDebounce = def.Rules.WatchDebounce
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = def.Audit.Backend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = def.Audit.Path
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = def.Audit.Retention.Schedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = def.Telemetry.Logging.Level
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = def.Telemetry.Logging.Format
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = def.Telemetry.Metrics.Namespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = def.Telemetry.Metrics.Subsystem
	}
}

// applyUpstreamDefaults fills zero values for one collaborator.
func applyUpstreamDefaults(cfg, def *UpstreamConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
}
