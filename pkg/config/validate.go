package config

import (
	"fmt"
	"net"
)

// Validate checks the configuration for internally inconsistent or missing
// values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", c.Server.ListenAddress, err)
	}

	if c.Classifier.BaseURL == "" {
		return fmt.Errorf("classifier.base_url is required")
	}
	if c.Generator.BaseURL == "" {
		return fmt.Errorf("generator.base_url is required")
	}

	if c.Classifier.MaxRetries < 0 {
		return fmt.Errorf("classifier.max_retries must be >= 0")
	}
	if c.Generator.MaxRetries != 0 {
		return fmt.Errorf("generator.max_retries must be 0: generation is single-attempt")
	}

	if c.Pipeline.ClassificationTimeout <= 0 {
		return fmt.Errorf("pipeline.classification_timeout must be positive")
	}
	if c.Pipeline.GenerationTimeout <= 0 {
		return fmt.Errorf("pipeline.generation_timeout must be positive")
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.Pipeline.GenerationTimeout {
		return fmt.Errorf("server.write_timeout %s is shorter than pipeline.generation_timeout %s",
			c.Server.WriteTimeout, c.Pipeline.GenerationTimeout)
	}

	if c.Rules.Path == "" {
		return fmt.Errorf("rules.path is required")
	}

	switch c.Audit.Backend {
	case "sqlite":
		if c.Audit.Path == "" {
			return fmt.Errorf("audit.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("audit.backend %q must be sqlite or memory", c.Audit.Backend)
	}
	if c.Audit.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("audit.retention.max_age_days must be >= 0")
	}
	if c.Audit.Retention.MaxRecords < 0 {
		return fmt.Errorf("audit.retention.max_records must be >= 0")
	}

	return nil
}
