package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"sentrix-hq/charon/pkg/audit"
	"sentrix-hq/charon/pkg/config"
	"sentrix-hq/charon/pkg/filter/source"
	"sentrix-hq/charon/pkg/pipeline"
	"sentrix-hq/charon/pkg/server"
	"sentrix-hq/charon/pkg/telemetry/logging"
	"sentrix-hq/charon/pkg/telemetry/metrics"
	"sentrix-hq/charon/pkg/upstream"
	"sentrix-hq/charon/pkg/upstream/classifier"
	"sentrix-hq/charon/pkg/upstream/generator"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Charon gateway",
	Long: `Start the Charon gateway with the specified configuration.

The gateway listens on the configured address and runs every inbound prompt
through the filtering pipeline: classification, rule evaluation, and (when
allowed) generation.

Examples:
  # Start with default config
  charon run

  # Start with custom config
  charon run --config /etc/charon/config.yaml

  # Override listen address
  charon run --listen 0.0.0.0:8787

  # Validate config and ruleset without starting
  charon run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and ruleset without starting")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	// Load the initial ruleset; refusing to start without one beats
	// starting with nothing to enforce.
	ruleSource := source.NewFileSource(cfg.Rules.Path, logger)
	ruleSet, err := ruleSource.Load()
	if err != nil {
		return fmt.Errorf("failed to load ruleset: %w", err)
	}
	store := source.NewStore(ruleSet)

	if runFlags.dryRun {
		logger.Info("configuration and ruleset valid, exiting (dry run)",
			"ruleset_version", ruleSet.Version,
			"rule_count", len(ruleSet.Rules),
		)
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Rules.Watch {
		watcher := source.NewWatcher(ruleSource, store, cfg.Rules.WatchDebounce, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("ruleset watcher stopped", "error", err)
			}
		}()
	}

	classifierClient := classifier.NewClient(upstreamConfig(cfg.Classifier), logger)
	defer classifierClient.Close()
	generatorClient := generator.NewClient(upstreamConfig(cfg.Generator), logger)
	defer generatorClient.Close()

	auditStore, err := newAuditStore(cfg, logger)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	retention := audit.NewRetention(auditStore, audit.RetentionConfig{
		MaxAge:     time.Duration(cfg.Audit.Retention.MaxAgeDays) * 24 * time.Hour,
		MaxRecords: cfg.Audit.Retention.MaxRecords,
		Schedule:   cfg.Audit.Retention.Schedule,
	}, logger)
	if err := retention.Start(ctx); err != nil {
		return err
	}
	defer retention.Stop()

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Config{
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, nil)
	}

	var observer pipeline.Observer
	if collector != nil {
		observer = collector
	}
	orchestrator, err := pipeline.New(pipeline.Config{
		ClassificationTimeout: cfg.Pipeline.ClassificationTimeout,
		GenerationTimeout:     cfg.Pipeline.GenerationTimeout,
		MaxPromptBytes:        cfg.Pipeline.MaxPromptBytes,
	}, classifierClient, generatorClient, store, auditStore, observer, logger)
	if err != nil {
		return err
	}

	opts := server.Options{
		Orchestrator:     orchestrator,
		Audit:            auditStore,
		ClassifierHealth: classifierClient,
		GeneratorHealth:  generatorClient,
	}
	if collector != nil {
		opts.MetricsHandler = collector.Handler()
	}

	srv, err := server.New(&cfg.Server, opts, logger)
	if err != nil {
		return err
	}

	logger.Info("charon gateway starting",
		"version", Version,
		"listen", cfg.Server.ListenAddress,
		"ruleset_version", ruleSet.Version,
	)

	return srv.Start(ctx)
}

// upstreamConfig maps a config section onto the shared client config.
func upstreamConfig(cfg config.UpstreamConfig) upstream.ClientConfig {
	return upstream.ClientConfig{
		BaseURL:         cfg.BaseURL,
		Timeout:         cfg.Timeout,
		MaxRetries:      cfg.MaxRetries,
		MaxConcurrent:   cfg.MaxConcurrent,
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}
}

// newAuditStore builds the configured audit backend.
func newAuditStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case "memory":
		return audit.NewMemoryStore(), nil
	default:
		return audit.NewSQLiteStore(audit.SQLiteConfig{Path: cfg.Audit.Path}, logger)
	}
}
