// Package metrics exposes Prometheus metrics for the filtering pipeline:
// request counts by mode and outcome, per-stage duration histograms,
// fallback activations, and a /metrics handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentrix-hq/charon/pkg/pipeline"
)

// Config controls metric naming.
type Config struct {
	// Namespace is the metric name prefix (default "charon").
	Namespace string

	// Subsystem is the secondary prefix (default "pipeline").
	Subsystem string
}

// Collector registers and records all pipeline metrics. It implements
// pipeline.Observer.
type Collector struct {
	registry *prometheus.Registry

	// Pipeline runs by mode and terminal outcome.
	runsTotal *prometheus.CounterVec

	// End-to-end pipeline duration by mode.
	runDuration *prometheus.HistogramVec

	// Per-stage duration. Classification and generation may take minutes,
	// so buckets reach far beyond typical HTTP histograms.
	stageDuration *prometheus.HistogramVec

	// Classification fallback activations by strategy.
	fallbacksTotal *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics. A nil
// registry uses a fresh private registry.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "charon"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "pipeline"
	}

	c := &Collector{
		registry: registry,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by mode and terminal outcome",
			},
			[]string{"mode", "outcome"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "run_duration_seconds",
				Help:      "End-to-end pipeline duration in seconds",
				Buckets:   durationBuckets(),
			},
			[]string{"mode"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage duration in seconds",
				Buckets:   durationBuckets(),
			},
			[]string{"stage"},
		),

		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "classification_fallbacks_total",
				Help:      "Classification fallback activations by strategy",
			},
			[]string{"strategy"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.stageDuration,
		c.fallbacksTotal,
	)

	return c
}

// durationBuckets covers sub-second rule evaluation up to multi-minute
// collaborator calls.
func durationBuckets() []float64 {
	return []float64{0.005, 0.05, 0.25, 1, 5, 15, 60, 120, 300, 600}
}

// ObservePipeline records a finished run.
func (c *Collector) ObservePipeline(mode pipeline.Mode, outcome string, d time.Duration) {
	c.runsTotal.WithLabelValues(string(mode), outcome).Inc()
	c.runDuration.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// ObserveStage records one stage's duration.
func (c *Collector) ObserveStage(stage pipeline.Stage, d time.Duration) {
	c.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

// ObserveFallback records a classification fallback activation.
func (c *Collector) ObserveFallback(strategy string) {
	c.fallbacksTotal.WithLabelValues(strategy).Inc()
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
