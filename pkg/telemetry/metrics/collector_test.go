package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"sentrix-hq/charon/pkg/pipeline"
)

func TestCollector_Observations(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(Config{}, registry)

	c.ObservePipeline(pipeline.ModeFull, "block", 120*time.Millisecond)
	c.ObservePipeline(pipeline.ModeFull, "block", 80*time.Millisecond)
	c.ObservePipeline(pipeline.ModeBypass, "allow", 40*time.Millisecond)
	c.ObserveStage(pipeline.StageClassification, 90*time.Millisecond)
	c.ObserveFallback("substitute")

	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("full", "block")); got != 2 {
		t.Errorf("runs_total{full,block} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("bypass", "allow")); got != 1 {
		t.Errorf("runs_total{bypass,allow} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.fallbacksTotal.WithLabelValues("substitute")); got != 1 {
		t.Errorf("classification_fallbacks_total{substitute} = %v, want 1", got)
	}
}

func TestCollector_HandlerServesMetrics(t *testing.T) {
	c := NewCollector(Config{Namespace: "charon", Subsystem: "pipeline"}, nil)
	c.ObservePipeline(pipeline.ModeFull, "allow", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{
		"charon_pipeline_runs_total",
		"charon_pipeline_run_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestCollector_ImplementsObserver(t *testing.T) {
	var _ pipeline.Observer = NewCollector(Config{}, nil)
}
