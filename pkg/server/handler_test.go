package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sentrix-hq/charon/pkg/audit"
	"sentrix-hq/charon/pkg/config"
	"sentrix-hq/charon/pkg/engine"
	"sentrix-hq/charon/pkg/filter"
	"sentrix-hq/charon/pkg/filter/source"
	"sentrix-hq/charon/pkg/pipeline"
	"sentrix-hq/charon/pkg/upstream"
	"sentrix-hq/charon/pkg/upstream/classifier"
	"sentrix-hq/charon/pkg/upstream/generator"
)

type fakeClassifier struct {
	result *classifier.Result
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, requestID, prompt string) (*classifier.Result, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	completion *generator.Completion
	err        error
}

func (f *fakeGenerator) Generate(ctx context.Context, requestID, prompt string) (*generator.Completion, error) {
	return f.completion, f.err
}

type staticHealth bool

func (h staticHealth) IsHealthy() bool { return bool(h) }

func testRuleSet(t *testing.T) *filter.RuleSet {
	t.Helper()
	rs := &filter.RuleSet{
		Version:   "v1",
		RiskFloor: 0.3,
		Rules: []filter.Rule{
			{
				Name:    "block_harmful",
				Kind:    filter.KindCategoryConfidence,
				Action:  filter.ActionBlock,
				Enabled: true,
				Confidence: &filter.ConfidenceCondition{
					Category:  "harmful_content",
					Threshold: 0.8,
				},
			},
		},
		Fallback: filter.FallbackPolicy{Strategy: filter.FallbackSubstitute},
	}
	if err := rs.Validate(); err != nil {
		t.Fatalf("invalid ruleset: %v", err)
	}
	return rs
}

// newTestServer wires a real orchestrator over fake collaborators behind the
// server mux.
func newTestServer(t *testing.T, cls pipeline.Classifier, gen pipeline.Generator, store audit.Store) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch, err := pipeline.New(pipeline.Config{
		ClassificationTimeout: time.Second,
		GenerationTimeout:     time.Second,
		MaxPromptBytes:        1 << 20,
	}, cls, gen, source.NewStore(testRuleSet(t)), store, nil, logger)
	if err != nil {
		t.Fatalf("pipeline.New() error: %v", err)
	}

	srv, err := New(&config.ServerConfig{ListenAddress: "127.0.0.1:0"}, Options{
		Orchestrator:     orch,
		Audit:            store,
		ClassifierHealth: staticHealth(true),
		GeneratorHealth:  staticHealth(true),
	}, logger)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func postFilter(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/filter", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func decodeFilterResponse(t *testing.T, w *httptest.ResponseRecorder) *filterResponse {
	t.Helper()
	var resp filterResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &resp
}

func TestHandleFilter_Allowed(t *testing.T) {
	cls := &fakeClassifier{result: &classifier.Result{
		Categories:        []classifier.Category{{Name: "benign", Confidence: 0.95}},
		PrimaryCategory:   "benign",
		OverallConfidence: 0.95,
	}}
	gen := &fakeGenerator{completion: &generator.Completion{
		Message: "sure, here you go",
		Usage:   generator.Usage{PromptTokens: 5, CompletionTokens: 7},
	}}
	srv := newTestServer(t, cls, gen, audit.NewMemoryStore())

	w := postFilter(t, srv, `{"prompt":"hello","request_id":"req-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeFilterResponse(t, w)
	if resp.ID != "req-1" {
		t.Errorf("ID = %q", resp.ID)
	}
	if resp.Decision == nil || resp.Decision.Outcome != engine.OutcomeAllow {
		t.Errorf("Decision = %+v", resp.Decision)
	}
	if resp.Message != "sure, here you go" {
		t.Errorf("Message = %q", resp.Message)
	}
	if resp.Usage == nil || resp.Usage.CompletionTokens != 7 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.StageTimingsMs != nil {
		t.Error("stage timings included without include_metadata")
	}
}

func TestHandleFilter_BlockedIsStillHTTP200(t *testing.T) {
	cls := &fakeClassifier{result: &classifier.Result{
		Categories:        []classifier.Category{{Name: "harmful_content", Confidence: 0.9}},
		PrimaryCategory:   "harmful_content",
		OverallConfidence: 0.9,
	}}
	gen := &fakeGenerator{completion: &generator.Completion{Message: "never sent"}}
	srv := newTestServer(t, cls, gen, audit.NewMemoryStore())

	w := postFilter(t, srv, `{"prompt":"something harmful"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a policy block", w.Code)
	}

	resp := decodeFilterResponse(t, w)
	if resp.Decision.Outcome != engine.OutcomeBlock {
		t.Errorf("Outcome = %q, want block", resp.Decision.Outcome)
	}
	if resp.Message != "" {
		t.Errorf("Message = %q, want empty", resp.Message)
	}
	if resp.ErrorKind != "" {
		t.Errorf("ErrorKind = %q, policy block is not an error", resp.ErrorKind)
	}
}

func TestHandleFilter_MetadataOnRequest(t *testing.T) {
	cls := &fakeClassifier{result: &classifier.Result{
		Categories:        []classifier.Category{{Name: "harmful_content", Confidence: 0.6}},
		PrimaryCategory:   "harmful_content",
		OverallConfidence: 0.6,
	}}
	gen := &fakeGenerator{completion: &generator.Completion{Message: "ok"}}
	srv := newTestServer(t, cls, gen, audit.NewMemoryStore())

	// Without metadata: risk factors stripped.
	w := postFilter(t, srv, `{"prompt":"borderline"}`)
	resp := decodeFilterResponse(t, w)
	if len(resp.Decision.RiskFactors) != 0 {
		t.Errorf("RiskFactors = %v without include_metadata", resp.Decision.RiskFactors)
	}

	// With metadata: timings and risk factors present.
	w = postFilter(t, srv, `{"prompt":"borderline","include_metadata":true}`)
	resp = decodeFilterResponse(t, w)
	if len(resp.StageTimingsMs) == 0 {
		t.Error("StageTimingsMs empty with include_metadata")
	}
	if len(resp.Decision.RiskFactors) != 1 {
		t.Errorf("RiskFactors = %v, want the harmful_content factor", resp.Decision.RiskFactors)
	}
}

func TestHandleFilter_ValidationErrors(t *testing.T) {
	srv := newTestServer(t,
		&fakeClassifier{result: &classifier.Result{}},
		&fakeGenerator{completion: &generator.Completion{}},
		audit.NewMemoryStore())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prompt":`},
		{"unknown mode", `{"prompt":"hi","mode":"yolo"}`},
		{"empty prompt", `{"prompt":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postFilter(t, srv, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleFilter_GenerationFailureIs502(t *testing.T) {
	cls := &fakeClassifier{result: &classifier.Result{
		Categories:        []classifier.Category{{Name: "benign", Confidence: 0.9}},
		PrimaryCategory:   "benign",
		OverallConfidence: 0.9,
	}}
	gen := &fakeGenerator{err: &upstream.StatusError{Service: "generator", StatusCode: 503, Message: "down"}}
	srv := newTestServer(t, cls, gen, audit.NewMemoryStore())

	w := postFilter(t, srv, `{"prompt":"hi"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}

	resp := decodeFilterResponse(t, w)
	if resp.FailureStage != string(pipeline.StageGeneration) {
		t.Errorf("FailureStage = %q", resp.FailureStage)
	}
	if resp.Decision == nil || resp.Decision.Outcome != engine.OutcomeAllow {
		t.Errorf("Decision = %+v, want the allow decision preserved", resp.Decision)
	}
}

func TestHandleFilter_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t,
		&fakeClassifier{result: &classifier.Result{}},
		&fakeGenerator{completion: &generator.Completion{}},
		audit.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/filter", nil)
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestHandleDecision(t *testing.T) {
	store := audit.NewMemoryStore()
	cls := &fakeClassifier{result: &classifier.Result{
		Categories:        []classifier.Category{{Name: "benign", Confidence: 0.9}},
		PrimaryCategory:   "benign",
		OverallConfidence: 0.9,
	}}
	gen := &fakeGenerator{completion: &generator.Completion{Message: "done"}}
	srv := newTestServer(t, cls, gen, store)

	// Run a request so a record exists.
	w := postFilter(t, srv, `{"prompt":"hello","request_id":"req-42"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/decisions/req-42", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("decision status = %d, body = %s", w.Code, w.Body.String())
	}

	var rec audit.Record
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.RequestID != "req-42" {
		t.Errorf("RequestID = %q", rec.RequestID)
	}
	if rec.Outcome == nil || rec.Outcome.Decision.Outcome != engine.OutcomeAllow {
		t.Errorf("Outcome = %+v", rec.Outcome)
	}

	// Unknown ID: 404.
	req = httptest.NewRequest(http.MethodGet, "/v1/decisions/no-such", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	// Missing ID: 400.
	req = httptest.NewRequest(http.MethodGet, "/v1/decisions/", nil)
	w = httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	newSrv := func(t *testing.T, clsHealthy, genHealthy bool) *Server {
		srv := newTestServer(t,
			&fakeClassifier{result: &classifier.Result{}},
			&fakeGenerator{completion: &generator.Completion{}},
			nil)
		srv.classifierHealth = staticHealth(clsHealthy)
		srv.generatorHealth = staticHealth(genHealthy)
		return srv
	}

	tests := []struct {
		name       string
		clsHealthy bool
		genHealthy bool
		wantStatus int
		wantState  string
	}{
		{"all healthy", true, true, http.StatusOK, "ok"},
		{"classifier down is advisory", false, true, http.StatusOK, "degraded"},
		{"generator down is unavailable", true, false, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSrv(t, tt.clsHealthy, tt.genHealthy)
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			srv.routes().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp healthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantState)
			}
		})
	}
}
