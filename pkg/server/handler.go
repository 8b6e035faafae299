package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sentrix-hq/charon/pkg/audit"
	"sentrix-hq/charon/pkg/engine"
	"sentrix-hq/charon/pkg/pipeline"
	"sentrix-hq/charon/pkg/upstream/generator"
)

// filterRequest is the wire request for POST /v1/filter.
type filterRequest struct {
	RequestID       string `json:"request_id,omitempty"`
	Prompt          string `json:"prompt"`
	Mode            string `json:"mode,omitempty"`
	IncludeMetadata bool   `json:"include_metadata,omitempty"`
}

// filterResponse renders a pipeline.Outcome. A policy block is still an
// HTTP-level success; FailureStage distinguishes backend failures.
type filterResponse struct {
	ID               string                     `json:"id"`
	Decision         *engine.Decision           `json:"decision,omitempty"`
	Message          string                     `json:"message,omitempty"`
	Usage            *generator.Usage           `json:"usage,omitempty"`
	StageTimingsMs   map[pipeline.Stage]int64   `json:"stage_timings_ms,omitempty"`
	FailureStage     string                     `json:"failure_stage,omitempty"`
	FallbackStrategy string                     `json:"fallback_strategy,omitempty"`
	ErrorKind        string                     `json:"error_kind,omitempty"`
	Error            string                     `json:"error,omitempty"`
}

// errorResponse is the envelope for request-level errors.
type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Error     string `json:"error"`
}

// handleFilter serves POST /v1/filter: one pipeline run per request.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			ErrorKind: string(pipeline.ErrorKindValidation),
			Error:     "method not allowed",
		})
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(pipeline.ErrorKindValidation),
			Error:     "malformed request body: " + err.Error(),
		})
		return
	}

	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(pipeline.ErrorKindValidation),
			Error:     err.Error(),
		})
		return
	}

	outcome, err := s.orchestrator.Run(r.Context(), &pipeline.Request{
		ID:           req.RequestID,
		Text:         req.Prompt,
		Mode:         mode,
		WantMetadata: req.IncludeMetadata,
	})
	if err != nil {
		// Caller disconnected mid-run; nothing useful to write.
		slog.Debug("request abandoned", "error", err)
		return
	}

	writeJSON(w, statusFor(outcome), renderOutcome(outcome, req.IncludeMetadata))
}

// statusFor maps a pipeline outcome to an HTTP status. "Blocked by policy"
// and "pipeline failed" are never conflated.
func statusFor(outcome *pipeline.Outcome) int {
	switch outcome.ErrorKind {
	case pipeline.ErrorKindValidation:
		return http.StatusBadRequest
	case pipeline.ErrorKindConfiguration:
		return http.StatusServiceUnavailable
	case pipeline.ErrorKindInternal:
		return http.StatusInternalServerError
	case pipeline.ErrorKindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

// renderOutcome builds the response envelope. Stage timings and risk
// factors are metadata, included only on request.
func renderOutcome(outcome *pipeline.Outcome, includeMetadata bool) *filterResponse {
	resp := &filterResponse{
		ID:               outcome.RequestID,
		Decision:         outcome.Decision,
		Message:          outcome.Message,
		Usage:            outcome.Usage,
		FailureStage:     string(outcome.FailureStage),
		FallbackStrategy: outcome.FallbackStrategy,
		ErrorKind:        string(outcome.ErrorKind),
		Error:            outcome.Error,
	}

	if includeMetadata {
		resp.StageTimingsMs = outcome.StageTimingsMs
	} else if resp.Decision != nil && len(resp.Decision.RiskFactors) > 0 {
		trimmed := *resp.Decision
		trimmed.RiskFactors = nil
		resp.Decision = &trimmed
	}

	return resp
}

// handleDecision serves GET /v1/decisions/{request_id} from the audit
// store.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
			ErrorKind: string(pipeline.ErrorKindValidation),
			Error:     "method not allowed",
		})
		return
	}
	if s.audit == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{
			ErrorKind: string(pipeline.ErrorKindConfiguration),
			Error:     "audit store not configured",
		})
		return
	}

	requestID := strings.TrimPrefix(r.URL.Path, "/v1/decisions/")
	if requestID == "" || strings.Contains(requestID, "/") {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ErrorKind: string(pipeline.ErrorKindValidation),
			Error:     "request id is required",
		})
		return
	}

	rec, err := s.audit.Get(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{
				ErrorKind: string(pipeline.ErrorKindValidation),
				Error:     "no decision recorded for " + requestID,
			})
			return
		}
		slog.Error("audit lookup failed", "request_id", requestID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			ErrorKind: string(pipeline.ErrorKindInternal),
			Error:     "audit lookup failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// healthResponse reports collaborator availability.
type healthResponse struct {
	Status     string `json:"status"`
	Classifier bool   `json:"classifier_healthy"`
	Generator  bool   `json:"generator_healthy"`
}

// handleHealth serves GET /healthz. The gateway itself is up if it can
// answer; collaborator health is advisory (classification has a fallback).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Classifier: true,
		Generator:  true,
	}
	if s.classifierHealth != nil {
		resp.Classifier = s.classifierHealth.IsHealthy()
	}
	if s.generatorHealth != nil {
		resp.Generator = s.generatorHealth.IsHealthy()
	}

	status := http.StatusOK
	if !resp.Generator {
		// Without generation, allowed prompts cannot be served.
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else if !resp.Classifier {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
