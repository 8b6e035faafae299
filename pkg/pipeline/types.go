package pipeline

import (
	"fmt"
	"time"

	"sentrix-hq/charon/pkg/engine"
	"sentrix-hq/charon/pkg/upstream/generator"
)

// Mode is the pipeline operating mode.
type Mode string

const (
	// ModeFull runs all stages; the decision governs whether generation runs.
	ModeFull Mode = "full"

	// ModeBypass skips classification and evaluation entirely and proxies
	// straight to generation with a synthetic allow decision.
	ModeBypass Mode = "bypass"

	// ModeLoggingOnly runs classification and evaluation and records the
	// real decision, but generation always runs regardless of outcome.
	// Used to measure false-positive rate without affecting users.
	ModeLoggingOnly Mode = "logging_only"

	// ModeStrict is ModeFull with tightened confidence thresholds.
	ModeStrict Mode = "strict"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeBypass, ModeLoggingOnly, ModeStrict:
		return Mode(s), nil
	case "":
		return ModeFull, nil
	default:
		return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// Stage names a pipeline stage for timings and failure attribution.
type Stage string

const (
	StageClassification Stage = "classification"
	StageEvaluation     Stage = "evaluation"
	StageGeneration     Stage = "generation"
)

// Request is the immutable input for one pipeline run.
type Request struct {
	// ID is the opaque correlation token, caller-supplied or generated.
	ID string

	// Text is the prompt.
	Text string

	// Mode is the operating mode.
	Mode Mode

	// WantMetadata requests stage timings and risk factors in the rendered
	// response.
	WantMetadata bool
}

// ErrorKind classifies a failed pipeline run.
type ErrorKind string

const (
	// ErrorKindValidation is a malformed request, rejected before any
	// stage runs.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindConfiguration is a missing or invalid RuleSet, fatal.
	ErrorKindConfiguration ErrorKind = "configuration"

	// ErrorKindDependency is a collaborator failure that could not be
	// absorbed by fallback.
	ErrorKindDependency ErrorKind = "dependency"

	// ErrorKindInternal is an evaluation invariant violation, always a
	// defect.
	ErrorKindInternal ErrorKind = "internal"
)

// Outcome is the terminal record for one request. It is created empty at
// request start, filled in as stages complete, and frozen once returned.
// Never reused across requests.
type Outcome struct {
	// RequestID is the correlation token.
	RequestID string `json:"id"`

	// Mode the request ran under.
	Mode Mode `json:"mode"`

	// Decision is the filtering decision. Present for every run that
	// reached evaluation (or a synthetic stand-in for bypass and
	// short-circuit fallback); absent only for validation, configuration,
	// and internal errors.
	Decision *engine.Decision `json:"decision,omitempty"`

	// Message is the generated completion. Present only when the decision
	// allowed generation and generation succeeded.
	Message string `json:"message,omitempty"`

	// Usage is token consumption for the generation call, when it ran.
	Usage *generator.Usage `json:"usage,omitempty"`

	// StageTimingsMs records wall time per stage attempted. Skipped stages
	// are omitted.
	StageTimingsMs map[Stage]int64 `json:"stage_timings_ms"`

	// FailureStage names the stage that failed and triggered a fallback or
	// error, empty when the pipeline completed cleanly.
	FailureStage Stage `json:"failure_stage,omitempty"`

	// FallbackStrategy is set when classification failed and the
	// configured fallback absorbed it ("substitute" or "short_circuit"),
	// so deployments can see which strategy is active.
	FallbackStrategy string `json:"fallback_strategy,omitempty"`

	// ErrorKind and Error describe a failed run.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`

	// StartedAt is when the pipeline accepted the request.
	StartedAt time.Time `json:"started_at"`

	// TotalMs is the end-to-end wall time.
	TotalMs int64 `json:"total_ms"`
}

// recordStage stores a stage's wall time.
func (o *Outcome) recordStage(stage Stage, d time.Duration) {
	if o.StageTimingsMs == nil {
		o.StageTimingsMs = make(map[Stage]int64, 3)
	}
	o.StageTimingsMs[stage] = d.Milliseconds()
}
