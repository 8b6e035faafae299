package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentrix-hq/charon/pkg/engine"
	"sentrix-hq/charon/pkg/filter"
	"sentrix-hq/charon/pkg/upstream"
	"sentrix-hq/charon/pkg/upstream/classifier"
	"sentrix-hq/charon/pkg/upstream/generator"
)

// Classifier is the classification collaborator contract.
type Classifier interface {
	Classify(ctx context.Context, requestID, prompt string) (*classifier.Result, error)
}

// Generator is the completion collaborator contract.
type Generator interface {
	Generate(ctx context.Context, requestID, prompt string) (*generator.Completion, error)
}

// RuleSource supplies the active RuleSet snapshot. Implementations must
// return immutable snapshots; the orchestrator pulls one per request and
// never mutates it.
type RuleSource interface {
	Current() *filter.RuleSet
}

// Recorder persists decision provenance. Recording is best-effort: a
// recorder failure is logged, never surfaced to the caller.
type Recorder interface {
	Record(ctx context.Context, outcome *Outcome) error
}

// Observer receives pipeline telemetry.
type Observer interface {
	ObservePipeline(mode Mode, outcome string, d time.Duration)
	ObserveStage(stage Stage, d time.Duration)
	ObserveFallback(strategy string)
}

// Config holds the orchestrator's per-stage timeout policy. Each
// network-bound stage gets its own independent budget.
type Config struct {
	// ClassificationTimeout bounds the classification stage. Classification
	// may take minutes; size accordingly.
	ClassificationTimeout time.Duration

	// GenerationTimeout bounds the generation stage.
	GenerationTimeout time.Duration

	// MaxPromptBytes rejects oversized prompts before any stage runs.
	// Zero disables the check.
	MaxPromptBytes int
}

// Orchestrator sequences the three pipeline stages under an operating mode,
// applies per-stage timeout and fallback policy, and assembles the final
// outcome. It holds no per-request state; one Orchestrator serves all
// concurrent requests.
type Orchestrator struct {
	config     Config
	classifier Classifier
	generator  Generator
	rules      RuleSource
	recorder   Recorder
	observer   Observer
	logger     *slog.Logger
}

// New creates an orchestrator. Classifier, generator, and rules are
// required; recorder and observer may be nil.
func New(config Config, cls Classifier, gen Generator, rules RuleSource, recorder Recorder, observer Observer, logger *slog.Logger) (*Orchestrator, error) {
	if cls == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator cannot be nil")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		config:     config,
		classifier: cls,
		generator:  gen,
		rules:      rules,
		recorder:   recorder,
		observer:   observer,
		logger:     logger.With("component", "pipeline"),
	}, nil
}

// Run executes the pipeline for one request and always produces an Outcome,
// except when the caller's context is cancelled mid-flight: then the run is
// abandoned, partial timings are discarded, and ctx.Err() is returned.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Outcome, error) {
	start := time.Now()

	outcome := &Outcome{
		RequestID: req.ID,
		Mode:      req.Mode,
		StartedAt: start,
	}
	if outcome.RequestID == "" {
		outcome.RequestID = uuid.NewString()
	}

	if err := o.validate(req); err != nil {
		return o.finish(ctx, outcome, start, ErrorKindValidation, err), nil
	}

	ruleSet := o.rules.Current()
	if ruleSet == nil {
		err := &ConfigurationError{Reason: "no ruleset loaded"}
		return o.finish(ctx, outcome, start, ErrorKindConfiguration, err), nil
	}

	logger := o.logger.With("request_id", outcome.RequestID, "mode", req.Mode)

	if req.Mode == ModeBypass {
		// CLASSIFYING and EVALUATING are skipped entirely; the decision is
		// a synthetic allow marking the bypass.
		outcome.Decision = bypassDecision(ruleSet.Version)
		logger.Info("classification bypassed")
		return o.generate(ctx, req, outcome, logger, start)
	}

	classification, done, err := o.classify(ctx, req, outcome, ruleSet, logger)
	if err != nil {
		return nil, err // caller cancelled
	}
	if done {
		// Short-circuit fallback already decided the request.
		if outcome.Decision.Outcome == engine.OutcomeAllow {
			return o.generate(ctx, req, outcome, logger, start)
		}
		return o.finish(ctx, outcome, start, "", nil), nil
	}

	if err := o.evaluate(req, outcome, classification, ruleSet, logger); err != nil {
		return o.finish(ctx, outcome, start, ErrorKindInternal, err), nil
	}

	if !o.shouldGenerate(req.Mode, outcome.Decision.Outcome) {
		logger.Info("prompt rejected by policy",
			"outcome", outcome.Decision.Outcome,
			"triggered_rules", strings.Join(outcome.Decision.TriggeredRules, ","),
		)
		return o.finish(ctx, outcome, start, "", nil), nil
	}

	return o.generate(ctx, req, outcome, logger, start)
}

// validate rejects malformed requests before any stage runs.
func (o *Orchestrator) validate(req *Request) error {
	if req.Text == "" {
		return &ValidationError{Field: "prompt", Reason: "prompt is required"}
	}
	if o.config.MaxPromptBytes > 0 && len(req.Text) > o.config.MaxPromptBytes {
		return &ValidationError{
			Field:  "prompt",
			Reason: fmt.Sprintf("prompt exceeds %d bytes", o.config.MaxPromptBytes),
		}
	}
	if _, err := ParseMode(string(req.Mode)); err != nil {
		return err
	}
	return nil
}

// classify runs the CLASSIFYING stage. When the collaborator fails with a
// dependency error, the RuleSet's fallback policy absorbs it: either a
// default classification is substituted (evaluation proceeds) or the
// request is short-circuited to a fail-safe decision (done=true).
func (o *Orchestrator) classify(ctx context.Context, req *Request, outcome *Outcome, ruleSet *filter.RuleSet, logger *slog.Logger) (classification *classifier.Result, done bool, err error) {
	stageCtx, cancel := o.stageContext(ctx, o.config.ClassificationTimeout)
	defer cancel()

	stageStart := time.Now()
	classification, callErr := o.classifier.Classify(stageCtx, outcome.RequestID, req.Text)
	o.stageDone(outcome, StageClassification, stageStart)

	if callErr == nil {
		return classification, false, nil
	}

	if ctx.Err() != nil {
		// Caller disconnected: abandon the run, discard partial timings.
		logger.Info("request cancelled during classification")
		return nil, false, ctx.Err()
	}

	if !upstream.IsDependencyError(callErr) {
		// Not a collaborator failure; treat as fatal configuration issue.
		outcome.FailureStage = StageClassification
		outcome.Decision = failSafeDecision(ruleSet, filter.ActionBlock, callErr)
		logger.Error("classification failed with unexpected error", "error", callErr)
		return nil, true, nil
	}

	strategy := ruleSet.Fallback.Strategy
	outcome.FallbackStrategy = string(strategy)
	if o.observer != nil {
		o.observer.ObserveFallback(string(strategy))
	}

	switch strategy {
	case filter.FallbackSubstitute:
		// Substitute a default-safe classification and continue to
		// EVALUATING. The failure is absorbed: FailureStage stays empty.
		name := ruleSet.SubstituteCategoryName()
		confidence := ruleSet.SubstituteCategoryConfidence()
		logger.Warn("classification unavailable, substituting default category",
			"error", callErr,
			"category", name,
			"confidence", confidence,
		)
		return &classifier.Result{
			Categories:        []classifier.Category{{Name: name, Confidence: confidence}},
			PrimaryCategory:   name,
			OverallConfidence: confidence,
		}, false, nil

	default: // FallbackShortCircuit
		outcome.FailureStage = StageClassification
		outcome.Decision = failSafeDecision(ruleSet, ruleSet.Fallback.DefaultAction, callErr)
		logger.Warn("classification unavailable, short-circuiting to fail-safe decision",
			"error", callErr,
			"default_action", ruleSet.Fallback.DefaultAction,
		)
		return nil, true, nil
	}
}

// evaluate runs the EVALUATING stage. The engine is in-process and pure;
// any error from it is a programming error, fatal to the request.
func (o *Orchestrator) evaluate(req *Request, outcome *Outcome, classification *classifier.Result, ruleSet *filter.RuleSet, logger *slog.Logger) error {
	stageStart := time.Now()
	decision, err := engine.Evaluate(classification, ruleSet, req.Mode == ModeStrict)
	o.stageDone(outcome, StageEvaluation, stageStart)

	if err != nil {
		outcome.FailureStage = StageEvaluation
		logger.Error("rule evaluation failed", "error", err)
		return err
	}

	outcome.Decision = decision
	logger.Info("prompt evaluated",
		"outcome", decision.Outcome,
		"confidence", decision.Confidence,
		"triggered_rules", len(decision.TriggeredRules),
		"ruleset_version", decision.RuleSetVersion,
	)
	return nil
}

// shouldGenerate applies mode semantics to the decision.
func (o *Orchestrator) shouldGenerate(mode Mode, outcome engine.Outcome) bool {
	if mode == ModeLoggingOnly {
		// Decision is observed, not enforced.
		return true
	}
	return outcome == engine.OutcomeAllow
}

// generate runs the GENERATING stage: a single attempt, never retried. A
// failure here is reported with FailureStage set so callers can distinguish
// it from a policy block.
func (o *Orchestrator) generate(ctx context.Context, req *Request, outcome *Outcome, logger *slog.Logger, start time.Time) (*Outcome, error) {
	stageCtx, cancel := o.stageContext(ctx, o.config.GenerationTimeout)
	defer cancel()

	stageStart := time.Now()
	completion, err := o.generator.Generate(stageCtx, outcome.RequestID, req.Text)
	o.stageDone(outcome, StageGeneration, stageStart)

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("request cancelled during generation")
			return nil, ctx.Err()
		}

		outcome.FailureStage = StageGeneration
		logger.Error("generation failed", "error", err)
		return o.finish(ctx, outcome, start, ErrorKindDependency, err), nil
	}

	outcome.Message = completion.Message
	outcome.Usage = &completion.Usage
	return o.finish(ctx, outcome, start, "", nil), nil
}

// stageContext derives a stage-scoped context. Each stage gets its own full
// budget, independent of the other stages.
func (o *Orchestrator) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// stageDone records a stage's wall time on the outcome and the observer.
func (o *Orchestrator) stageDone(outcome *Outcome, stage Stage, start time.Time) {
	d := time.Since(start)
	outcome.recordStage(stage, d)
	if o.observer != nil {
		o.observer.ObserveStage(stage, d)
	}
}

// finish freezes the outcome, records provenance, and emits telemetry.
// This is the single RESPONDING transition: every run ends here.
func (o *Orchestrator) finish(ctx context.Context, outcome *Outcome, start time.Time, kind ErrorKind, err error) *Outcome {
	outcome.TotalMs = time.Since(start).Milliseconds()
	if err != nil {
		outcome.ErrorKind = kind
		outcome.Error = err.Error()
	}

	if o.observer != nil {
		o.observer.ObservePipeline(outcome.Mode, outcomeLabel(outcome), time.Since(start))
	}

	if o.recorder != nil {
		if recErr := o.recorder.Record(ctx, outcome); recErr != nil {
			o.logger.Error("failed to record outcome",
				"request_id", outcome.RequestID,
				"error", recErr,
			)
		}
	}

	return outcome
}

// outcomeLabel is the telemetry label for a finished run.
func outcomeLabel(outcome *Outcome) string {
	if outcome.ErrorKind != "" {
		return "error_" + string(outcome.ErrorKind)
	}
	if outcome.FailureStage == StageGeneration {
		return "generation_failed"
	}
	if outcome.Decision != nil {
		return string(outcome.Decision.Outcome)
	}
	return "unknown"
}

// bypassDecision is the synthetic allow recorded when classification and
// evaluation are skipped.
func bypassDecision(version string) *engine.Decision {
	return &engine.Decision{
		Outcome:        engine.OutcomeAllow,
		Confidence:     1.0,
		TriggeredRules: []string{},
		Reasoning: engine.Reasoning{
			Primary: "filtering bypassed by operating mode",
		},
		RuleSetVersion: version,
	}
}

// failSafeDecision synthesizes the decision applied when classification is
// unavailable and the fallback short-circuits. Never nil: every request
// that passes validation carries exactly one decision.
func failSafeDecision(ruleSet *filter.RuleSet, action filter.Action, cause error) *engine.Decision {
	outcome := engine.OutcomeBlock
	if action == filter.ActionAllow {
		outcome = engine.OutcomeAllow
	}
	return &engine.Decision{
		Outcome:        outcome,
		Confidence:     0,
		TriggeredRules: []string{},
		Reasoning: engine.Reasoning{
			Primary: fmt.Sprintf("classification unavailable, fail-safe %s applied: %v", action, cause),
		},
		RuleSetVersion: ruleSet.Version,
	}
}
