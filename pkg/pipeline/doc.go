// Package pipeline implements the orchestrator that sequences the three
// filtering stages: classification, rule evaluation, and generation.
//
// The pipeline has a fixed shape, not an arbitrary DAG:
//
//	RECEIVED → CLASSIFYING → EVALUATING → (GENERATING) → RESPONDING
//
// Every request terminates in RESPONDING with an Outcome; no state
// may hang without producing one. Stages within a request run strictly
// sequentially because each stage's input is the prior stage's output.
// Stages of independent requests are unordered and share nothing mutable
// except the immutable RuleSet reference.
//
// Each network-bound stage gets its own full timeout budget: there is no
// umbrella deadline that a slow classifier could silently consume, starving
// generation. Classification failures are absorbed by the configured
// fallback policy; generation failures are reported distinctly so callers
// can tell "blocked by policy" from "backend failed".
package pipeline
