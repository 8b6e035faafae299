// Package engine implements rule evaluation: turning a confidence-scored
// classification and an immutable RuleSet into a single allow/block/review
// decision with auditable reasoning.
//
// Evaluate is a pure function of its inputs. It performs no I/O, holds no
// state, and is safe to call concurrently from many requests against the
// same RuleSet reference. Outcome precedence is fixed at
// block > review > allow so that a single rule marking a prompt dangerous
// can never be outvoted by benign ones.
//
// Any error returned by Evaluate indicates a RuleSet or data contract
// violation. It is a defect, not a transient condition, and the pipeline
// treats it as fatal to the request.
package engine
