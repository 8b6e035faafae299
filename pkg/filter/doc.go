// Package filter defines the rule model used to decide whether a classified
// prompt is allowed, blocked, or flagged for review.
//
// A RuleSet is a versioned, immutable snapshot of filtering rules plus the
// policy parameters that govern evaluation (strict-mode delta, informational
// risk floor, and the fallback policy applied when classification is
// unavailable). RuleSets are parsed from YAML by this package and its source
// subpackage; the evaluation engine never reads configuration files itself.
//
// Rules come in three kinds:
//
//   - category_match: triggers when the classification contains the target
//     category at any confidence.
//   - category_confidence: triggers when the target category's confidence
//     meets a threshold.
//   - composite: triggers when every sub-condition holds (logical AND only).
//
// A RuleSet is never mutated after construction. Configuration reload is an
// atomic swap of the RuleSet reference (see the source subpackage), so
// concurrent evaluations require no locking.
package filter
