package engine

// Outcome is the final disposition of a prompt.
type Outcome string

const (
	// OutcomeAllow lets the prompt proceed to generation.
	OutcomeAllow Outcome = "allow"

	// OutcomeBlock rejects the prompt.
	OutcomeBlock Outcome = "block"

	// OutcomeReview flags the prompt for human review.
	OutcomeReview Outcome = "review"
)

// Severity grades a risk factor by the category's confidence.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFactor reports a category whose confidence cleared the informational
// risk floor, whether or not it changed the outcome. Supports audit and
// false-positive analysis on allowed prompts.
type RiskFactor struct {
	// Factor is the category name.
	Factor string `json:"factor"`

	// Severity grades the category's confidence.
	Severity Severity `json:"severity"`

	// Confidence is the category's confidence.
	Confidence float64 `json:"confidence"`
}

// Reasoning explains a decision in human-readable form.
type Reasoning struct {
	// Primary is derived from the single highest-severity triggered rule
	// (block-action rules outrank review-action rules).
	Primary string `json:"primary"`

	// Details holds one explanatory string per triggered rule, in RuleSet
	// declaration order, naming the rule and the matched category and
	// confidence.
	Details []string `json:"details,omitempty"`
}

// Decision is the result of evaluating a RuleSet against a classification.
// Exactly one Decision exists per request, even under upstream failure
// (the pipeline synthesizes one rather than returning nil). A Decision is
// immutable once produced.
type Decision struct {
	// Outcome is allow, block, or review, resolved by the fixed precedence
	// block > review > allow over triggered rules.
	Outcome Outcome `json:"outcome"`

	// Confidence is the maximum confidence among the conditions that caused
	// the winning outcome, or the classification's overall confidence when
	// no rule triggered.
	Confidence float64 `json:"confidence"`

	// TriggeredRules lists the names of rules whose predicates held, in
	// RuleSet declaration order. Only enabled rules ever appear here.
	TriggeredRules []string `json:"triggered_rules"`

	// Reasoning explains the decision.
	Reasoning Reasoning `json:"reasoning"`

	// RiskFactors reports categories above the informational risk floor.
	RiskFactors []RiskFactor `json:"risk_factors,omitempty"`

	// RuleSetVersion records which snapshot produced this decision.
	RuleSetVersion string `json:"ruleset_version,omitempty"`
}

// severityFor grades a confidence value.
func severityFor(confidence float64) Severity {
	switch {
	case confidence >= 0.8:
		return SeverityHigh
	case confidence >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
