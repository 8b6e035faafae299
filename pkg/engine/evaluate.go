package engine

import (
	"fmt"

	"sentrix-hq/charon/pkg/filter"
	"sentrix-hq/charon/pkg/upstream/classifier"
)

// triggered pairs a matched rule with the confidence of the condition that
// fired it.
type triggered struct {
	rule       *filter.Rule
	confidence float64
	detail     string
}

// Evaluate runs the RuleSet against a classification and returns the
// Decision. Pure and deterministic: identical inputs always yield an
// identical Decision.
//
// When strict is true, category_confidence thresholds (and >=/> composite
// sub-conditions) are tightened by the RuleSet's StrictDelta. The delta is
// never applied to <, <=, or == comparisons: lowering those thresholds
// would loosen them, violating the guarantee that strict mode is never less
// restrictive.
func Evaluate(classification *classifier.Result, ruleSet *filter.RuleSet, strict bool) (*Decision, error) {
	if classification == nil {
		return nil, &InternalError{Reason: "classification is nil"}
	}
	if ruleSet == nil {
		return nil, &InternalError{Reason: "ruleset is nil"}
	}

	// Duplicate category names are malformed upstream data; keep the
	// highest-confidence entry per name, explicitly.
	best := classification.BestByName()

	var matches []triggered
	for _, rule := range ruleSet.EnabledRules() {
		match, confidence, detail, err := evaluateRule(rule, best, ruleSet.StrictDelta, strict)
		if err != nil {
			return nil, err
		}
		if match {
			matches = append(matches, triggered{rule: rule, confidence: confidence, detail: detail})
		}
	}

	decision := &Decision{
		Outcome:        resolveOutcome(matches),
		TriggeredRules: make([]string, 0, len(matches)),
		RiskFactors:    collectRiskFactors(classification, best, ruleSet.RiskFloor),
		RuleSetVersion: ruleSet.Version,
	}

	for _, m := range matches {
		decision.TriggeredRules = append(decision.TriggeredRules, m.rule.Name)
		decision.Reasoning.Details = append(decision.Reasoning.Details, m.detail)
	}

	decision.Confidence = decisionConfidence(matches, decision.Outcome, classification.OverallConfidence)
	decision.Reasoning.Primary = primaryReason(matches, decision.Outcome)

	return decision, nil
}

// evaluateRule evaluates one rule's predicate against the deduplicated
// categories. It returns whether the rule triggered, the confidence of the
// condition that fired it, and the explanatory string for reasoning.
func evaluateRule(rule *filter.Rule, best map[string]classifier.Category, strictDelta float64, strict bool) (bool, float64, string, error) {
	switch rule.Kind {
	case filter.KindCategoryMatch:
		cat, ok := best[rule.Match.Category]
		if !ok {
			return false, 0, "", nil
		}
		detail := fmt.Sprintf("rule %q: category %q present (confidence %.2f)",
			rule.Name, cat.Name, cat.Confidence)
		return true, cat.Confidence, detail, nil

	case filter.KindCategoryConfidence:
		cat, ok := best[rule.Confidence.Category]
		if !ok {
			return false, 0, "", nil
		}
		threshold := rule.Confidence.Threshold
		if strict {
			threshold -= strictDelta
		}
		if cat.Confidence < threshold {
			return false, 0, "", nil
		}
		detail := fmt.Sprintf("rule %q: category %q confidence %.2f >= threshold %.2f",
			rule.Name, cat.Name, cat.Confidence, threshold)
		return true, cat.Confidence, detail, nil

	case filter.KindComposite:
		// Logical AND over all sub-conditions.
		var maxConfidence float64
		for _, sub := range rule.Composite {
			cat, ok := best[sub.Category]
			if !ok {
				return false, 0, "", nil
			}

			threshold := sub.Threshold
			if strict && tightensWithDelta(sub.Operator) {
				threshold -= strictDelta
			}

			hold, err := sub.Operator.Compare(cat.Confidence, threshold)
			if err != nil {
				return false, 0, "", &InternalError{Rule: rule.Name, Reason: err.Error()}
			}
			if !hold {
				return false, 0, "", nil
			}
			if cat.Confidence > maxConfidence {
				maxConfidence = cat.Confidence
			}
		}
		detail := fmt.Sprintf("rule %q: all %d conditions held (max confidence %.2f)",
			rule.Name, len(rule.Composite), maxConfidence)
		return true, maxConfidence, detail, nil

	default:
		return false, 0, "", &InternalError{Rule: rule.Name, Reason: fmt.Sprintf("unknown rule kind %q", string(rule.Kind))}
	}
}

// tightensWithDelta reports whether lowering the operator's threshold makes
// the comparison stricter.
func tightensWithDelta(op filter.Operator) bool {
	return op == filter.OperatorGreaterEqual || op == filter.OperatorGreaterThan
}

// resolveOutcome applies the fixed precedence block > review > allow over
// the triggered rules. Not configurable.
func resolveOutcome(matches []triggered) Outcome {
	outcome := OutcomeAllow
	for _, m := range matches {
		switch m.rule.Action {
		case filter.ActionBlock:
			return OutcomeBlock
		case filter.ActionReview:
			outcome = OutcomeReview
		}
	}
	return outcome
}

// decisionConfidence is the maximum confidence among conditions that caused
// the winning outcome; when no rule triggered, the classification's overall
// confidence.
func decisionConfidence(matches []triggered, outcome Outcome, overall float64) float64 {
	if len(matches) == 0 {
		return overall
	}

	winning := actionFor(outcome)
	var confidence float64
	var found bool
	for _, m := range matches {
		if m.rule.Action != winning {
			continue
		}
		found = true
		if m.confidence > confidence {
			confidence = m.confidence
		}
	}
	if !found {
		// Outcome allow with only allow-action rules absent means nothing
		// opposed the prompt; fall back to overall confidence.
		return overall
	}
	return confidence
}

// primaryReason derives the headline reasoning string from the
// highest-severity triggered rule; block-action rules outrank review-action
// rules, ties break to declaration order.
func primaryReason(matches []triggered, outcome Outcome) string {
	if len(matches) == 0 {
		return "no rules triggered"
	}

	winning := actionFor(outcome)
	for _, m := range matches {
		if m.rule.Action == winning {
			return m.detail
		}
	}
	return matches[0].detail
}

// actionFor maps an outcome back to the rule action that produces it.
func actionFor(outcome Outcome) filter.Action {
	switch outcome {
	case OutcomeBlock:
		return filter.ActionBlock
	case OutcomeReview:
		return filter.ActionReview
	default:
		return filter.ActionAllow
	}
}

// collectRiskFactors reports every category at or above the informational
// risk floor, in classifier output order with duplicates collapsed.
func collectRiskFactors(classification *classifier.Result, best map[string]classifier.Category, floor float64) []RiskFactor {
	var factors []RiskFactor
	seen := make(map[string]struct{}, len(best))

	for _, cat := range classification.Categories {
		if _, done := seen[cat.Name]; done {
			continue
		}
		seen[cat.Name] = struct{}{}

		winner := best[cat.Name]
		if winner.Confidence < floor {
			continue
		}
		factors = append(factors, RiskFactor{
			Factor:     winner.Name,
			Severity:   severityFor(winner.Confidence),
			Confidence: winner.Confidence,
		})
	}

	return factors
}
