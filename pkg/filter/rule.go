package filter

import "fmt"

// RuleKind identifies how a rule's predicate is evaluated.
type RuleKind string

const (
	// KindCategoryMatch triggers when the target category is present in the
	// classification at any confidence.
	KindCategoryMatch RuleKind = "category_match"

	// KindCategoryConfidence triggers when the target category's confidence
	// meets the rule's threshold.
	KindCategoryConfidence RuleKind = "category_confidence"

	// KindComposite triggers when all sub-conditions hold (logical AND).
	KindComposite RuleKind = "composite"
)

// Action is the outcome a rule requests when it triggers.
type Action string

const (
	// ActionBlock rejects the prompt before generation.
	ActionBlock Action = "block"

	// ActionReview flags the prompt for human review.
	ActionReview Action = "review"

	// ActionAllow explicitly allows the prompt.
	ActionAllow Action = "allow"
)

// Operator compares a category's confidence against a threshold in
// composite sub-conditions.
type Operator string

const (
	OperatorGreaterEqual Operator = "gte"
	OperatorGreaterThan  Operator = "gt"
	OperatorLessEqual    Operator = "lte"
	OperatorLessThan     Operator = "lt"
	OperatorEqual        Operator = "eq"
)

// Compare applies the operator to (confidence, threshold).
func (op Operator) Compare(confidence, threshold float64) (bool, error) {
	switch op {
	case OperatorGreaterEqual:
		return confidence >= threshold, nil
	case OperatorGreaterThan:
		return confidence > threshold, nil
	case OperatorLessEqual:
		return confidence <= threshold, nil
	case OperatorLessThan:
		return confidence < threshold, nil
	case OperatorEqual:
		return confidence == threshold, nil
	default:
		return false, fmt.Errorf("unknown operator %q", string(op))
	}
}

// MatchCondition is the payload for category_match rules.
type MatchCondition struct {
	// Category is the target category name.
	Category string `yaml:"category"`
}

// ConfidenceCondition is the payload for category_confidence rules.
type ConfidenceCondition struct {
	// Category is the target category name.
	Category string `yaml:"category"`

	// Threshold triggers the rule when the category's confidence is >= it.
	// In strict mode the effective threshold is lowered by the RuleSet's
	// StrictDelta.
	Threshold float64 `yaml:"threshold"`
}

// SubCondition is one clause of a composite rule.
type SubCondition struct {
	// Category is the target category name.
	Category string `yaml:"category"`

	// Operator compares the category's confidence to Threshold.
	Operator Operator `yaml:"operator"`

	// Threshold is the comparison value in [0,1].
	Threshold float64 `yaml:"threshold"`
}

// Rule is a single filtering rule. Exactly one payload field is set,
// matching Kind; Validate enforces this so an invalid combination cannot
// survive construction.
type Rule struct {
	// Name uniquely identifies the rule within its RuleSet.
	Name string `yaml:"name"`

	// Kind selects the predicate (category_match, category_confidence,
	// composite).
	Kind RuleKind `yaml:"kind"`

	// Action is the requested outcome when the rule triggers.
	Action Action `yaml:"action"`

	// Enabled rules participate in evaluation; disabled rules are skipped
	// and can never appear in a decision's triggered set.
	Enabled bool `yaml:"enabled"`

	// Match is set for category_match rules.
	Match *MatchCondition `yaml:"match,omitempty"`

	// Confidence is set for category_confidence rules.
	Confidence *ConfidenceCondition `yaml:"confidence,omitempty"`

	// Composite is set for composite rules: the ordered sub-conditions,
	// combined with logical AND. OR must be expressed as separate rules.
	Composite []SubCondition `yaml:"composite,omitempty"`
}

// Validate checks that the rule is internally consistent: known kind and
// action, and exactly the payload its kind requires.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return &RuleError{Rule: r.Name, Reason: "rule name is required"}
	}

	switch r.Action {
	case ActionBlock, ActionReview, ActionAllow:
	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown action %q", string(r.Action))}
	}

	switch r.Kind {
	case KindCategoryMatch:
		if r.Match == nil || r.Match.Category == "" {
			return &RuleError{Rule: r.Name, Reason: "category_match rule requires match.category"}
		}
		if r.Confidence != nil || len(r.Composite) > 0 {
			return &RuleError{Rule: r.Name, Reason: "category_match rule carries extra payload"}
		}

	case KindCategoryConfidence:
		if r.Confidence == nil || r.Confidence.Category == "" {
			return &RuleError{Rule: r.Name, Reason: "category_confidence rule requires confidence.category"}
		}
		if r.Confidence.Threshold < 0 || r.Confidence.Threshold > 1 {
			return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("threshold %v outside [0,1]", r.Confidence.Threshold)}
		}
		if r.Match != nil || len(r.Composite) > 0 {
			return &RuleError{Rule: r.Name, Reason: "category_confidence rule carries extra payload"}
		}

	case KindComposite:
		if len(r.Composite) == 0 {
			return &RuleError{Rule: r.Name, Reason: "composite rule requires at least one sub-condition"}
		}
		if r.Match != nil || r.Confidence != nil {
			return &RuleError{Rule: r.Name, Reason: "composite rule carries extra payload"}
		}
		for i, sub := range r.Composite {
			if sub.Category == "" {
				return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("sub-condition %d missing category", i)}
			}
			if _, err := sub.Operator.Compare(0, 0); err != nil {
				return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("sub-condition %d: %v", i, err)}
			}
			if sub.Threshold < 0 || sub.Threshold > 1 {
				return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("sub-condition %d threshold %v outside [0,1]", i, sub.Threshold)}
			}
		}

	default:
		return &RuleError{Rule: r.Name, Reason: fmt.Sprintf("unknown kind %q", string(r.Kind))}
	}

	return nil
}
