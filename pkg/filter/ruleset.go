package filter

import "fmt"

// FallbackStrategy selects how the pipeline behaves when classification is
// unavailable.
type FallbackStrategy string

const (
	// FallbackSubstitute replaces the missing classification with a single
	// low-confidence default category and continues to rule evaluation.
	FallbackSubstitute FallbackStrategy = "substitute"

	// FallbackShortCircuit skips rule evaluation and applies the fallback
	// policy's default action directly.
	FallbackShortCircuit FallbackStrategy = "short_circuit"
)

// FallbackPolicy is the predetermined behavior when the classification
// collaborator is unavailable or times out.
type FallbackPolicy struct {
	// Strategy is substitute or short_circuit.
	Strategy FallbackStrategy `yaml:"strategy"`

	// DefaultAction is applied when Strategy is short_circuit: block for
	// fail-closed deployments, allow for fail-open.
	DefaultAction Action `yaml:"default_action"`

	// SubstituteCategory is the category name substituted when Strategy is
	// substitute. Defaults to "unknown".
	SubstituteCategory string `yaml:"substitute_category"`

	// SubstituteConfidence is the confidence assigned to the substituted
	// category. Defaults to 0.1.
	SubstituteConfidence float64 `yaml:"substitute_confidence"`
}

// RuleSet is a versioned, immutable snapshot of filtering rules plus policy
// parameters. It is shared across concurrent evaluations and must never be
// mutated after Validate; reload swaps the whole reference.
type RuleSet struct {
	// Version identifies this snapshot for audit records.
	Version string `yaml:"version"`

	// Rules in declaration order. Declaration order is the tie-break order
	// for triggered rules and reasoning.
	Rules []Rule `yaml:"rules"`

	// StrictDelta tightens category_confidence thresholds in strict mode:
	// each threshold is evaluated as (threshold - StrictDelta).
	StrictDelta float64 `yaml:"strict_delta"`

	// RiskFloor is the informational confidence floor: categories at or
	// above it are reported as risk factors even when no rule triggers.
	// Independent of any blocking threshold.
	RiskFloor float64 `yaml:"risk_floor"`

	// Fallback is the classification-unavailable policy.
	Fallback FallbackPolicy `yaml:"fallback"`
}

// Validate checks the snapshot: every rule valid, rule names unique, policy
// parameters in range. A RuleSet that fails validation must not be swapped in.
func (rs *RuleSet) Validate() error {
	if rs.Version == "" {
		return &SetError{Reason: "ruleset version is required"}
	}
	if rs.StrictDelta < 0 || rs.StrictDelta > 1 {
		return &SetError{Version: rs.Version, Reason: fmt.Sprintf("strict_delta %v outside [0,1]", rs.StrictDelta)}
	}
	if rs.RiskFloor < 0 || rs.RiskFloor > 1 {
		return &SetError{Version: rs.Version, Reason: fmt.Sprintf("risk_floor %v outside [0,1]", rs.RiskFloor)}
	}

	switch rs.Fallback.Strategy {
	case FallbackSubstitute, FallbackShortCircuit:
	case "":
		return &SetError{Version: rs.Version, Reason: "fallback.strategy is required"}
	default:
		return &SetError{Version: rs.Version, Reason: fmt.Sprintf("unknown fallback strategy %q", string(rs.Fallback.Strategy))}
	}

	if rs.Fallback.Strategy == FallbackShortCircuit {
		switch rs.Fallback.DefaultAction {
		case ActionBlock, ActionAllow:
		default:
			return &SetError{Version: rs.Version, Reason: fmt.Sprintf("fallback.default_action %q must be block or allow", string(rs.Fallback.DefaultAction))}
		}
	}
	if rs.Fallback.SubstituteConfidence < 0 || rs.Fallback.SubstituteConfidence > 1 {
		return &SetError{Version: rs.Version, Reason: fmt.Sprintf("fallback.substitute_confidence %v outside [0,1]", rs.Fallback.SubstituteConfidence)}
	}

	seen := make(map[string]struct{}, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if err := rule.Validate(); err != nil {
			return err
		}
		if _, dup := seen[rule.Name]; dup {
			return &SetError{Version: rs.Version, Reason: fmt.Sprintf("duplicate rule name %q", rule.Name)}
		}
		seen[rule.Name] = struct{}{}
	}

	return nil
}

// EnabledRules returns the enabled rules in declaration order.
func (rs *RuleSet) EnabledRules() []*Rule {
	enabled := make([]*Rule, 0, len(rs.Rules))
	for i := range rs.Rules {
		if rs.Rules[i].Enabled {
			enabled = append(enabled, &rs.Rules[i])
		}
	}
	return enabled
}

// SubstituteCategoryName returns the fallback substitute category,
// defaulting to "unknown" when unset.
func (rs *RuleSet) SubstituteCategoryName() string {
	if rs.Fallback.SubstituteCategory == "" {
		return "unknown"
	}
	return rs.Fallback.SubstituteCategory
}

// SubstituteCategoryConfidence returns the fallback substitute confidence,
// defaulting to 0.1 when unset.
func (rs *RuleSet) SubstituteCategoryConfidence() float64 {
	if rs.Fallback.SubstituteConfidence == 0 {
		return 0.1
	}
	return rs.Fallback.SubstituteConfidence
}
