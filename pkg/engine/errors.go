package engine

import "fmt"

// InternalError reports a RuleSet or data contract violation discovered
// during evaluation. It is always a defect: validated RuleSets cannot
// produce it, so the pipeline treats it as fatal rather than retryable.
type InternalError struct {
	// Rule is the rule being evaluated when the violation was found.
	Rule string

	// Reason describes the violated invariant.
	Reason string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("evaluation invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("evaluation invariant violated in rule %q: %s", e.Rule, e.Reason)
}
