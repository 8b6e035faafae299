package filter

import "fmt"

// RuleError reports a single invalid rule.
type RuleError struct {
	// Rule is the offending rule's name (may be empty if the name itself
	// is missing).
	Rule string

	// Reason describes the validation failure.
	Reason string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("invalid rule: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Reason)
}

// SetError reports an invalid RuleSet snapshot.
type SetError struct {
	// Version is the snapshot version (may be empty).
	Version string

	// Reason describes the validation failure.
	Reason string
}

// Error implements the error interface.
func (e *SetError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("invalid ruleset: %s", e.Reason)
	}
	return fmt.Sprintf("invalid ruleset %q: %s", e.Version, e.Reason)
}

// ParseError reports a ruleset file that could not be decoded.
type ParseError struct {
	// Path is the file that failed to parse.
	Path string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse ruleset file %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
