package pipeline

import "fmt"

// ValidationError reports a malformed request, rejected before any stage
// runs.
type ValidationError struct {
	// Field is the offending request field.
	Field string

	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Reason)
}

// ConfigurationError reports a missing or invalid RuleSet. It is fatal and
// surfaced immediately; no stage runs.
type ConfigurationError struct {
	// Reason describes the problem.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}
