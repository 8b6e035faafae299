package upstream

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError indicates the collaborator did not answer within the
// configured stage timeout.
type TimeoutError struct {
	// Service is the collaborator name ("classifier", "generator").
	Service string

	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s request timed out after %s", e.Service, e.Timeout)
}

// ConnectionError indicates the collaborator could not be reached at all.
type ConnectionError struct {
	// Service is the collaborator name.
	Service string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// StatusError indicates the collaborator answered with a non-2xx status.
type StatusError struct {
	// Service is the collaborator name.
	Service string

	// StatusCode is the HTTP status code returned.
	StatusCode int

	// Message is the response body (truncated).
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// DecodeError indicates the collaborator returned a malformed response body.
type DecodeError struct {
	// Service is the collaborator name.
	Service string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s response decode failed: %v", e.Service, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsDependencyError reports whether err is one of the typed collaborator
// failures this package produces. The orchestrator uses this to separate
// fallback-eligible failures from programming errors.
func IsDependencyError(err error) bool {
	var (
		timeout *TimeoutError
		conn    *ConnectionError
		status  *StatusError
		decode  *DecodeError
	)
	return errors.As(err, &timeout) ||
		errors.As(err, &conn) ||
		errors.As(err, &status) ||
		errors.As(err, &decode)
}
