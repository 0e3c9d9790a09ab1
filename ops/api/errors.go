package api

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured API error response
type Error struct {
	cause    error  // The original error (for logging/debugging)
	message  string // Safe user-facing message
	httpCode int    // HTTP status code (also used as API error code)
	details  any    // Optional payload returned with the error
}

// HTTPCode returns the HTTP status code for this error
func (e *Error) HTTPCode() int {
	return e.httpCode
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.message
}

// Unwrap returns the underlying cause for error unwrapping
func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the original error for logging purposes
func (e *Error) Cause() error {
	return e.cause
}

// MarshalJSON implements json.Marshaler interface
func (e *Error) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"code":    e.httpCode,
		"message": e.message,
	}
	if e.details != nil {
		body["details"] = e.details
	}
	return json.Marshal(body)
}

// ServiceUnavailable reports that the keeper is up but not doing its job.
// The cause text and details are returned to the caller.
func ServiceUnavailable(cause error, details any) *Error {
	return &Error{
		cause:    cause,
		message:  cause.Error(),
		httpCode: http.StatusServiceUnavailable,
		details:  details,
	}
}
