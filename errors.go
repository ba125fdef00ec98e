package cachewire

import (
	"errors"
	"fmt"
	"time"
)

// Error type classifiers carried by RequestError.
const (
	// ErrorTypeDispatch marks transport-level failures (connection refused,
	// DNS, broken pipe).
	ErrorTypeDispatch = "Dispatch"

	// ErrorTypeHTTPStatus marks non-2xx responses.
	ErrorTypeHTTPStatus = "HTTPStatus"

	// ErrorTypeTimeout marks attempts that exceeded their timeout window.
	ErrorTypeTimeout = "Timeout"

	// ErrorTypeRetryExhausted wraps the last failure after every attempt is
	// spent. It is the only type that crosses the Client boundary for failed
	// dispatches.
	ErrorTypeRetryExhausted = "RetryExhausted"

	// ErrorTypeCircuitOpen marks requests refused by an open circuit breaker.
	ErrorTypeCircuitOpen = "CircuitOpen"

	// ErrorTypeValidation marks invalid client configuration.
	ErrorTypeValidation = "Validation"
)

// RequestError is the error type returned by Client operations.
type RequestError struct {
	Type        string
	Message     string
	Cause       error
	Method      string
	URL         string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types so errors.Is(err, &RequestError{Type: ...}) works.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*RequestError)
	return ok && e.Type == t.Type
}

// IsRetryExhausted reports whether err is a RequestError produced by an
// exhausted retry loop.
func IsRetryExhausted(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Type == ErrorTypeRetryExhausted
}

// IsTransient reports whether err represents a failure that might succeed on
// retry: transport errors, timeouts, 5xx responses and 429s.
func IsTransient(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	switch reqErr.Type {
	case ErrorTypeDispatch, ErrorTypeTimeout, ErrorTypeCircuitOpen:
		return true
	case ErrorTypeHTTPStatus:
		return reqErr.StatusCode == 429 || reqErr.StatusCode >= 500
	case ErrorTypeRetryExhausted:
		return IsTransient(reqErr.Cause)
	default:
		return false
	}
}
