// Package llmerrors provides structured error classification for generative
// backend interactions, including throttle retry-after hints.
package llmerrors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrorType represents different categories of backend errors.
type ErrorType int8

const (
	// ErrorTypeRateLimit represents throttling (429, quota exceeded). The
	// failover client cools the backend down and moves to the next candidate.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified backend error.
type Error struct {
	Err        error         // Wrapped underlying error
	Message    string        // Human-readable error message
	RetryAfter time.Duration // Provider-supplied wait hint (0 = none supplied)
	Type       ErrorType     // Classified error type
	StatusCode int           // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("backend error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("backend error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsThrottle reports whether this error should trigger backend failover.
func (e *Error) IsThrottle() bool {
	return e.Type == ErrorTypeRateLimit
}

// RetryAfterOrDefault returns the provider-supplied wait hint, or fallback
// when the hint is missing or nonsensical. A malformed hint never escalates.
func (e *Error) RetryAfterOrDefault(fallback time.Duration) time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	return fallback
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var berr *Error
	if errors.As(err, &berr) {
		return berr.Type
	}
	return ErrorTypeUnknown
}

// IsThrottle reports whether err is a classified rate-limit error.
func IsThrottle(err error) bool {
	return Is(err, ErrorTypeRateLimit)
}

// New creates a new classified backend error.
func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewWithStatus creates a new classified backend error with HTTP status.
func NewWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewWithCause creates a new classified backend error wrapping another error.
func NewWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// NewThrottle creates a rate-limit error carrying a retry-after hint.
// Pass 0 when the provider supplied no usable hint.
func NewThrottle(cause error, retryAfter time.Duration, message string) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Err:        cause,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// ParseRetryAfter interprets a provider-supplied retry hint. Accepted forms
// are a bare number of seconds ("30", "12.5") or a Go duration ("30s", "2m").
// Anything unparsable or non-positive yields 0, never an error.
func ParseRetryAfter(hint string) time.Duration {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(hint, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}

	if d, err := time.ParseDuration(hint); err == nil && d > 0 {
		return d
	}

	return 0
}

// ExtractRetryAfter scans provider error text for a retry hint like
// "retry after 30 seconds" or "try again in 1.5s". Returns 0 when no hint
// is found.
func ExtractRetryAfter(errStr string) time.Duration {
	lower := strings.ToLower(errStr)

	for _, marker := range []string{"retry after ", "try again in ", "retry-after: ", "retry_after "} {
		idx := strings.Index(lower, marker)
		if idx == -1 {
			continue
		}
		rest := lower[idx+len(marker):]

		// Take the leading numeric token, with an optional unit suffix.
		end := 0
		for end < len(rest) && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
			end++
		}
		if end == 0 {
			continue
		}
		num := rest[:end]

		unit := strings.TrimLeft(rest[end:], " ")
		switch {
		case strings.HasPrefix(unit, "ms"):
			num += "ms"
		case strings.HasPrefix(unit, "millisecond"):
			num += "ms"
		case strings.HasPrefix(unit, "minute"), strings.HasPrefix(unit, "m "), unit == "m":
			num += "m"
		case strings.HasPrefix(unit, "s"):
			// seconds, covered by ParseRetryAfter's bare-number path
		}

		if d := ParseRetryAfter(num); d > 0 {
			return d
		}
	}

	return 0
}

// ExtractStatusCode attempts to extract an HTTP status code from provider
// error text. SDKs often include status codes in error messages.
func ExtractStatusCode(errStr string) int {
	patterns := []string{
		"status code: ",
		"status: ",
		"http ",
		"code ",
	}

	lower := strings.ToLower(errStr)
	for _, pattern := range patterns {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		start := idx + len(pattern)
		if start+3 > len(errStr) {
			continue
		}
		code, err := strconv.Atoi(errStr[start : start+3])
		if err != nil {
			continue
		}
		switch code {
		case 400, 401, 403, 404, 429, 500, 502, 503, 504, 529:
			return code
		}
	}

	return 0
}
