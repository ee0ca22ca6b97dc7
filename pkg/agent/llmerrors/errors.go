// Package llmerrors provides structured error classification for model and search adapter calls.
package llmerrors

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies adapter failures.
type ErrorType int8

const (
	// ErrorTypeTransport represents network failures, timeouts and 5xx responses.
	ErrorTypeTransport ErrorType = iota
	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit
	// ErrorTypeEmptyResponse represents a successful call that produced no usable content.
	ErrorTypeEmptyResponse
	// ErrorTypeMalformedOutput represents output that is not valid JSON or violates the requested schema.
	ErrorTypeMalformedOutput
	// ErrorTypeAuth represents authentication errors (401/403, missing or bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents requests the provider rejected as invalid.
	ErrorTypeBadPrompt
	// ErrorTypeUnsupported represents a capability the selected provider does not offer.
	ErrorTypeUnsupported
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeMalformedOutput:
		return "malformed_output"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnsupported:
		return "unsupported"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified adapter error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	BodyStub   string    // First portion of offending output (guards PII)
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewErrorWithStatus creates a new classified error with HTTP status.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewMalformedOutputError records a parse or schema failure along with a stub of the output.
func NewMalformedOutputError(cause error, output string) *Error {
	return &Error{
		Type:     ErrorTypeMalformedOutput,
		Err:      cause,
		Message:  fmt.Sprintf("model output rejected: %v", cause),
		BodyStub: SanitizePrompt(output, 200),
	}
}

// TypeForStatus maps an HTTP status code to an error type.
func TypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorTypeAuth
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return ErrorTypeTransport
	case statusCode >= 400:
		return ErrorTypeBadPrompt
	default:
		return ErrorTypeUnknown
	}
}

// Classify converts an arbitrary SDK error into a classified *Error. Errors that
// are already classified pass through unchanged. statusCode may be 0 when the
// SDK does not expose one.
func Classify(err error, statusCode int, provider string) error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCause(ErrorTypeTransport, err, provider+" request timeout")
	}
	if errors.Is(err, context.Canceled) {
		return NewErrorWithCause(ErrorTypeTransport, err, provider+" request canceled")
	}
	if statusCode != 0 {
		return &Error{
			Type:       TypeForStatus(statusCode),
			StatusCode: statusCode,
			Err:        err,
			Message:    fmt.Sprintf("%s API returned status %d", provider, statusCode),
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case containsAny(lower, "connection", "timeout", "eof", "reset", "network", "no such host"):
		return NewErrorWithCause(ErrorTypeTransport, err, provider+" network or connection error")
	case containsAny(lower, "rate limit", "quota", "resource_exhausted", "too many requests"):
		return NewErrorWithCause(ErrorTypeRateLimit, err, provider+" rate limiting detected")
	case containsAny(lower, "api key", "unauthorized", "permission denied", "unauthenticated"):
		return NewErrorWithCause(ErrorTypeAuth, err, provider+" authentication error")
	case containsAny(lower, "invalid_argument", "invalid argument", "bad request"):
		return NewErrorWithCause(ErrorTypeBadPrompt, err, provider+" rejected the request")
	default:
		return NewErrorWithCause(ErrorTypeUnknown, err, provider+" API call failed")
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// SanitizePrompt creates a safe representation of a prompt for logging.
// For large prompts, it returns first/last portions plus a hash of the full content.
func SanitizePrompt(prompt string, maxChars int) string {
	if len(prompt) <= maxChars {
		return prompt
	}

	halfMax := maxChars / 2
	if halfMax < 100 {
		halfMax = 100
	}
	if 2*halfMax >= len(prompt) {
		return prompt
	}

	first := prompt[:halfMax]
	last := prompt[len(prompt)-halfMax:]
	hash := sha256.Sum256([]byte(prompt))
	hashStr := fmt.Sprintf("%x", hash)[:16]

	return fmt.Sprintf("%s...[%d chars, hash:%s]...%s", first, len(prompt), hashStr, last)
}
