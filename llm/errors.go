package llm

import (
	"errors"
	"time"
)

// Phase identifies where in the call lifecycle a failure originated.
type Phase string

const (
	// PhaseRequest covers failures raised before any transport call was
	// made: an interceptor or middleware vetoed the request.
	PhaseRequest Phase = "request"
	// PhaseTransport covers failures of the underlying provider call.
	PhaseTransport Phase = "transport"
	// PhasePostProcess covers AfterResponse hook failures raised after a
	// successful transport call.
	PhasePostProcess Phase = "postprocess"
	// PhaseStream covers failures raised while consuming a chunk stream.
	PhaseStream Phase = "stream"
	// PhaseTool covers tool handler failures inside the conversation loop.
	PhaseTool Phase = "tool"
)

// Error represents a provider-neutral pipeline error.
type Error struct {
	Phase      Phase
	Type       ErrorType
	Message    string
	Retryable  bool
	RetryAfter *time.Duration
	StatusCode int
	Cause      error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAborted        ErrorType = "aborted"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// PhaseOf returns the lifecycle phase an error originated in, or "" if
// the error did not come from this package.
func PhaseOf(err error) Phase {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Phase
	}
	return ""
}

// TypeOf returns an error's classification, or ErrorTypeUnknown for
// errors that did not come from this package.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewAbortError creates a request-abort error: an interceptor or
// middleware vetoed the call before any transport activity.
func NewAbortError(message string, cause error) *Error {
	return &Error{
		Phase:   PhaseRequest,
		Type:    ErrorTypeAborted,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError wraps a provider failure. The cause is kept so
// callers can still reach provider-specific details via errors.As.
func NewTransportError(message string, cause error) *Error {
	if llmErr := asError(cause); llmErr != nil {
		// Preserve retry metadata from provider adapters.
		return &Error{
			Phase:      PhaseTransport,
			Type:       llmErr.Type,
			Message:    message,
			Retryable:  llmErr.Retryable,
			RetryAfter: llmErr.RetryAfter,
			StatusCode: llmErr.StatusCode,
			Cause:      cause,
		}
	}
	return &Error{
		Phase:   PhaseTransport,
		Type:    ErrorTypeProvider,
		Message: message,
		Cause:   cause,
	}
}

// NewPostProcessError wraps an AfterResponse hook failure. The transport
// call already succeeded; the response data is discarded regardless.
func NewPostProcessError(message string, cause error) *Error {
	return &Error{
		Phase:   PhasePostProcess,
		Type:    ErrorTypeUnknown,
		Message: message,
		Cause:   cause,
	}
}

// NewStreamError wraps a failure raised while consuming a chunk stream.
func NewStreamError(message string, cause error) *Error {
	return &Error{
		Phase:   PhaseStream,
		Type:    ErrorTypeNetwork,
		Message: message,
		Retryable: func() bool {
			if llmErr := asError(cause); llmErr != nil {
				return llmErr.Retryable
			}
			return false
		}(),
		Cause: cause,
	}
}

// NewToolError wraps a tool handler failure inside the conversation loop.
func NewToolError(message string, cause error) *Error {
	return &Error{
		Phase:   PhaseTool,
		Type:    ErrorTypeUnknown,
		Message: message,
		Cause:   cause,
	}
}

// NewRateLimitError creates a retryable rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, cause error) *Error {
	return &Error{
		Phase:      PhaseTransport,
		Type:       ErrorTypeRateLimit,
		Message:    message,
		Retryable:  true,
		RetryAfter: retryAfter,
		Cause:      cause,
	}
}

// NewInvalidRequestError creates a non-retryable invalid request error.
func NewInvalidRequestError(message string, cause error) *Error {
	return &Error{
		Phase:   PhaseTransport,
		Type:    ErrorTypeInvalidRequest,
		Message: message,
		Cause:   cause,
	}
}

// NewProviderError creates a provider error. Retryable should be true for
// transient server-side failures (5xx).
func NewProviderError(message string, retryable bool, cause error) *Error {
	return &Error{
		Phase:     PhaseTransport,
		Type:      ErrorTypeProvider,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

func asError(err error) *Error {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return nil
}
