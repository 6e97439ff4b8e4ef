package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeStream        = "STREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors: these abort a request before any retrieval happens.
var (
	ErrInvalidYearRange  = NewDomainError(ErrCodeValidation, "invalid year range")
	ErrInvalidWindowSize = NewDomainError(ErrCodeValidation, "time window size must be at least 1")
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "retrieval query cannot be empty")
	ErrNoChunks          = NewDomainError(ErrCodeValidation, "no chunks provided for analysis")
	ErrUnknownModel      = NewDomainError(ErrCodeValidation, "requested model is not available")
)

// Not found errors
var (
	ErrExportNotFound = NewDomainError(ErrCodeNotFound, "export artifact not found")
)

// Upstream errors: external collaborators (similarity index, word-vector
// service, LLM endpoint) failed in a way that could not be degraded to a
// partial result.
var (
	ErrAllWindowsFailed = NewDomainError(ErrCodeUpstream, "all retrieval windows failed")
	ErrLLMUnavailable   = NewDomainError(ErrCodeUpstream, "language model endpoint unavailable")
)

// Stream errors
var (
	ErrStreamProtocol = NewDomainError(ErrCodeStream, "malformed or out-of-order stream event")
)
