package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies tool execution errors so the engine and the protocol
// adapter can react without inspecting messages.
type Kind int

const (
	// KindUnknown covers any uncategorized failure.
	KindUnknown Kind = iota
	// KindValidation - input failed schema checks. Never retryable.
	KindValidation
	// KindNotFound - tool name did not resolve.
	KindNotFound
	// KindUnauthorized - caller lacks identity or a required scope.
	KindUnauthorized
	// KindTimeout - handler exceeded its allotted time. Retryable.
	KindTimeout
	// KindDatabase - persistence collaborator failure. Retryable.
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// ToolError is the typed error handlers raise and the engine catches.
// Message is shown to callers; Err keeps the original cause for diagnostics.
type ToolError struct {
	ErrKind Kind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %v", e.ErrKind, e.Err)
	}
	return fmt.Sprintf("%s error", e.ErrKind)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewValidation builds a validation error from field-level violations.
func NewValidation(message string) *ToolError {
	return &ToolError{ErrKind: KindValidation, Message: message}
}

// NewNotFound reports an unresolved tool name, listing the known names so
// the caller (typically an LLM) can self-correct.
func NewNotFound(name string, known []string) *ToolError {
	return &ToolError{
		ErrKind: KindNotFound,
		Message: fmt.Sprintf("tool not found: %s (available: %s)", name, strings.Join(known, ", ")),
	}
}

// NewUnauthorized reports a missing identity or scope.
func NewUnauthorized(message string) *ToolError {
	if message == "" {
		message = "authentication required"
	}
	return &ToolError{ErrKind: KindUnauthorized, Message: message}
}

// NewTimeout reports a handler that exceeded its deadline.
func NewTimeout(tool string, err error) *ToolError {
	return &ToolError{
		ErrKind: KindTimeout,
		Message: fmt.Sprintf("tool %s timed out; retrying may succeed", tool),
		Err:     err,
	}
}

// NewDatabase wraps a persistence failure with a retry hint.
func NewDatabase(err error) *ToolError {
	return &ToolError{
		ErrKind: KindDatabase,
		Message: "storage is temporarily unavailable, please try again",
		Err:     err,
	}
}

// Wrap tags err with kind unless it already carries one.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return err
	}
	return &ToolError{ErrKind: kind, Message: err.Error(), Err: err}
}

// KindOf extracts the classification of err, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.ErrKind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsRetryable reports whether the caller should be told a retry may help.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindDatabase:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error kind to the protocol-level status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDatabase:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
