// Package errors defines the error taxonomy of the assistant and its HTTP mapping.
package errors

import stderrors "errors"

// Error types
const (
	TypeLoad          = "LOAD_ERROR"
	TypeEmbedding     = "EMBEDDING_ERROR"
	TypeNoIndex       = "NO_INDEX"
	TypeEmptyIndex    = "EMPTY_INDEX"
	TypeGeneration    = "GENERATION_ERROR"
	TypeConfiguration = "CONFIGURATION_ERROR"
	TypeValidation    = "VALIDATION_ERROR"
	TypeNotFound      = "SESSION_NOT_FOUND"
	TypeBusy          = "SESSION_BUSY"
)

// ErrLoad indicates that no uploaded file could be loaded or indexed
var ErrLoad = &StandardError{
	Type:    TypeLoad,
	Message: "Failed to load documents",
}

// ErrEmbedding indicates a failed call to the embedding model
var ErrEmbedding = &StandardError{
	Type:    TypeEmbedding,
	Message: "Failed to compute embedding",
}

// ErrNoIndex indicates a question asked before any document batch was indexed
var ErrNoIndex = &StandardError{
	Type:    TypeNoIndex,
	Message: "No documents have been indexed yet",
}

// ErrEmptyIndex indicates a search against an index that was never built
var ErrEmptyIndex = &StandardError{
	Type:    TypeEmptyIndex,
	Message: "Index has not been built",
}

// ErrGeneration indicates a failed call to the language model
var ErrGeneration = &StandardError{
	Type:    TypeGeneration,
	Message: "Failed to generate answer",
}

// ErrConfiguration indicates missing or invalid startup configuration
var ErrConfiguration = &StandardError{
	Type:    TypeConfiguration,
	Message: "Invalid configuration",
}

var ErrValidation = &StandardError{
	Type:    TypeValidation,
	Message: "Invalid request",
}

var ErrSessionNotFound = &StandardError{
	Type:    TypeNotFound,
	Message: "Session not found",
}

var ErrSessionBusy = &StandardError{
	Type:    TypeBusy,
	Message: "Session is busy",
}

// StandardError represents a standard application error
type StandardError struct {
	Type    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StandardError of the same type.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	return ok && t.Type == e.Type
}

// WithCause adds a cause to the error
func (e *StandardError) WithCause(cause error) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: e.Message,
		Cause:   cause,
	}
}

// WithMessage returns a copy with a more specific message.
func (e *StandardError) WithMessage(msg string) *StandardError {
	return &StandardError{
		Type:    e.Type,
		Message: msg,
		Cause:   e.Cause,
	}
}

// TypeOf returns the type of the outermost StandardError in err's chain, or "".
func TypeOf(err error) string {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}
