package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure for transport-layer mapping. Every
// internal error is converted to exactly one Kind before it crosses the
// pipeline boundary; raw upstream error bodies stay in server-side logs.
type Kind string

const (
	// KindValidation is malformed caller input (empty/whitespace query).
	// Surfaced as a 400-class message; never retried.
	KindValidation Kind = "validation"

	// KindUpstreamUnavailable means the embedding provider was unreachable
	// or returned an unparseable payload. No fallback answer is produced —
	// the bot does not guess.
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindRetrievalUnavailable means the document store query failed.
	KindRetrievalUnavailable Kind = "retrieval_unavailable"

	// KindComposition is any failure while building the final answer.
	// Partially composed text is discarded, never returned half-built.
	KindComposition Kind = "composition"
)

// Error is the typed error the pipeline returns. It carries a caller-safe
// message and wraps the internal cause for logging.
type Error struct {
	// Kind classifies the failure.
	Kind Kind
	// Message is safe to echo to the caller.
	Message string
	// cause is the wrapped internal error, for logs only.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("pipeline: %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("pipeline: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the internal cause.
func (e *Error) Unwrap() error { return e.cause }

// newError constructs a pipeline Error.
func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the Kind carried by err, or empty string when err is not a
// pipeline Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
