// Package apperr defines the error kinds surfaced by the screening pipeline.
//
// Every stage maps its internal failure onto exactly one Kind before returning
// control. The Message of an Error is safe to show to an actor; the Cause is
// kept for logs and never leaves the process through Public.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindDocumentUnreadable   Kind = "document_unreadable"
	KindStructuringFailed    Kind = "structuring_failed"
	KindMalformedEvaluation  Kind = "malformed_evaluation"
	KindRenderUnavailable    Kind = "render_unavailable"
	KindSessionNotFound      Kind = "session_not_found"
	KindInvalidInput         Kind = "invalid_input"
	KindRecordCreationFailed Kind = "record_creation_failed"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal"
)

const genericMessage = "internal error, please try again later"

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match for any *Error with the same kind, so callers can write
// errors.Is(err, apperr.New(apperr.KindSessionNotFound, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind keeping cause for diagnostics.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicError is the externally visible shape of a failure.
type PublicError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Public strips the cause chain. Unclassified errors become KindInternal with
// a generic message.
func Public(err error) *PublicError {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if msg == "" {
			msg = string(e.Kind)
		}
		return &PublicError{Kind: e.Kind, Message: msg}
	}
	return &PublicError{Kind: KindInternal, Message: genericMessage}
}
