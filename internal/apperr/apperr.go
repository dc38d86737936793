// Package apperr classifies errors crossing component boundaries so
// the web layer can map them to stable client-facing responses and the
// ingestion path can decide what to log versus what to surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the classification of an error for handling purposes.
type Kind int

const (
	// KindInternal is the default for unclassified failures.
	KindInternal Kind = iota
	// KindBadRequest covers malformed input and validation failures.
	KindBadRequest
	// KindNotFound covers lookups of entities that do not exist.
	KindNotFound
	// KindConflict covers uniqueness and state-transition violations.
	KindConflict
	// KindUnauthorized covers missing or invalid credentials.
	KindUnauthorized
	// KindForbidden covers authenticated callers lacking ownership.
	KindForbidden
	// KindUnavailable covers downstream services that cannot be reached.
	KindUnavailable
)

// String returns the classification name.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps the classification to a status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a classification alongside the underlying error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}

	return e.Msg
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a stable message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error while keeping it unwrappable.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, defaulting to internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}

	return KindInternal
}

// Is reports whether err carries the given classification.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the stable message for client responses. Internal
// errors are masked so details never leak to API callers.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Msg
	}

	return "internal error"
}
