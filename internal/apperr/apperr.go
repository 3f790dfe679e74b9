// Package apperr defines the domain error kinds shared by the store,
// workflow and API layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

// Error kinds.
const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	InvalidTransition Kind = "invalid_transition"
	AlreadyReturned   Kind = "already_returned"
	Conflict          Kind = "conflict"
	Forbidden         Kind = "forbidden"
	Persistence       Kind = "persistence"
)

// Error is a domain error carrying a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare sentinel of the same kind, so errors.Is(err, ErrNotFound)
// holds for every NotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: Validation}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrInvalidTransition = &Error{Kind: InvalidTransition}
	ErrAlreadyReturned   = &Error{Kind: AlreadyReturned}
	ErrConflict          = &Error{Kind: Conflict}
	ErrForbidden         = &Error{Kind: Forbidden}
	ErrPersistence       = &Error{Kind: Persistence}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf returns a Validation error.
func Validationf(format string, args ...any) error { return newf(Validation, format, args...) }

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...any) error { return newf(NotFound, format, args...) }

// InvalidTransitionf returns an InvalidTransition error.
func InvalidTransitionf(format string, args ...any) error {
	return newf(InvalidTransition, format, args...)
}

// AlreadyReturnedf returns an AlreadyReturned error.
func AlreadyReturnedf(format string, args ...any) error {
	return newf(AlreadyReturned, format, args...)
}

// Conflictf returns a Conflict error.
func Conflictf(format string, args ...any) error { return newf(Conflict, format, args...) }

// Forbiddenf returns a Forbidden error.
func Forbiddenf(format string, args ...any) error { return newf(Forbidden, format, args...) }

// KindOf reports the kind of err. Errors that carry no kind are datastore or
// programming failures and report Persistence.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Persistence
}

// Message returns the domain message of err, or "" when err is not a domain error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Persistence {
		return e.Message
	}
	return ""
}
