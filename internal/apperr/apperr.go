// Package apperr defines the domain error taxonomy. Every recoverable
// failure the engine can surface belongs to exactly one kind, so handlers
// can map errors to HTTP status codes in one place and callers can test
// outcomes with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	// KindNotFound: the referenced event, registration, or team is absent.
	KindNotFound Kind = "NOT_FOUND"
	// KindForbidden: the actor lacks ownership or role for the operation.
	KindForbidden Kind = "FORBIDDEN"
	// KindConflict: duplicate registration, full team, exhausted seats or
	// stock, or an already-settled payment.
	KindConflict Kind = "CONFLICT"
	// KindInvalidState: the operation is not valid for the current
	// lifecycle state.
	KindInvalidState Kind = "INVALID_STATE"
	// KindValidation: malformed or out-of-range input.
	KindValidation Kind = "VALIDATION"
)

// Error is a classified domain error with a user-facing reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Is lets errors.Is match any error of the same kind against the kind
// sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Kind sentinels for errors.Is matching.
var (
	NotFound     = &Error{Kind: KindNotFound}
	Forbidden    = &Error{Kind: KindForbidden}
	Conflict     = &Error{Kind: KindConflict}
	InvalidState = &Error{Kind: KindInvalidState}
	Validation   = &Error{Kind: KindValidation}
)

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Forbiddenf builds a Forbidden error.
func Forbiddenf(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// InvalidStatef builds an InvalidState error.
func InvalidStatef(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Reason: fmt.Sprintf(format, args...)}
}

// Validationf builds a Validation error.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Domain reports whether err is a classified domain error (as opposed to an
// infrastructure failure that should surface as a generic 500).
func Domain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// KindOf returns the kind of a classified error, or "" for infrastructure
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Well-known capacity outcomes. These are expected, user-facing results of
// losing a race for the last seat or unit of stock.
var (
	ErrCapacityExceeded  = &Error{Kind: KindConflict, Reason: "event is at full capacity"}
	ErrInsufficientStock = &Error{Kind: KindConflict, Reason: "insufficient stock for requested variant"}
	ErrTeamFull          = &Error{Kind: KindConflict, Reason: "team is already full"}
	ErrAlreadyRegistered = &Error{Kind: KindConflict, Reason: "already registered for this event"}
)
