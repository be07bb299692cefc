// Package apperr defines the error taxonomy shared by the time tracking services.
// Every business-rule failure carries a stable Kind so handlers can map it to a
// status code and clients can branch on it without parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-checkable category of an error.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidRange      Kind = "invalid_range"
	KindFutureDate        Kind = "future_date"
	KindCapExceeded       Kind = "cap_exceeded"
	KindMissingReason     Kind = "missing_reason"
	KindConflict          Kind = "conflict"
	KindNotOwner          Kind = "not_owner"
	KindImmutable         Kind = "immutable"
	KindNotEditable       Kind = "not_editable"
	KindValidation        Kind = "validation"
)

// Error is a business-rule failure. Two errors match under errors.Is when
// the target has the same Kind and an empty Message, which is how the
// sentinels below are declared.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidRange      = &Error{Kind: KindInvalidRange}
	ErrFutureDate        = &Error{Kind: KindFutureDate}
	ErrCapExceeded       = &Error{Kind: KindCapExceeded}
	ErrMissingReason     = &Error{Kind: KindMissingReason}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotOwner          = &Error{Kind: KindNotOwner}
	ErrImmutable         = &Error{Kind: KindImmutable}
	ErrNotEditable       = &Error{Kind: KindNotEditable}
	ErrValidation        = &Error{Kind: KindValidation}
)

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
