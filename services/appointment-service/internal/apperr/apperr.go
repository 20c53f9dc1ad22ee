// Package apperr is the error taxonomy of the booking core. Every rule
// violation maps to exactly one Kind and a stable reason shown to clients.
// None of these errors are transient; retrying the same call fails the same way.
package apperr

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindTemporal
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindTemporal:
		return "temporal"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind   Kind
	Reason string
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Reason
}

// Is matches on Kind, and on Reason too when the target carries one, so
// errors.Is(err, apperr.ErrConflict) works for any conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrTemporal      = &Error{Kind: KindTemporal}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the client-facing reason, or "" for infrastructure errors.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
