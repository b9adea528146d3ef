// Package errs defines the error-kind taxonomy used across the archive:
// NotFound, AlreadyExists, Transient, VerificationFailed, InvalidInput, Fatal.
// Callers should compare with errors.Is against the sentinel Kind values, or
// use As to unwrap a *Error for its Kind and Cause.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	_ Kind = iota
	NotFound
	AlreadyExists
	Transient
	VerificationFailed
	InvalidInput
	Fatal
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case Transient:
		return "transient"
	case VerificationFailed:
		return "verification_failed"
	case InvalidInput:
		return "invalid_input"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error makes a bare Kind usable as an errors.Is target.
func (k Kind) Error() string { return k.String() }

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.Is(err, errs.NotFound) without string matching.
type Error struct {
	Kind    Kind
	Op      string
	Cause   error
	Message string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errs.NotFound) work by comparing against a bare Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

func Wrap(kind Kind, op string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// KindOf extracts the Kind of err if it (or something it wraps) is an *Error.
// Returns ok=false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable reports whether the kind is one the ingest worker layer should
// retry with backoff (Transient), as opposed to AlreadyExists (idempotent
// skip, not an error condition for the caller) or terminal kinds.
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	return ok && k == Transient
}
