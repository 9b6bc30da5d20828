// Package stError implements the error taxonomy from spec §7: a small set of
// kinds callers can branch on via errors.As, grounded on the kind+wrapped-cause
// shape of the teacher's internal/core/errors.go.
package stError

import "fmt"

// Kind classifies an Error.
type Kind int

const (
	// Eof marks a source ending normally; it is not propagated as a failure.
	Eof Kind = iota
	// DecodeError: a framed event could not be parsed. Fatal for that source.
	DecodeError
	// AssertionViolation: the trace violates a §4 invariant. Fatal to the analysis.
	AssertionViolation
	// IoError: a socket/file-level error. Fatal.
	IoError
	// ConfigError: CLI/config validation failure. Fatal before startup.
	ConfigError
)

func (k Kind) String() string {
	switch k {
	case Eof:
		return "Eof"
	case DecodeError:
		return "DecodeError"
	case AssertionViolation:
		return "AssertionViolation"
	case IoError:
		return "IoError"
	case ConfigError:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind, a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
