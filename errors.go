package edb

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies a typed-layer error. Flag-conditioned "soft" failures
// (KeyExist, NotFound, MultipleValues) never surface this way from the
// flag-aware writer family or from getters — those collapse to a bool
// or an empty ValueView instead, per spec.md §7.
type Kind int

const (
	KindNone Kind = iota
	KindKeyExist
	KindNotFound
	KindMultipleValues
	KindKeyMismatch
	KindBadValueSize
	KindIncompatible
	KindClosed
	KindUseAfterFinish
	KindEngineError
	KindOSError
)

func (k Kind) String() string {
	switch k {
	case KindKeyExist:
		return "KeyExist"
	case KindNotFound:
		return "NotFound"
	case KindMultipleValues:
		return "MultipleValues"
	case KindKeyMismatch:
		return "KeyMismatch"
	case KindBadValueSize:
		return "BadValueSize"
	case KindIncompatible:
		return "Incompatible"
	case KindClosed:
		return "Closed"
	case KindUseAfterFinish:
		return "UseAfterFinish"
	case KindEngineError:
		return "EngineError"
	case KindOSError:
		return "OSError"
	default:
		return "None"
	}
}

// Error is the typed error this layer raises for everything that does not
// collapse to a bool/empty-view soft failure. It wraps the underlying cause
// (often a bbolt sentinel error) with a stack trace via cockroachdb/errors,
// matching the stack-trace-on-failure behavior spec.md §9 documents for the
// source's change-hook failure path.
type Error struct {
	Kind    Kind
	Code    int // no constructor in this package sets it; always 0
	Message string
	cause   error
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   wrapped,
	}
}

func (e *Error) Error() string {
	if e.Message == "" {
		if e.cause != nil {
			return fmt.Sprintf("edb: %s: %v", e.Kind, e.cause)
		}
		return fmt.Sprintf("edb: %s", e.Kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("edb: %s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("edb: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Kind == e.Kind
}

func errKeyMismatch(format string, args ...any) error {
	return newError(KindKeyMismatch, nil, format, args...)
}

func errBadValueSize(format string, args ...any) error {
	return newError(KindBadValueSize, nil, format, args...)
}

func errIncompatible(format string, args ...any) error {
	return newError(KindIncompatible, nil, format, args...)
}

func errClosed() error {
	return newError(KindClosed, nil, "database is closed")
}

func errUseAfterFinish() error {
	return newError(KindUseAfterFinish, nil, "snapshot/transaction already finished")
}

func errEngine(cause error, format string, args ...any) error {
	return newError(KindEngineError, cause, format, args...)
}

func errOS(cause error, format string, args ...any) error {
	return newError(KindOSError, cause, format, args...)
}

// IsKind reports whether err (or any error it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
