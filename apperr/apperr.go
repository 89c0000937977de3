// Package apperr defines the small error-kind taxonomy shared by the tree
// engines, the node store, and the HTTP adapter.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error so that callers at the edge (the HTTP adapter)
// can decide how to report it without inspecting error strings.
type Kind int

const (
	// Unknown is the zero value; never returned intentionally.
	Unknown Kind = iota
	// InvalidInput covers malformed hex, wrong proof length, out-of-range index.
	InvalidInput
	// CapacityExceeded covers exceeding max_leaves or the SMT bit width.
	CapacityExceeded
	// NotFound covers root() on an empty tree or a missing SMT key (membership only).
	NotFound
	// StorageError covers underlying store I/O, serialization, or txn failure.
	StorageError
	// InvariantViolated covers exceeding the incremental tree's maxLevels during recompute; indicates a bug.
	InvariantViolated
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case CapacityExceeded:
		return "capacity_exceeded"
	case NotFound:
		return "not_found"
	case StorageError:
		return "storage_error"
	case InvariantViolated:
		return "invariant_violated"
	default:
		return "unknown"
	}
}

// Error is an apperr-classified error that can still be unwrapped to its
// underlying cause via errors.Cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Cause implements the github.com/pkg/errors Causer interface.
func (e *Error) Cause() error { return e.err }

// Unwrap supports errors.Is/errors.As from the standard library as well.
func (e *Error) Unwrap() error { return e.err }

// New creates a Kind-classified error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

// Newf creates a Kind-classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error (typically from a NodeStore backend)
// under kind, preserving it as the Cause.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: msg, err: errors.Wrap(err, msg)}
}

// KindOf reports the Kind of err, walking the cause chain. Errors not
// produced by this package report Unknown.
func KindOf(err error) Kind {
	var ae *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			ae = e
			break
		}
		cause := errors.Unwrap(err)
		if cause == nil {
			break
		}
		err = cause
	}
	if ae == nil {
		return Unknown
	}
	return ae.Kind
}

// Is reports whether err (or any error in its cause chain) is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
