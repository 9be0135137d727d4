// Package fault defines the error taxonomy every boundary of the dispatch
// core reports through: InvalidArgument, Unauthorized, Forbidden, NotFound,
// Conflict, Internal. Messages are human-readable and not part of the
// contract; the Kind is.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a classified error with a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an existing error, keeping it in the chain.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Convenience constructors for the common kinds.

func InvalidArgument(msg string) error { return New(KindInvalidArgument, msg) }
func Unauthorized(msg string) error    { return New(KindUnauthorized, msg) }
func Forbidden(msg string) error       { return New(KindForbidden, msg) }
func NotFound(msg string) error        { return New(KindNotFound, msg) }
func Conflict(msg string) error        { return New(KindConflict, msg) }
func Internal(msg string, cause error) error {
	return &Error{Kind: KindInternal, Msg: msg, Cause: cause}
}

// KindOf extracts the Kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
