// Package dnnerrors defines the error kinds shared by the protobuf engine
// and the legacy graph importer.
package dnnerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way the importer's callers need to
// distinguish them: all of them are terminal, none are retryable.
type Kind int

const (
	// KindParse marks malformed wire data, unknown enum/tag values,
	// descriptor-depth overflow, or a size mismatch.
	KindParse Kind = iota
	// KindTypeMismatch marks a wrong scalar type requested from a node.
	KindTypeMismatch
	// KindNotFound marks an unknown layer id, blob name, or root message.
	KindNotFound
	// KindNotImplemented marks an unrecognized module class or an
	// unknown field name encountered in text mode.
	KindNotImplemented
	// KindDuplicate marks a colliding layer name or factory registration.
	KindDuplicate
	// KindInternal marks an invariant breach.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindNotFound:
		return "NotFound"
	case KindNotImplemented:
		return "NotImplemented"
	case KindDuplicate:
		return "Duplicate"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every component returns. It carries
// enough context (offset, tag, class name, ...) for the top-level
// importer call to report a precise failure without partial success.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, dnnerrors.ErrParse) work for any *Error with a
// matching Kind, regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// sentinel returns the comparable zero-message error used as an
// errors.Is target for a given kind.
func sentinel(k Kind) *Error { return &Error{Kind: k} }

var (
	ErrParse          = sentinel(KindParse)
	ErrTypeMismatch   = sentinel(KindTypeMismatch)
	ErrNotFound       = sentinel(KindNotFound)
	ErrNotImplemented = sentinel(KindNotImplemented)
	ErrDuplicate      = sentinel(KindDuplicate)
	ErrInternal       = sentinel(KindInternal)
)

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func Parsef(format string, args ...any) error          { return newf(KindParse, format, args...) }
func TypeMismatchf(format string, args ...any) error    { return newf(KindTypeMismatch, format, args...) }
func NotFoundf(format string, args ...any) error        { return newf(KindNotFound, format, args...) }
func NotImplementedf(format string, args ...any) error  { return newf(KindNotImplemented, format, args...) }
func Duplicatef(format string, args ...any) error       { return newf(KindDuplicate, format, args...) }
func Internalf(format string, args ...any) error        { return newf(KindInternal, format, args...) }

// Wrap annotates err with a Kind and message while preserving it for
// errors.Unwrap/errors.Is, the way the teacher wraps I/O failures with
// fmt.Errorf("...: %w", err).
func Wrap(k Kind, err error, format string, args ...any) error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Wrapped: err}
}
