// Package errs defines the error taxonomy shared by the leader, the
// follower worker and the client facade. Every error that can cross a
// process boundary is one of these kinds; a foreign error is attached
// to a kind with Wrap (or Disconnected), which keeps it as the cause.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the closed set of error categories a caller
// of the client facade can observe.
type Kind int

const (
	// KindInvalidOperation covers empty command text, a missing
	// connection, or an operation attempted on a terminal reader.
	KindInvalidOperation Kind = iota
	// KindObjectDisposed covers any operation on a disposed
	// command, reader or connection.
	KindObjectDisposed
	// KindServerException covers a leader-reported SQL or
	// execution failure; it carries the leader's message verbatim.
	KindServerException
	// KindProtocolError covers a malformed frame, an unknown
	// message kind, or a response with an unexpected body for its
	// kind. It is fatal to the transport that produced it.
	KindProtocolError
	// KindDisconnected covers transport loss; every in-flight
	// waiter on the transport releases with this kind.
	KindDisconnected
	// KindTimeout covers a send_and_wait that exceeded the
	// command timeout.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindObjectDisposed:
		return "ObjectDisposed"
	case KindServerException:
		return "ServerException"
	case KindProtocolError:
		return "ProtocolError"
	case KindDisconnected:
		return "Disconnected"
	case KindTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error is a typed error carrying one of the Kind values above plus a
// human-readable message. Remote server exceptions carry the leader's
// message text unmodified in Message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to a wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds a Kind-tagged error with the given message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an existing error, preserving it as the
// cause so errors.Cause/errors.Unwrap still reach the original.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// InvalidOperation builds a KindInvalidOperation error.
func InvalidOperation(format string, args ...interface{}) *Error {
	return New(KindInvalidOperation, fmt.Sprintf(format, args...))
}

// ObjectDisposed builds a KindObjectDisposed error naming what was disposed.
func ObjectDisposed(what string) *Error {
	return New(KindObjectDisposed, fmt.Sprintf("%s has been disposed", what))
}

// ServerException builds a KindServerException carrying the leader's
// message verbatim, per the exception round-trip invariant.
func ServerException(message string) *Error {
	return New(KindServerException, message)
}

// ProtocolError builds a KindProtocolError, wrapping cause if given.
func ProtocolError(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindProtocolError, cause, fmt.Sprintf(format, args...))
}

// Disconnected builds a KindDisconnected error, optionally wrapping cause.
func Disconnected(cause error) *Error {
	if cause == nil {
		return New(KindDisconnected, "transport disconnected")
	}
	return Wrap(KindDisconnected, cause, "transport disconnected")
}

// Timeout builds a KindTimeout error.
func Timeout() *Error {
	return New(KindTimeout, "command timeout exceeded")
}

// Is reports whether err is an *Error of the given kind, looking
// through any github.com/pkg/errors wrapping along the way.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Unwrap1 recovers a single inner error from an aggregate failure, as
// the synchronous facade must when translating an asynchronous
// multi-cause failure into a single thrown error; an aggregate with
// more than one distinct cause is returned unchanged.
func Unwrap1(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	first := errors.Cause(errs[0])
	for _, e := range errs[1:] {
		if errors.Cause(e).Error() != first.Error() {
			return aggregate(errs)
		}
	}
	return errs[0]
}

type aggregate []error

func (a aggregate) Error() string {
	msg := "multiple errors occurred:"
	for _, e := range a {
		msg += " " + e.Error() + ";"
	}
	return msg
}
