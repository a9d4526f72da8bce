package typemodel

import (
	"context"
	"errors"
)

// RuntimeError is an unchecked failure: it crosses the adapter boundary
// without being wrapped.
type RuntimeError struct {
	Msg   string
	Cause error
}

func (e *RuntimeError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// Unchecked marks the error as unchecked.
func (e *RuntimeError) Unchecked() bool { return true }

// NewRuntimeError returns an unchecked error with the given message.
func NewRuntimeError(msg string, cause error) error {
	return &RuntimeError{Msg: msg, Cause: cause}
}

var (
	// ErrNotImplemented is raised by an abstract contract the delegate does
	// not provide.
	ErrNotImplemented error = &RuntimeError{Msg: "operation not implemented"}

	// ErrNoBaseImplementation is raised when a concrete contract was
	// described without a body (for example, imported from Go source).
	ErrNoBaseImplementation error = &RuntimeError{Msg: "base implementation not available"}
)

// IsUnchecked reports whether err itself is unchecked. Causes are not
// consulted: a checked failure wrapping an unchecked one stays checked.
func IsUnchecked(err error) bool {
	u, ok := err.(interface{ Unchecked() bool })
	return ok && u.Unchecked()
}

// IsFatal reports failures that must never be altered on their way to the
// caller: cancellation and deadline expiry.
func IsFatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// InvocationError wraps an undeclared checked failure raised while an
// adapter method consulted its delegate or fell back to the base type.
type InvocationError struct {
	Method string
	Cause  error
}

func (e *InvocationError) Error() string {
	return "adapter invocation failed: " + e.Method + ": " + e.Cause.Error()
}

func (e *InvocationError) Unwrap() error { return e.Cause }

func (e *InvocationError) Unchecked() bool { return true }

// Propagate applies the uniform failure policy of adapter methods: declared,
// unchecked and fatal failures pass unmodified, everything else is wrapped.
func Propagate(m *Method, err error) error {
	if err == nil || m.Declares(err) || IsUnchecked(err) || IsFatal(err) {
		return err
	}
	return &InvocationError{Method: m.Key(), Cause: err}
}
