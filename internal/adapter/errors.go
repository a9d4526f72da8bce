package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrImageMismatch means an image was linked against a descriptor it was
	// not synthesized for.
	ErrImageMismatch = errors.New("image does not match descriptor")
	// ErrNotInitialized is returned by New on a class-level adapter whose
	// shared delegate has not been bound.
	ErrNotInitialized = errors.New("class-level adapter is not initialized")
	// ErrInstanceLevel is returned by Initialize on an instance-level adapter.
	ErrInstanceLevel = errors.New("adapter takes its delegate per instance")
)

// TypeError reports a delegate argument that is neither a named-member
// provider nor, for single-method types, a single callable, and is not a
// foreign wrapper around one.
type TypeError struct {
	Class string
	Value any
	Msg   string
}

func (e *TypeError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s (got %T)", e.Class, e.Msg, e.Value)
	}
	return fmt.Sprintf("%s: cannot use %T as delegate", e.Class, e.Value)
}

// Unchecked marks construction type errors as unchecked.
func (e *TypeError) Unchecked() bool { return true }
