// Package dispatch defines the dynamic dispatch service adapters consult at
// call time, and Runtime, a reference implementation of it.
package dispatch

import "context"

// Shape is the kind of delegate a value can act as.
type Shape uint8

const (
	ShapeNone Shape = iota
	// ShapeMembers is a named-member provider.
	ShapeMembers
	// ShapeCallable is a single callable.
	ShapeCallable
)

func (s Shape) String() string {
	switch s {
	case ShapeMembers:
		return "members"
	case ShapeCallable:
		return "callable"
	}
	return "none"
}

// Service resolves and invokes named members on delegates and manages the
// ambient execution context. Member names arrive in their encoded form (see
// internal/namecodec); implementations decode them.
type Service interface {
	// Shape classifies a candidate delegate.
	Shape(v any) Shape

	// Member looks up an invokable member, including inherited ones. A
	// missing or non-invokable member reports false.
	Member(delegate any, name string) (any, bool)

	// OwnMember is Member restricted to the delegate's own members.
	OwnMember(delegate any, name string) (any, bool)

	// Invoke calls fn with the receiver and arguments.
	Invoke(ctx context.Context, fn, recv any, args []any) (any, error)

	// InvokeSpread calls fn with the arguments packed into one array value,
	// for calls that would exceed the fixed arity ceiling.
	InvokeSpread(ctx context.Context, fn, recv any, packed []any) (any, error)

	// Unwrap opens a foreign wrapper, returning the wrapped value and the
	// ambient context it belongs to.
	Unwrap(v any) (target, home any, ok bool)

	// Current returns the ambient context active on ctx.
	Current(ctx context.Context) any

	// Enter derives a context carrying ambient, plus a restoration token.
	// Calls on other contexts never observe it.
	Enter(ctx context.Context, ambient any) (context.Context, any)

	// Restore closes the scope opened by Enter. Each token is restored once.
	Restore(token any)

	// Externalize strips internal-only representations from a value
	// returned to statically typed code.
	Externalize(v any) any
}
