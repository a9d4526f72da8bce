// Package typemodel is the runtime object model the adapter synthesizer
// works against: classes and interfaces with methods, constructors,
// access levels and declared failure kinds.
//
// Go has no way to define a new class at run time, so synthesized adapters
// are described against this model and executed through a method table
// keyed by method identity (see internal/adapter).
package typemodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Access is the visibility of a type or member.
type Access uint8

const (
	Public Access = iota
	Protected
	Package
	Private
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Package:
		return "package"
	case Private:
		return "private"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// Overridable reports whether a subclass in another package can see members
// with this access.
func (a Access) Overridable() bool { return a == Public || a == Protected }

// Object is a live instance as seen by base implementations. Invoke performs
// virtual dispatch, so a base method calling an abstract sibling reaches the
// adapter.
type Object interface {
	Type() *Type
	Fields() *Fields
	Invoke(ctx context.Context, name string, args ...any) (any, error)
}

// Impl is the body of a concrete method.
type Impl func(ctx context.Context, self Object, args []any) (any, error)

// Method is a member of a Type. Its identity is Key(): the name plus the
// signature descriptor.
type Method struct {
	Name   string
	Params []TypeRef
	Result TypeRef

	// Throws lists the declared failure kinds, matched with errors.Is.
	Throws []error
	// AnyFailure declares every failure kind (Go methods returning error).
	AnyFailure bool

	Access          Access
	Static          bool
	Abstract        bool
	Final           bool
	CallerSensitive bool

	Impl Impl

	owner *Type
}

// Key is the method identity: name plus signature.
func (m *Method) Key() string { return m.Name + m.Descriptor() }

// Descriptor is the signature without the name.
func (m *Method) Descriptor() string { return SignatureDescriptor(m.Params, m.Result) }

// Owner is the type that declares m.
func (m *Method) Owner() *Type { return m.owner }

// IsTeardown reports whether m has the teardown shape: Finalize, no
// arguments, no result.
func (m *Method) IsTeardown() bool {
	return m.Name == TeardownName && len(m.Params) == 0 && m.Result.Kind == KindVoid
}

// Declares reports whether err is one of the failure kinds m declares.
func (m *Method) Declares(err error) bool {
	if err == nil {
		return false
	}
	if m.AnyFailure {
		return true
	}
	for _, kind := range m.Throws {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func (m *Method) String() string {
	if m.owner != nil {
		return m.owner.QualifiedName() + "." + m.Key()
	}
	return m.Key()
}

// Constructor initializes the base state of a new instance.
type Constructor struct {
	Params []TypeRef
	Access Access
	Init   func(ctx context.Context, self Object, args []any) error

	owner *Type
}

// Descriptor is the constructor's parameter signature.
func (c *Constructor) Descriptor() string { return SignatureDescriptor(c.Params, Void) }

// Owner is the type that declares c.
func (c *Constructor) Owner() *Type { return c.owner }

// Type describes a class or an interface.
type Type struct {
	Name      string
	Package   string
	Interface bool
	Final     bool
	Access    Access

	// Super is the superclass; nil only for Root and for interfaces.
	Super *Type
	// Interfaces are implemented (for classes) or extended (for interfaces).
	Interfaces []*Type

	Methods      []*Method
	Constructors []*Constructor
}

// NewClass creates a public class. A nil super means Root.
func NewClass(pkg, name string, super *Type) *Type {
	if super == nil {
		super = Root
	}
	return &Type{Name: name, Package: pkg, Super: super}
}

// NewInterface creates a public interface extending the given interfaces.
func NewInterface(pkg, name string, extends ...*Type) *Type {
	return &Type{Name: name, Package: pkg, Interface: true, Interfaces: extends}
}

// Implements appends implemented interfaces and returns t.
func (t *Type) Implements(ifaces ...*Type) *Type {
	t.Interfaces = append(t.Interfaces, ifaces...)
	return t
}

// AddMethod declares m on t and returns t. Interface methods without an
// implementation are abstract.
func (t *Type) AddMethod(m *Method) *Type {
	m.owner = t
	if t.Interface && m.Impl == nil && !m.Static {
		m.Abstract = true
	}
	t.Methods = append(t.Methods, m)
	return t
}

// AddConstructor declares c on t and returns t.
func (t *Type) AddConstructor(c *Constructor) *Type {
	c.owner = t
	t.Constructors = append(t.Constructors, c)
	return t
}

// QualifiedName is "package.Name", or just Name for the root package.
func (t *Type) QualifiedName() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

func (t *Type) String() string { return t.QualifiedName() }

// IsSubtypeOf reports whether t is other or inherits from it.
func (t *Type) IsSubtypeOf(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	if t == other || other == Root {
		return true
	}
	for _, itf := range t.Interfaces {
		if itf.IsSubtypeOf(other) {
			return true
		}
	}
	return t.Super != nil && t.Super.IsSubtypeOf(other)
}

// AllMethods returns the methods of an interface including those inherited
// from the interfaces it extends, deduplicated by identity. For a class it
// returns the declared methods only.
func (t *Type) AllMethods() []*Method {
	if !t.Interface {
		return t.Methods
	}
	seen := make(map[string]bool)
	var out []*Method
	var walk func(*Type)
	walk = func(it *Type) {
		for _, m := range it.Methods {
			if !seen[m.Key()] {
				seen[m.Key()] = true
				out = append(out, m)
			}
		}
		for _, sup := range it.Interfaces {
			walk(sup)
		}
	}
	walk(t)
	return out
}

// Resolve finds the most derived concrete implementation of the method with
// the given identity along the superclass chain.
func (t *Type) Resolve(key string) *Method {
	for c := t; c != nil; c = c.Super {
		for _, m := range c.Methods {
			if !m.Static && !m.Abstract && m.Key() == key {
				return m
			}
		}
	}
	return nil
}

// ResolveName is Resolve by name and arity, used for dynamic lookups.
func (t *Type) ResolveName(name string, arity int) *Method {
	for c := t; c != nil; c = c.Super {
		for _, m := range c.Methods {
			if !m.Static && !m.Abstract && m.Name == name && len(m.Params) == arity {
				return m
			}
		}
	}
	return nil
}

// Fields is the mutable per-instance state written by base implementations.
type Fields struct {
	id     int64
	mu     sync.RWMutex
	values map[string]any
}

var nextIdentity atomic.Int64

// NewFields creates empty instance state with a fresh identity.
func NewFields() *Fields {
	return &Fields{id: nextIdentity.Add(1), values: make(map[string]any)}
}

// Identity is unique per instance for the life of the process.
func (f *Fields) Identity() int64 { return f.id }

// Get returns the named field, or nil.
func (f *Fields) Get(name string) any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[name]
}

// Set stores the named field.
func (f *Fields) Set(name string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = v
}
