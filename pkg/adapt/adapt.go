// Package adapt is the public entry point of the adapter synthesizer. A
// Factory turns a supertype (a base class plus interfaces) and a dynamic
// delegate into an object of a synthesized subtype whose methods route to
// the delegate by name.
//
//	rt := adapt.NewRuntime(nil)
//	f := adapt.New(rt)
//	inst, err := f.Adapt(ctx, adapt.NewObject(nil).Set("Run", fn), task)
package adapt

import (
	"context"
	"fmt"
	"sync"

	"github.com/funvibe/adapt/internal/adapter"
	"github.com/funvibe/adapt/internal/cache"
	"github.com/funvibe/adapt/internal/dispatch"
	"github.com/funvibe/adapt/internal/synth"
	"github.com/funvibe/adapt/internal/typemodel"
)

// Type model aliases
type Type = typemodel.Type
type Method = typemodel.Method
type Constructor = typemodel.Constructor
type TypeRef = typemodel.TypeRef
type Descriptor = typemodel.Descriptor
type Mode = typemodel.Mode
type Object = typemodel.Object

// Loader aliases
type Class = adapter.Class
type Instance = adapter.Instance
type TypeError = adapter.TypeError
type InvocationError = typemodel.InvocationError

// Dispatch aliases
type Service = dispatch.Service
type Runtime = dispatch.Runtime
type DynObject = dispatch.Object
type Func = dispatch.Func
type Global = dispatch.Global
type Mirror = dispatch.Mirror

const (
	InstanceLevel = typemodel.InstanceLevel
	ClassLevel    = typemodel.ClassLevel
)

// Common type references.
var (
	Void    = typemodel.Void
	Bool    = typemodel.Bool
	Int32   = typemodel.Int32
	Int64   = typemodel.Int64
	Float64 = typemodel.Float64
	String  = typemodel.String
	Char    = typemodel.Char
	Any     = typemodel.Any
)

var (
	Root                    = typemodel.Root
	ErrNotImplemented       = typemodel.ErrNotImplemented
	ErrNoBaseImplementation = typemodel.ErrNoBaseImplementation
)

// NewClass creates a public class; a nil super means Root.
func NewClass(pkg, name string, super *Type) *Type { return typemodel.NewClass(pkg, name, super) }

// NewInterface creates a public interface.
func NewInterface(pkg, name string, extends ...*Type) *Type {
	return typemodel.NewInterface(pkg, name, extends...)
}

// NewRuntime creates the reference dispatch service.
func NewRuntime(global *Global) *Runtime { return dispatch.NewRuntime(global) }

// NewObject creates a dynamic named-member provider.
func NewObject(proto *DynObject) *DynObject { return dispatch.NewObject(proto) }

// NewGlobal creates an ambient execution context.
func NewGlobal(name string) *Global { return dispatch.NewGlobal(name) }

// Factory synthesizes, caches and loads adapter classes.
type Factory struct {
	svc      Service
	registry *cache.Registry

	mu      sync.Mutex
	classes map[*Type][]loaded
}

// loaded is an instance-level class bound to the exact interface types of
// its descriptor. Same-named but distinct types never share a class, even
// when they share a synthesized image.
type loaded struct {
	interfaces []*Type
	class      *Class
}

func (l loaded) matches(interfaces []*Type) bool {
	if len(l.interfaces) != len(interfaces) {
		return false
	}
	for i, itf := range interfaces {
		if l.interfaces[i] != itf {
			return false
		}
	}
	return true
}

type factoryOptions struct {
	store  *cache.Store
	engine *synth.Engine
}

// Option configures a Factory.
type Option func(*factoryOptions)

// WithStore persists synthesized images in s.
func WithStore(s *cache.Store) Option {
	return func(o *factoryOptions) { o.store = s }
}

// WithEngine replaces the synthesis engine.
func WithEngine(e *synth.Engine) Option {
	return func(o *factoryOptions) { o.engine = e }
}

// New creates a factory dispatching through svc.
func New(svc Service, opts ...Option) *Factory {
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = synth.New()
	}
	var ropts []cache.RegistryOption
	if o.store != nil {
		ropts = append(ropts, cache.WithStore(o.store))
	}
	return &Factory{
		svc:      svc,
		registry: cache.NewRegistry(o.engine, ropts...),
		classes:  make(map[*Type][]loaded),
	}
}

// Registry exposes the factory's type cache.
func (f *Factory) Registry() *cache.Registry { return f.registry }

// Class returns the instance-level adapter class for types. Classes are
// shared between calls with the same supertype types.
func (f *Factory) Class(types ...*Type) (*Class, error) {
	desc, err := typemodel.NewDescriptor(types...)
	if err != nil {
		return nil, err
	}
	return f.ClassFor(desc)
}

// ClassFor is Class for a prepared descriptor.
func (f *Factory) ClassFor(desc Descriptor) (*Class, error) {
	if desc.Base == nil {
		desc.Base = Root
	}
	res, _, err := f.registry.Get(desc, InstanceLevel)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.classes[desc.Base] {
		if l.matches(desc.Interfaces) {
			return l.class, nil
		}
	}
	c, err := adapter.Load(res, desc, f.svc)
	if err != nil {
		return nil, err
	}
	f.classes[desc.Base] = append(f.classes[desc.Base], loaded{
		interfaces: append([]*Type(nil), desc.Interfaces...),
		class:      c,
	})
	return c, nil
}

// ClassWithOverrides returns a new class-level adapter class whose
// instances all share delegate, bound under the ambient context of ctx.
// Every call yields a distinct class; the synthesized image itself is
// cached.
func (f *Factory) ClassWithOverrides(ctx context.Context, delegate any, types ...*Type) (*Class, error) {
	desc, err := typemodel.NewDescriptor(types...)
	if err != nil {
		return nil, err
	}
	res, _, err := f.registry.Get(desc, ClassLevel)
	if err != nil {
		return nil, err
	}
	c, err := adapter.Load(res, desc, f.svc)
	if err != nil {
		return nil, err
	}
	if err := c.Initialize(ctx, delegate); err != nil {
		return nil, err
	}
	return c, nil
}

// Adapt creates an instance of the adapter for types, using the zero-arg
// base constructor and delegate.
func (f *Factory) Adapt(ctx context.Context, delegate any, types ...*Type) (*Instance, error) {
	c, err := f.Class(types...)
	if err != nil {
		return nil, err
	}
	return c.New(ctx, delegate)
}

// AutoConvertible reports whether a bare callable may be coerced to the
// supertype without explicit construction.
func (f *Factory) AutoConvertible(types ...*Type) (bool, error) {
	c, err := f.Class(types...)
	if err != nil {
		return false, err
	}
	return c.AutoConvertible(), nil
}

// Convert coerces a single callable to the supertype t.
func (f *Factory) Convert(ctx context.Context, fn any, t *Type) (*Instance, error) {
	c, err := f.Class(t)
	if err != nil {
		return nil, err
	}
	if !c.AutoConvertible() {
		return nil, &TypeError{Class: c.Name, Value: fn, Msg: fmt.Sprintf("%s is not convertible from a callable", t)}
	}
	return c.New(ctx, fn)
}
