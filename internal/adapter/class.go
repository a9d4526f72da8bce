// Package adapter loads synthesized adapter images and runs them. A loaded
// Class is a subtype of the requested supertype whose methods are served by
// a jump table keyed by method identity; each entry runs the body kind the
// image assigns to it.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/funvibe/adapt/internal/collect"
	"github.com/funvibe/adapt/internal/dispatch"
	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/marshal"
	"github.com/funvibe/adapt/internal/namecodec"
	"github.com/funvibe/adapt/internal/synth"
	"github.com/funvibe/adapt/internal/typemodel"
	"github.com/tliron/commonlog"
)

// entry is one linked method of the image.
type entry struct {
	symbol string
	body   image.Body
	method *typemodel.Method
}

// Class is a loaded adapter type.
type Class struct {
	Name string

	img       *image.Image
	contracts *collect.Contracts
	svc       dispatch.Service
	typ       *typemodel.Type
	log       commonlog.Logger

	methods map[string]*entry
	byName  map[string][]*entry
	supers  map[string][]*entry
	final   *entry
	helper  *entry

	// Shared delegate of a class-level adapter, bound once by Initialize.
	initOnce      sync.Once
	initErr       error
	initialized   atomic.Bool
	classDelegate any
	classAmbient  any
	classShape    dispatch.Shape
}

// Option configures Load.
type Option func(*Class)

// WithLogger replaces the loader's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(c *Class) { c.log = log }
}

// Load links a synthesized type against the descriptor it was requested for.
// The image is decoded, its names checked against the descriptor and each
// method entry resolved to its contract by decoded name and signature.
func Load(res *synth.Result, desc typemodel.Descriptor, svc dispatch.Service, opts ...Option) (*Class, error) {
	img, err := image.Unmarshal(res.Image)
	if err != nil {
		return nil, err
	}
	contracts, err := collect.Collect(desc)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", img.Name, err)
	}
	c := &Class{
		Name:      img.Name,
		img:       img,
		contracts: contracts,
		svc:       svc,
		log:       commonlog.GetLogger("adapt.loader"),
		methods:   make(map[string]*entry),
		byName:    make(map[string][]*entry),
		supers:    make(map[string][]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.verifyNames(); err != nil {
		return nil, err
	}
	if err := c.link(); err != nil {
		return nil, err
	}
	c.typ = c.buildType()
	c.log.Debugf("loaded %s: %d entries, mode=%s", c.Name, len(img.Methods), c.Mode())
	return c, nil
}

func (c *Class) verifyNames() error {
	desc := c.contracts.Descriptor
	if c.img.Super != desc.Base.QualifiedName() {
		return fmt.Errorf("%w: %s extends %s, want %s", ErrImageMismatch, c.Name, c.img.Super, desc.Base.QualifiedName())
	}
	if len(c.img.Interfaces) != len(desc.Interfaces) {
		return fmt.Errorf("%w: %s implements %d interfaces, want %d", ErrImageMismatch, c.Name, len(c.img.Interfaces), len(desc.Interfaces))
	}
	for i, itf := range desc.Interfaces {
		if c.img.Interfaces[i] != itf.QualifiedName() {
			return fmt.Errorf("%w: interface %d is %s, want %s", ErrImageMismatch, i, c.img.Interfaces[i], itf.QualifiedName())
		}
	}
	return nil
}

func (c *Class) link() error {
	for _, m := range c.img.Methods {
		switch m.Body {
		case image.BodyDispatch, image.BodySAM, image.BodyDescribe:
			name := namecodec.Decode(m.Symbol)
			contract := c.contracts.Contract(name + m.Desc)
			if contract == nil {
				return fmt.Errorf("%w: no contract for %s%s", ErrImageMismatch, name, m.Desc)
			}
			e := &entry{symbol: m.Symbol, body: m.Body, method: contract}
			c.methods[contract.Key()] = e
			c.byName[contract.Name] = append(c.byName[contract.Name], e)
		case image.BodySuper:
			name := namecodec.Decode(strings.TrimPrefix(m.Symbol, image.SuperPrefix))
			contract := c.contracts.Contract(name + m.Desc)
			if contract == nil || contract.Abstract {
				return fmt.Errorf("%w: super accessor %s has no concrete contract", ErrImageMismatch, m.Symbol)
			}
			c.supers[contract.Name] = append(c.supers[contract.Name], &entry{symbol: m.Symbol, body: m.Body, method: contract})
		case image.BodyFinalizer:
			if c.contracts.Finalizer == nil {
				return fmt.Errorf("%w: teardown override without an ancestor teardown", ErrImageMismatch)
			}
			c.final = &entry{symbol: m.Symbol, body: m.Body, method: c.contracts.Finalizer}
		case image.BodyFinalizerHelper:
			if c.contracts.Finalizer == nil {
				return fmt.Errorf("%w: teardown helper without an ancestor teardown", ErrImageMismatch)
			}
			c.helper = &entry{symbol: m.Symbol, body: m.Body, method: c.contracts.Finalizer}
		}
	}
	if (c.final == nil) != (c.helper == nil) {
		return fmt.Errorf("%w: incomplete teardown indirection", ErrImageMismatch)
	}
	for _, m := range c.contracts.Methods {
		if _, ok := c.methods[m.Key()]; m.Abstract && !ok {
			return fmt.Errorf("%w: %s", synth.ErrUncoveredAbstract, m)
		}
	}
	return nil
}

// buildType describes the loaded class in the type model, so instances can
// be passed wherever the supertype is expected.
func (c *Class) buildType() *typemodel.Type {
	pkg, name := "", c.Name
	if i := strings.LastIndexByte(c.Name, '/'); i >= 0 {
		pkg, name = c.Name[:i], c.Name[i+1:]
	}
	desc := c.contracts.Descriptor
	t := typemodel.NewClass(pkg, name, desc.Base)
	t.Implements(desc.Interfaces...)
	for _, m := range c.img.Methods {
		if m.Body != image.BodyDispatch && m.Body != image.BodySAM && m.Body != image.BodyDescribe {
			continue
		}
		e := c.methods[namecodec.Decode(m.Symbol)+m.Desc]
		contract := e.method
		t.AddMethod(&typemodel.Method{
			Name:       contract.Name,
			Params:     contract.Params,
			Result:     contract.Result,
			Throws:     contract.Throws,
			AnyFailure: contract.AnyFailure,
			Access:     contract.Access,
			Impl: func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
				inst, ok := self.(*Instance)
				if !ok || inst.class != c {
					return nil, typemodel.NewRuntimeError(fmt.Sprintf("%T is not an instance of %s", self, c.Name), nil)
				}
				return inst.call(ctx, e, args)
			},
		})
	}
	for _, ctor := range c.img.Ctors {
		var params []typemodel.TypeRef
		for _, p := range ctor.Params {
			ref, err := typemodel.ParseRef(p)
			if err != nil {
				ref = typemodel.Any
			}
			params = append(params, ref)
		}
		t.AddConstructor(&typemodel.Constructor{Params: params})
	}
	return t
}

// Type is the type-model description of the class.
func (c *Class) Type() *typemodel.Type { return c.typ }

// Mode is the override mode the class was synthesized for.
func (c *Class) Mode() typemodel.Mode { return typemodel.Mode(c.img.Mode) }

// SAM names the single abstract method, or "".
func (c *Class) SAM() string { return c.img.SAM }

// AutoConvertible reports whether a bare callable may be coerced to the
// supertype without explicit construction.
func (c *Class) AutoConvertible() bool { return c.img.AutoConvertible }

// Constructors lists the generated constructor entries.
func (c *Class) Constructors() []image.Ctor { return c.img.Ctors }

// Initialize runs the type initializer of a class-level adapter: it binds
// the shared delegate and captures the ambient context of ctx once. Later
// calls return the outcome of the first.
func (c *Class) Initialize(ctx context.Context, delegate any) error {
	if !c.img.Initializer {
		return fmt.Errorf("%s: %w", c.Name, ErrInstanceLevel)
	}
	c.initOnce.Do(func() {
		d, ambient, shape, _, err := c.resolveDelegate(ctx, delegate)
		if err != nil {
			c.initErr = err
			return
		}
		c.classDelegate, c.classAmbient, c.classShape = d, ambient, shape
		c.initialized.Store(true)
		c.log.Debugf("initialized %s with %s delegate", c.Name, shape)
	})
	return c.initErr
}

// resolveDelegate classifies v, opening a foreign wrapper when v is neither
// shape itself. The ambient context is the one active on ctx, or the
// wrapper's home context.
func (c *Class) resolveDelegate(ctx context.Context, v any) (delegate, ambient any, shape dispatch.Shape, bridged bool, err error) {
	delegate, ambient = v, c.svc.Current(ctx)
	shape = c.svc.Shape(v)
	if shape == dispatch.ShapeNone {
		target, home, ok := c.svc.Unwrap(v)
		if !ok {
			return nil, nil, shape, false, &TypeError{Class: c.Name, Value: v}
		}
		delegate, ambient, bridged = target, home, true
		shape = c.svc.Shape(target)
	}
	switch shape {
	case dispatch.ShapeMembers:
	case dispatch.ShapeCallable:
		if c.img.SAM == "" {
			return nil, nil, shape, bridged, &TypeError{Class: c.Name, Value: v, Msg: "a single callable needs a single abstract method"}
		}
	default:
		return nil, nil, shape, bridged, &TypeError{Class: c.Name, Value: v}
	}
	return delegate, ambient, shape, bridged, nil
}

// New creates an instance. For an instance-level adapter the last argument
// is the delegate and the others go to the base constructor; a class-level
// adapter forwards all arguments to the base constructor.
func (c *Class) New(ctx context.Context, args ...any) (*Instance, error) {
	if c.Mode() == typemodel.ClassLevel {
		if !c.initialized.Load() {
			return nil, fmt.Errorf("%s: %w", c.Name, ErrNotInitialized)
		}
		ctor, ok := c.findCtor(image.CtorDelegating, len(args))
		if !ok {
			return nil, c.arityError(len(args))
		}
		return c.instance(ctor, c.classDelegate, c.classAmbient, c.classShape).construct(ctx, args)
	}

	if len(args) == 0 {
		return nil, &TypeError{Class: c.Name, Msg: "missing delegate argument"}
	}
	last, baseArgs := args[len(args)-1], args[:len(args)-1]
	delegate, ambient, shape, bridged, err := c.resolveDelegate(ctx, last)
	if err != nil {
		return nil, err
	}
	form := image.CtorMembers
	switch {
	case bridged:
		form = image.CtorBridge
	case shape == dispatch.ShapeCallable:
		form = image.CtorCallable
	}
	ctor, ok := c.findCtor(form, len(args))
	if !ok {
		return nil, c.arityError(len(args))
	}
	return c.instance(ctor, delegate, ambient, shape).construct(ctx, baseArgs)
}

func (c *Class) findCtor(form image.CtorForm, arity int) (image.Ctor, bool) {
	for _, ctor := range c.img.Ctors {
		if ctor.Form == form && len(ctor.Params) == arity {
			return ctor, true
		}
	}
	return image.Ctor{}, false
}

func (c *Class) arityError(n int) error {
	return typemodel.NewRuntimeError(fmt.Sprintf("%s has no constructor taking %d arguments", c.Name, n), nil)
}

func (c *Class) instance(ctor image.Ctor, delegate, ambient any, shape dispatch.Shape) *Instance {
	return &Instance{
		class:    c,
		ctor:     ctor,
		base:     c.contracts.Constructors[ctor.Base],
		fields:   typemodel.NewFields(),
		delegate: delegate,
		ambient:  ambient,
		shape:    shape,
	}
}

// convertArgs coerces base constructor arguments to their declared types.
func convertArgs(params []typemodel.TypeRef, args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, p := range params {
		v, err := marshal.Convert(args[i], p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
