// Package synth is the class synthesis engine. It turns a supertype
// descriptor and an override mode into the binary image of a new adapter
// type: constructors, one generated body per contract method, super
// accessors and the teardown indirection.
//
// Synthesis is a pure computation; it neither loads nor caches the result.
package synth

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/funvibe/adapt/internal/collect"
	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/namecodec"
	"github.com/funvibe/adapt/internal/typemodel"
	"github.com/tliron/commonlog"
)

// AdapterPackage is the package synthesized types are named under.
const AdapterPackage = "adapters"

// Appended constructor parameter types.
var (
	MembersParam  = typemodel.ObjectRef("members")
	CallableParam = typemodel.ObjectRef("callable")
	OpaqueParam   = typemodel.Any
)

// ErrUncoveredAbstract means an abstract contract got no generated body.
var ErrUncoveredAbstract = errors.New("abstract method has no generated body")

// Result is a synthesized type ready to be handed to a loader.
type Result struct {
	Name            string
	Image           []byte
	SAM             string
	AutoConvertible bool
}

// Engine synthesizes adapter images.
type Engine struct {
	log commonlog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{log: commonlog.GetLogger("adapt.synth")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize builds the image of an adapter for desc.
func (e *Engine) Synthesize(desc typemodel.Descriptor, mode typemodel.Mode) (*Result, error) {
	contracts, err := collect.Collect(desc)
	if err != nil {
		return nil, fmt.Errorf("synthesizing adapter for %s: %w", desc, err)
	}
	img := e.emit(contracts, mode)
	if err := verify(img, contracts); err != nil {
		return nil, fmt.Errorf("synthesizing adapter for %s: %w", desc, err)
	}
	data, err := image.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("synthesizing adapter for %s: %w", desc, err)
	}
	e.log.Debugf("synthesized %s: %d methods, %d constructors, sam=%q", img.Name, len(img.Methods), len(img.Ctors), img.SAM)
	return &Result{
		Name:            img.Name,
		Image:           data,
		SAM:             img.SAM,
		AutoConvertible: img.AutoConvertible,
	}, nil
}

// Emit builds the unserialized image, for inspection.
func (e *Engine) Emit(desc typemodel.Descriptor, mode typemodel.Mode) (*image.Image, *collect.Contracts, error) {
	contracts, err := collect.Collect(desc)
	if err != nil {
		return nil, nil, err
	}
	img := e.emit(contracts, mode)
	if err := verify(img, contracts); err != nil {
		return nil, nil, err
	}
	return img, contracts, nil
}

func (e *Engine) emit(c *collect.Contracts, mode typemodel.Mode) *image.Image {
	desc := c.Descriptor
	img := &image.Image{
		Version:         image.Version,
		Name:            Name(desc, mode),
		Super:           desc.Base.QualifiedName(),
		Mode:            uint8(mode),
		SAM:             c.SAM,
		AutoConvertible: c.AutoConvertible(),
		Initializer:     mode == typemodel.ClassLevel,
	}
	for _, itf := range desc.Interfaces {
		img.Interfaces = append(img.Interfaces, itf.QualifiedName())
	}
	img.Ctors = emitConstructors(c, mode)
	img.Methods = emitMethods(c)
	return img
}

func emitConstructors(c *collect.Contracts, mode typemodel.Mode) []image.Ctor {
	var ctors []image.Ctor
	for i, base := range c.Constructors {
		params := descriptors(base.Params)
		if mode == typemodel.ClassLevel {
			ctors = append(ctors, image.Ctor{Form: image.CtorDelegating, Base: i, Params: params})
			continue
		}
		ctors = append(ctors, image.Ctor{Form: image.CtorMembers, Base: i, Params: appendParam(params, MembersParam)})
		if c.SAMEligible() {
			ctors = append(ctors, image.Ctor{Form: image.CtorCallable, Base: i, Params: appendParam(params, CallableParam)})
		}
		ctors = append(ctors, image.Ctor{Form: image.CtorBridge, Base: i, Params: appendParam(params, OpaqueParam)})
	}
	return ctors
}

func emitMethods(c *collect.Contracts) []image.Method {
	var methods, supers []image.Method
	for _, m := range c.Methods {
		sym := namecodec.Encode(m.Name)
		body := image.BodyDispatch
		switch {
		case c.SAMEligible() && m.Name == c.SAM:
			body = image.BodySAM
		case m.Name == typemodel.DescribeName && len(m.Params) == 0:
			body = image.BodyDescribe
		}
		methods = append(methods, image.Method{
			Symbol:   sym,
			Desc:     m.Descriptor(),
			Body:     body,
			Abstract: m.Abstract,
		})
		if !m.Abstract {
			supers = append(supers, image.Method{
				Symbol: image.SuperSymbol(sym),
				Desc:   m.Descriptor(),
				Body:   image.BodySuper,
			})
		}
	}
	methods = append(methods, supers...)
	if c.HasFinalizer() {
		desc := c.Finalizer.Descriptor()
		methods = append(methods,
			image.Method{Symbol: image.FinalizerHelperSymbol, Desc: desc, Body: image.BodyFinalizerHelper, Static: true},
			image.Method{Symbol: namecodec.Encode(typemodel.TeardownName), Desc: desc, Body: image.BodyFinalizer},
		)
	}
	return methods
}

// verify checks that every abstract contract has a generated body and no
// final-exclusion member got one.
func verify(img *image.Image, c *collect.Contracts) error {
	bodies := make(map[string]bool, len(img.Methods))
	for _, m := range img.Methods {
		switch m.Body {
		case image.BodyDispatch, image.BodySAM, image.BodyDescribe:
			key := namecodec.Decode(m.Symbol) + m.Desc
			if c.IsFinal(key) {
				return fmt.Errorf("final method %s would be overridden", key)
			}
			bodies[key] = true
		}
	}
	for _, m := range c.Methods {
		if m.Abstract && !bodies[m.Key()] {
			return fmt.Errorf("%w: %s", ErrUncoveredAbstract, m)
		}
	}
	return nil
}

// Name returns the synthesized type name for a request. Names are stable:
// the same descriptor and mode always give the same name.
func Name(desc typemodel.Descriptor, mode typemodel.Mode) string {
	base := desc.Base
	if base == nil {
		base = typemodel.Root
	}
	h := fnv.New32a()
	for _, itf := range desc.Interfaces {
		h.Write([]byte(itf.QualifiedName()))
		h.Write([]byte{0})
	}
	h.Write([]byte(mode.String()))
	parts := []string{AdapterPackage}
	if base.Package != "" {
		parts = append(parts, base.Package)
	}
	parts = append(parts, fmt.Sprintf("%s$$Adapter$%08x", base.Name, h.Sum32()))
	return strings.Join(parts, "/")
}

func descriptors(refs []typemodel.TypeRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

func appendParam(params []string, ref typemodel.TypeRef) []string {
	out := make([]string, len(params), len(params)+1)
	copy(out, params)
	return append(out, ref.String())
}
