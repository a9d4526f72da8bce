// Package goimport derives type-model types from Go packages, so adapters
// can be requested for types declared in real Go source.
//
// A named struct type becomes a class: its first embedded struct is the
// superclass, embedded interfaces are implemented interfaces, declared
// methods are concrete members and New* functions returning the type are
// constructors. A named interface type becomes an interface whose methods
// are abstract. Any other named type becomes a final class.
package goimport

import (
	"fmt"
	"go/types"
	"os"
	"sort"
	"strings"

	"github.com/funvibe/adapt/internal/typemodel"
	"golang.org/x/tools/go/packages"
)

// Importer maps go/types named types to type-model types. Each named type
// is converted once; repeated lookups return the same *typemodel.Type.
type Importer struct {
	pkgs  map[string]*types.Package
	types map[*types.TypeName]*typemodel.Type
}

// NewImporter creates an importer over already type-checked packages.
func NewImporter(pkgs ...*types.Package) *Importer {
	im := &Importer{
		pkgs:  make(map[string]*types.Package),
		types: make(map[*types.TypeName]*typemodel.Type),
	}
	for _, p := range pkgs {
		im.add(p)
	}
	return im
}

func (im *Importer) add(p *types.Package) {
	if p == nil || im.pkgs[p.Path()] != nil {
		return
	}
	im.pkgs[p.Path()] = p
	for _, dep := range p.Imports() {
		im.add(dep)
	}
}

// Load type-checks the packages matching patterns, relative to dir, using
// go/packages.
func Load(dir string, patterns ...string) (*Importer, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: dir,
		Env: append(os.Environ(), "GOWORK=off"),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	var loaded []*types.Package
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		loaded = append(loaded, pkg.Types)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return NewImporter(loaded...), nil
}

// Packages lists the known package paths.
func (im *Importer) Packages() []string {
	paths := make([]string, 0, len(im.pkgs))
	for p := range im.pkgs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Type converts the named type pkgPath.name.
func (im *Importer) Type(pkgPath, name string) (*typemodel.Type, error) {
	pkg, ok := im.pkgs[pkgPath]
	if !ok {
		return nil, fmt.Errorf("package %s not loaded", pkgPath)
	}
	obj := pkg.Scope().Lookup(name)
	if obj == nil {
		return nil, fmt.Errorf("type %q not found in package %s", name, pkgPath)
	}
	tn, ok := obj.(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%q is not a type in package %s", name, pkgPath)
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%q is not a named type in package %s", name, pkgPath)
	}
	if named.TypeParams().Len() > 0 {
		return nil, fmt.Errorf("generic type %s.%s is not supported", pkgPath, name)
	}
	return im.convert(named), nil
}

// Resolve looks up a qualified name ("import/path.Name"). It has the shape
// of config.Resolver.
func (im *Importer) Resolve(qualified string) (*typemodel.Type, bool) {
	i := strings.LastIndexByte(qualified, '.')
	if i <= 0 {
		return nil, false
	}
	t, err := im.Type(qualified[:i], qualified[i+1:])
	return t, err == nil
}

// Descriptor builds an adapter descriptor from a base type and interface
// names in pkgPath. An empty base means the universal root.
func (im *Importer) Descriptor(pkgPath, base string, ifaces ...string) (typemodel.Descriptor, error) {
	var ts []*typemodel.Type
	for _, name := range append([]string{base}, ifaces...) {
		if name == "" {
			continue
		}
		t, err := im.Type(pkgPath, name)
		if err != nil {
			return typemodel.Descriptor{}, err
		}
		ts = append(ts, t)
	}
	return typemodel.NewDescriptor(ts...)
}

// FromPackage is Descriptor over a single type-checked package.
func FromPackage(pkg *types.Package, base string, ifaces ...string) (typemodel.Descriptor, error) {
	return NewImporter(pkg).Descriptor(pkg.Path(), base, ifaces...)
}

func (im *Importer) convert(named *types.Named) *typemodel.Type {
	obj := named.Obj()
	if t, ok := im.types[obj]; ok {
		return t
	}
	t := &typemodel.Type{Name: obj.Name()}
	if obj.Pkg() != nil {
		t.Package = obj.Pkg().Path()
	}
	if !obj.Exported() {
		t.Access = typemodel.Package
	}
	im.types[obj] = t

	switch u := named.Underlying().(type) {
	case *types.Interface:
		t.Interface = true
		for i := 0; i < u.NumEmbeddeds(); i++ {
			if en, ok := u.EmbeddedType(i).(*types.Named); ok {
				if _, isItf := en.Underlying().(*types.Interface); isItf {
					t.Interfaces = append(t.Interfaces, im.convert(en))
				}
			}
		}
		for i := 0; i < u.NumExplicitMethods(); i++ {
			t.AddMethod(im.method(u.ExplicitMethod(i)))
		}
		return t
	case *types.Struct:
		t.Super = typemodel.Root
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			if !f.Embedded() {
				continue
			}
			en, ok := deref(f.Type()).(*types.Named)
			if !ok {
				continue
			}
			switch en.Underlying().(type) {
			case *types.Struct:
				if t.Super == typemodel.Root {
					t.Super = im.convert(en)
				}
			case *types.Interface:
				t.Interfaces = append(t.Interfaces, im.convert(en))
			}
		}
		t.AddConstructor(&typemodel.Constructor{})
	default:
		t.Super = typemodel.Root
		t.Final = true
	}

	for i := 0; i < named.NumMethods(); i++ {
		t.AddMethod(im.method(named.Method(i)))
	}
	im.constructors(named, t)
	return t
}

// constructors adds New* functions of the declaring package that return the
// type or a pointer to it.
func (im *Importer) constructors(named *types.Named, t *typemodel.Type) {
	pkg := named.Obj().Pkg()
	if pkg == nil {
		return
	}
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok || !strings.HasPrefix(name, "New") {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.Results().Len() == 0 || !types.Identical(deref(sig.Results().At(0).Type()), named) {
			continue
		}
		params := im.params(sig)
		if hasCtor(t, params) {
			continue
		}
		access := typemodel.Public
		if !fn.Exported() {
			access = typemodel.Package
		}
		t.AddConstructor(&typemodel.Constructor{Params: params, Access: access})
	}
}

func hasCtor(t *typemodel.Type, params []typemodel.TypeRef) bool {
	desc := typemodel.SignatureDescriptor(params, typemodel.Void)
	for _, c := range t.Constructors {
		if c.Descriptor() == desc {
			return true
		}
	}
	return false
}

func (im *Importer) method(fn *types.Func) *typemodel.Method {
	sig := fn.Type().(*types.Signature)
	params := im.params(sig)
	m := &typemodel.Method{Name: fn.Name(), Params: params, Result: typemodel.Void}
	if !fn.Exported() {
		m.Access = typemodel.Package
	}

	results := sig.Results()
	n := results.Len()
	if n > 0 && isErrorType(results.At(n-1).Type()) {
		m.AnyFailure = true
		n--
	}
	switch n {
	case 0:
	case 1:
		m.Result = im.ref(results.At(0).Type())
	default:
		m.Result = typemodel.Any
	}
	return m
}

// params maps a signature's parameters, dropping a leading context.Context,
// which the runtime supplies.
func (im *Importer) params(sig *types.Signature) []typemodel.TypeRef {
	var refs []typemodel.TypeRef
	ps := sig.Params()
	for i := 0; i < ps.Len(); i++ {
		pt := ps.At(i).Type()
		if i == 0 && isContextType(pt) {
			continue
		}
		refs = append(refs, im.ref(pt))
	}
	return refs
}

func (im *Importer) ref(t types.Type) typemodel.TypeRef {
	switch t := t.(type) {
	case *types.Basic:
		return basicRef(t)
	case *types.Pointer:
		if n, ok := t.Elem().(*types.Named); ok {
			return namedRef(n)
		}
	case *types.Named:
		if b, ok := t.Underlying().(*types.Basic); ok && t.Obj().Pkg() == nil {
			return basicRef(b)
		}
		return namedRef(t)
	case *types.Alias:
		return im.ref(types.Unalias(t))
	}
	return typemodel.Any
}

func namedRef(n *types.Named) typemodel.TypeRef {
	obj := n.Obj()
	if obj.Pkg() == nil {
		return typemodel.ObjectRef(obj.Name())
	}
	return typemodel.ObjectRef(obj.Pkg().Path() + "." + obj.Name())
}

func basicRef(t *types.Basic) typemodel.TypeRef {
	switch t.Kind() {
	case types.Bool, types.UntypedBool:
		return typemodel.Bool
	case types.Int8:
		return typemodel.Ref(typemodel.KindInt8)
	case types.Int16:
		return typemodel.Ref(typemodel.KindInt16)
	case types.Int32, types.UntypedRune:
		return typemodel.Int32
	case types.Uint8:
		return typemodel.Ref(typemodel.KindUint8)
	case types.Uint16:
		return typemodel.Ref(typemodel.KindUint16)
	case types.Int, types.Int64, types.Uint, types.Uint32, types.Uint64, types.Uintptr, types.UntypedInt:
		return typemodel.Int64
	case types.Float32:
		return typemodel.Ref(typemodel.KindFloat32)
	case types.Float64, types.UntypedFloat:
		return typemodel.Float64
	case types.String, types.UntypedString:
		return typemodel.String
	}
	return typemodel.Any
}

func deref(t types.Type) types.Type {
	if p, ok := t.(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// isContextType checks if a type is context.Context.
func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

// isErrorType checks if a type is the error interface.
func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if ok {
		t = named.Underlying()
	}
	iface, ok := t.(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}
