package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/funvibe/adapt/internal/marshal"
	"github.com/funvibe/adapt/internal/typemodel"
)

// Resolver looks up a type not declared in the config, such as one
// imported from Go source, by qualified name.
type Resolver func(name string) (*typemodel.Type, bool)

// Request is a resolved adapter request.
type Request struct {
	Name       string
	Descriptor typemodel.Descriptor
	Mode       typemodel.Mode
}

// Model is the type model built from a config.
type Model struct {
	Types    map[string]*typemodel.Type
	Failures map[string]error
	Requests []Request
}

// Lookup returns a declared type by name.
func (m *Model) Lookup(name string) (*typemodel.Type, bool) {
	t, ok := m.Types[name]
	return t, ok
}

// Request returns the named request.
func (m *Model) Request(name string) (Request, bool) {
	for _, r := range m.Requests {
		if r.Name == name {
			return r, true
		}
	}
	return Request{}, false
}

// StorePath resolves the image store path against the config location.
func (c *Config) StorePath(configPath string) string {
	if c.Store == "" || filepath.IsAbs(c.Store) {
		return c.Store
	}
	return filepath.Join(filepath.Dir(configPath), c.Store)
}

// Build creates the type model. Names are looked up among the declared
// types first (by name or qualified name), then through resolve, which may
// be nil.
func (c *Config) Build(resolve Resolver) (*Model, error) {
	m := &Model{
		Types:    make(map[string]*typemodel.Type),
		Failures: make(map[string]error),
	}
	for _, f := range c.Failures {
		m.Failures[f] = errors.New(f)
	}

	for i := range c.Types {
		decl := &c.Types[i]
		access, _ := parseAccess(decl.Access)
		t := &typemodel.Type{
			Name:      decl.Name,
			Package:   decl.Package,
			Interface: decl.IsInterface(),
			Final:     decl.Final,
			Access:    access,
		}
		m.Types[decl.Name] = t
		if q := decl.QualifiedName(); q != decl.Name {
			m.Types[q] = t
		}
	}

	lookup := func(name string) (*typemodel.Type, error) {
		if t, ok := m.Types[name]; ok {
			return t, nil
		}
		if name == typemodel.Root.Name {
			return typemodel.Root, nil
		}
		if resolve != nil {
			if t, ok := resolve(name); ok {
				return t, nil
			}
		}
		return nil, fmt.Errorf("unknown type %q", name)
	}

	for i := range c.Types {
		decl := &c.Types[i]
		t := m.Types[decl.Name]
		if err := c.linkType(decl, t, m, lookup); err != nil {
			return nil, fmt.Errorf("type %s: %w", decl.Name, err)
		}
	}
	for i := range c.Types {
		if err := checkCycle(m.Types[c.Types[i].Name]); err != nil {
			return nil, err
		}
	}

	for _, a := range c.Adapters {
		var types []*typemodel.Type
		if a.Base != "" {
			t, err := lookup(a.Base)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", a.Name, err)
			}
			if t.Interface {
				return nil, fmt.Errorf("adapter %s: base %s is an interface", a.Name, a.Base)
			}
			types = append(types, t)
		}
		for _, name := range a.Interfaces {
			t, err := lookup(name)
			if err != nil {
				return nil, fmt.Errorf("adapter %s: %w", a.Name, err)
			}
			if !t.Interface {
				return nil, fmt.Errorf("adapter %s: %s is not an interface", a.Name, name)
			}
			types = append(types, t)
		}
		desc, err := typemodel.NewDescriptor(types...)
		if err != nil {
			return nil, fmt.Errorf("adapter %s: %w", a.Name, err)
		}
		mode, _ := typemodel.ParseMode(a.Mode)
		m.Requests = append(m.Requests, Request{Name: a.Name, Descriptor: desc, Mode: mode})
	}
	return m, nil
}

func (c *Config) linkType(decl *TypeSpec, t *typemodel.Type, m *Model, lookup func(string) (*typemodel.Type, error)) error {
	if !t.Interface {
		t.Super = typemodel.Root
		if decl.Super != "" {
			super, err := lookup(decl.Super)
			if err != nil {
				return err
			}
			if super.Interface {
				return fmt.Errorf("super %s is an interface", decl.Super)
			}
			t.Super = super
		}
	}
	for _, name := range decl.Implements {
		itf, err := lookup(name)
		if err != nil {
			return err
		}
		if !itf.Interface {
			return fmt.Errorf("%s is not an interface", name)
		}
		t.Interfaces = append(t.Interfaces, itf)
	}

	for _, ms := range decl.Methods {
		method, err := buildMethod(ms, m)
		if err != nil {
			return fmt.Errorf("method %s: %w", ms.Name, err)
		}
		t.AddMethod(method)
	}
	for _, cs := range decl.Constructors {
		params, err := parseRefs(cs.Params)
		if err != nil {
			return fmt.Errorf("constructor: %w", err)
		}
		access, _ := parseAccess(cs.Access)
		t.AddConstructor(&typemodel.Constructor{Params: params, Access: access})
	}
	return nil
}

func buildMethod(ms MethodSpec, m *Model) (*typemodel.Method, error) {
	params, err := parseRefs(ms.Params)
	if err != nil {
		return nil, err
	}
	result, err := parseRef(ms.Result)
	if err != nil {
		return nil, err
	}
	access, _ := parseAccess(ms.Access)
	method := &typemodel.Method{
		Name:            ms.Name,
		Params:          params,
		Result:          result,
		Access:          access,
		Abstract:        ms.Abstract,
		Final:           ms.Final,
		Static:          ms.Static,
		CallerSensitive: ms.CallerSensitive,
		AnyFailure:      ms.AnyFailure,
	}
	for _, f := range ms.Throws {
		method.Throws = append(method.Throws, m.Failures[f])
	}
	if ms.Value != nil {
		value, err := marshal.Convert(ms.Value, result)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		method.Impl = func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
			return value, nil
		}
	}
	return method, nil
}

// parseRef accepts the descriptor form ("int32", "object<T>") and bare type
// names, which become object references.
func parseRef(s string) (typemodel.TypeRef, error) {
	if ref, err := typemodel.ParseRef(s); err == nil {
		return ref, nil
	}
	if s == "" || s == "object" {
		return typemodel.Any, nil
	}
	if !isIdent(s) {
		return typemodel.TypeRef{}, fmt.Errorf("bad type reference %q", s)
	}
	return typemodel.ObjectRef(s), nil
}

func parseRefs(ss []string) ([]typemodel.TypeRef, error) {
	var refs []typemodel.TypeRef
	for _, s := range ss {
		ref, err := parseRef(s)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || r == '.' && i > 0 || r == '/' && i > 0:
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

func checkCycle(t *typemodel.Type) error {
	seen := make(map[*typemodel.Type]bool)
	for cur := t; cur != nil; cur = cur.Super {
		if seen[cur] {
			return fmt.Errorf("type %s: superclass cycle", t.Name)
		}
		seen[cur] = true
	}
	return nil
}
