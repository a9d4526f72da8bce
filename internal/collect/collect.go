// Package collect gathers the method contracts an adapter for a supertype
// descriptor has to account for.
package collect

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/funvibe/adapt/internal/typemodel"
)

// SuperPrefix starts the names of generated super-accessor methods. Members
// whose names already carry it are never treated as contracts.
const SuperPrefix = "super$"

var (
	ErrInterfaceBase           = errors.New("base type is an interface")
	ErrFinalBase               = errors.New("base type is final")
	ErrNonPublicType           = errors.New("type is not public")
	ErrNoAccessibleConstructor = errors.New("no usable constructor")
	ErrFinalFinalizer          = errors.New("teardown method is final")
	ErrUnreachableAbstract     = errors.New("abstract method is declared on an inaccessible type")
)

// Contracts is the outcome of collecting a descriptor.
type Contracts struct {
	Descriptor typemodel.Descriptor

	// Methods is the contract set in visit order.
	Methods []*typemodel.Method
	// Abstract is the sorted abstract-name set.
	Abstract []string
	// Final is the final-exclusion set keyed by method identity.
	Final map[string]*typemodel.Method
	// SAM names the single abstract method, empty when not SAM-eligible.
	SAM string
	// Finalizer is the teardown declared by a proper ancestor, or nil.
	Finalizer *typemodel.Method
	// Constructors are the accessible base constructors.
	Constructors []*typemodel.Constructor

	index map[string]*typemodel.Method
}

// SAMEligible reports whether the abstract contract reduces to one name.
func (c *Contracts) SAMEligible() bool { return c.SAM != "" }

// HasFinalizer reports whether an ancestor declares a non-trivial teardown.
func (c *Contracts) HasFinalizer() bool { return c.Finalizer != nil }

// AutoConvertible reports whether a bare callable may be coerced to the
// supertype without explicit construction.
func (c *Contracts) AutoConvertible() bool {
	if !c.SAMEligible() {
		return false
	}
	for _, ctor := range c.Constructors {
		if len(ctor.Params) == 0 {
			return true
		}
	}
	return false
}

// Contract returns the contract with the given identity.
func (c *Contracts) Contract(key string) *typemodel.Method { return c.index[key] }

// IsFinal reports whether the identity is in the final-exclusion set.
func (c *Contracts) IsFinal(key string) bool {
	_, ok := c.Final[key]
	return ok
}

// IsAbstract reports whether name is in the abstract-name set.
func (c *Contracts) IsAbstract(name string) bool {
	i := sort.SearchStrings(c.Abstract, name)
	return i < len(c.Abstract) && c.Abstract[i] == name
}

type collector struct {
	out         *Contracts
	abstract    map[string]bool
	unreachable map[string]*typemodel.Method
	visited     map[*typemodel.Type]bool
	err         error
}

// Collect walks the base type, its superclass chain and every transitively
// implemented interface, and builds the contract, abstract-name and
// final-exclusion sets.
func Collect(desc typemodel.Descriptor) (*Contracts, error) {
	base := desc.Base
	if base == nil {
		base = typemodel.Root
		desc.Base = base
	}
	if base.Interface {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceBase, base)
	}
	if base.Final {
		return nil, fmt.Errorf("%w: %s", ErrFinalBase, base)
	}
	for _, t := range desc.Types() {
		if t.Access != typemodel.Public {
			return nil, fmt.Errorf("%w: %s", ErrNonPublicType, t)
		}
	}
	for _, itf := range desc.Interfaces {
		if !itf.Interface {
			return nil, fmt.Errorf("%s is listed as an interface but is a class", itf)
		}
	}

	col := &collector{
		out: &Contracts{
			Descriptor: desc,
			Final:      make(map[string]*typemodel.Method),
			index:      make(map[string]*typemodel.Method),
		},
		abstract:    make(map[string]bool),
		unreachable: make(map[string]*typemodel.Method),
		visited:     make(map[*typemodel.Type]bool),
	}
	col.gather(base)
	for _, itf := range desc.Interfaces {
		col.gather(itf)
	}
	if col.err != nil {
		return nil, col.err
	}

	for key, m := range col.unreachable {
		if _, ok := col.out.index[key]; ok {
			continue
		}
		if col.out.IsFinal(key) {
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrUnreachableAbstract, m)
	}

	for _, ctor := range base.Constructors {
		if ctor.Access.Overridable() {
			col.out.Constructors = append(col.out.Constructors, ctor)
		}
	}
	if len(col.out.Constructors) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoAccessibleConstructor, base)
	}

	for name := range col.abstract {
		col.out.Abstract = append(col.out.Abstract, name)
	}
	sort.Strings(col.out.Abstract)
	if len(col.out.Abstract) == 1 {
		col.out.SAM = col.out.Abstract[0]
	}
	return col.out, nil
}

func (col *collector) gather(t *typemodel.Type) {
	if t == nil || col.err != nil || col.visited[t] {
		return
	}
	col.visited[t] = true

	// Interfaces contribute their whole public method set; classes only what
	// they declare, so protected members surface layer by layer.
	methods := t.AllMethods()
	if t.Access != typemodel.Public {
		for _, m := range methods {
			if m.Abstract {
				col.unreachable[m.Key()] = m
			}
		}
	} else {
		for _, m := range methods {
			if col.err = col.visit(t, m); col.err != nil {
				return
			}
		}
	}

	if !t.Interface {
		col.gather(t.Super)
		for _, itf := range t.Interfaces {
			col.gather(itf)
		}
	}
}

func (col *collector) visit(t *typemodel.Type, m *typemodel.Method) error {
	if strings.HasPrefix(m.Name, SuperPrefix) || m.Static {
		return nil
	}
	if !t.Interface && !m.Access.Overridable() {
		return nil
	}
	if m.IsTeardown() {
		if t == typemodel.Root {
			return nil
		}
		if m.Final {
			return fmt.Errorf("%w: %s", ErrFinalFinalizer, m)
		}
		if col.out.Finalizer == nil {
			col.out.Finalizer = m
		}
		return nil
	}

	key := m.Key()
	if m.Final || m.CallerSensitive {
		if _, ok := col.out.Final[key]; !ok {
			col.out.Final[key] = m
		}
		return nil
	}
	if col.out.IsFinal(key) {
		return nil
	}
	if _, ok := col.out.index[key]; ok {
		return nil
	}
	col.out.index[key] = m
	col.out.Methods = append(col.out.Methods, m)
	if m.Abstract {
		col.abstract[m.Name] = true
	}
	return nil
}
