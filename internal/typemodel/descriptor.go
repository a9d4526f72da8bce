package typemodel

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects where the delegate of an adapter comes from.
type Mode uint8

const (
	// InstanceLevel adapters receive their delegate per construction.
	InstanceLevel Mode = iota
	// ClassLevel adapters share one delegate bound when the type initializes.
	ClassLevel
)

func (m Mode) String() string {
	if m == ClassLevel {
		return "class"
	}
	return "instance"
}

// ParseMode accepts "class" or "instance" (the default for "").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "instance":
		return InstanceLevel, nil
	case "class":
		return ClassLevel, nil
	}
	return 0, fmt.Errorf("unknown override mode %q", s)
}

// ErrMultipleClasses is returned by NewDescriptor when more than one class
// is requested.
var ErrMultipleClasses = errors.New("more than one class in adapter request")

// Descriptor is the supertype of an adapter request: a base class plus an
// ordered list of interfaces.
type Descriptor struct {
	Base       *Type
	Interfaces []*Type
}

// NewDescriptor builds a descriptor from a mixed list of types. The only
// class becomes the base; with no class, Root is the base.
func NewDescriptor(types ...*Type) (Descriptor, error) {
	var d Descriptor
	for _, t := range types {
		if t == nil {
			return Descriptor{}, errors.New("nil type in adapter request")
		}
		if t.Interface {
			d.Interfaces = append(d.Interfaces, t)
			continue
		}
		if d.Base != nil {
			return Descriptor{}, fmt.Errorf("%w: %s and %s", ErrMultipleClasses, d.Base, t)
		}
		d.Base = t
	}
	if d.Base == nil {
		d.Base = Root
	}
	return d, nil
}

// Types lists the base followed by the interfaces.
func (d Descriptor) Types() []*Type {
	return append([]*Type{d.Base}, d.Interfaces...)
}

func (d Descriptor) String() string {
	names := make([]string, 0, len(d.Interfaces)+1)
	for _, t := range d.Types() {
		if t != nil {
			names = append(names, t.QualifiedName())
		}
	}
	return "[" + strings.Join(names, ", ") + "]"
}
