package dispatch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Func is a dynamic callable. this is the receiver chosen by the caller.
type Func func(ctx context.Context, this any, args ...any) (any, error)

// Object is a dynamic object: named members plus an optional prototype
// that supplies inherited members.
type Object struct {
	Proto *Object

	mu      sync.RWMutex
	members map[string]any
}

// NewObject creates an empty object inheriting from proto (may be nil).
func NewObject(proto *Object) *Object {
	return &Object{Proto: proto, members: make(map[string]any)}
}

// Set defines an own member and returns o.
func (o *Object) Set(name string, v any) *Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.members[name] = v
	return o
}

// Delete removes an own member.
func (o *Object) Delete(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.members, name)
}

// Own returns an own member.
func (o *Object) Own(name string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.members[name]
	return v, ok
}

// Get returns a member, searching the prototype chain.
func (o *Object) Get(name string) (any, bool) {
	for cur := o; cur != nil; cur = cur.Proto {
		if v, ok := cur.Own(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Keys lists the own member names in order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	keys := make([]string, 0, len(o.members))
	for k := range o.members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Global is an ambient execution context: the global scope dynamic code
// runs against.
type Global struct {
	ID   uuid.UUID
	Name string
	Vars *Object
}

// NewGlobal creates a global with a fresh identity.
func NewGlobal(name string) *Global {
	return &Global{ID: uuid.New(), Name: name, Vars: NewObject(nil)}
}

func (g *Global) String() string {
	if g == nil {
		return "<no global>"
	}
	return g.Name + "#" + g.ID.String()[:8]
}

// Mirror wraps a value that belongs to another global so it can be handed
// across contexts.
type Mirror struct {
	Target any
	Home   *Global
}

// Rope is an internal lazily concatenated string. It never reaches
// statically typed code: Externalize flattens it.
type Rope []string

func (r Rope) String() string { return strings.Join(r, "") }

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the dynamic "no value"; it externalizes to nil.
var Undefined any = undefined{}
