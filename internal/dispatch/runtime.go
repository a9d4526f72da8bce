package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/funvibe/adapt/internal/namecodec"
	"github.com/funvibe/adapt/internal/typemodel"
	"github.com/google/uuid"
)

// Runtime is a Service over Object, Func, Mirror and Global values. The
// active global travels on the call's context.Context; the runtime's own
// global applies where none was entered.
type Runtime struct {
	global *Global

	mu   sync.Mutex
	open map[uuid.UUID]struct{}

	// SpreadCalls counts invocations that used the spread form.
	SpreadCalls atomic.Int64
}

type token struct {
	id uuid.UUID
}

type ambientKey struct{}

// NewRuntime creates a runtime whose default global is global (may be nil).
func NewRuntime(global *Global) *Runtime {
	return &Runtime{
		global: global,
		open:   make(map[uuid.UUID]struct{}),
	}
}

var _ Service = (*Runtime)(nil)

func (rt *Runtime) Shape(v any) Shape {
	switch v.(type) {
	case *Object:
		return ShapeMembers
	case Func:
		return ShapeCallable
	}
	return ShapeNone
}

func (rt *Runtime) Member(delegate any, name string) (any, bool) {
	obj, ok := delegate.(*Object)
	if !ok {
		return nil, false
	}
	v, ok := obj.Get(namecodec.Decode(name))
	return invokable(v, ok)
}

func (rt *Runtime) OwnMember(delegate any, name string) (any, bool) {
	obj, ok := delegate.(*Object)
	if !ok {
		return nil, false
	}
	v, ok := obj.Own(namecodec.Decode(name))
	return invokable(v, ok)
}

func invokable(v any, ok bool) (any, bool) {
	if !ok {
		return nil, false
	}
	fn, ok := v.(Func)
	return fn, ok
}

func (rt *Runtime) Invoke(ctx context.Context, fn, recv any, args []any) (any, error) {
	f, ok := fn.(Func)
	if !ok {
		return nil, typemodel.NewRuntimeError(fmt.Sprintf("%T is not callable", fn), nil)
	}
	return f(ctx, recv, args...)
}

func (rt *Runtime) InvokeSpread(ctx context.Context, fn, recv any, packed []any) (any, error) {
	rt.SpreadCalls.Add(1)
	return rt.Invoke(ctx, fn, recv, packed)
}

func (rt *Runtime) Unwrap(v any) (any, any, bool) {
	m, ok := v.(*Mirror)
	if !ok || m == nil {
		return nil, nil, false
	}
	return m.Target, m.Home, true
}

func (rt *Runtime) Current(ctx context.Context) any {
	if g := rt.CurrentGlobal(ctx); g != nil {
		return g
	}
	return nil
}

// CurrentGlobal is Current with its concrete type.
func (rt *Runtime) CurrentGlobal(ctx context.Context) *Global {
	if g, ok := ctx.Value(ambientKey{}).(*Global); ok {
		return g
	}
	return rt.global
}

func (rt *Runtime) Enter(ctx context.Context, ambient any) (context.Context, any) {
	g, _ := ambient.(*Global)
	tok := &token{id: uuid.New()}
	rt.mu.Lock()
	rt.open[tok.id] = struct{}{}
	rt.mu.Unlock()
	return context.WithValue(ctx, ambientKey{}, g), tok
}

// Restore closes the scope of an Enter. Tokens of another runtime and
// tokens restored before are rejected with a panic.
func (rt *Runtime) Restore(t any) {
	tok, ok := t.(*token)
	if !ok {
		panic(fmt.Sprintf("dispatch: foreign restoration token %T", t))
	}
	rt.mu.Lock()
	_, open := rt.open[tok.id]
	delete(rt.open, tok.id)
	rt.mu.Unlock()
	if !open {
		panic(fmt.Sprintf("dispatch: restoration token %s is stale", tok.id))
	}
}

// Open reports how many entered scopes are not yet restored.
func (rt *Runtime) Open() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.open)
}

func (rt *Runtime) Externalize(v any) any {
	switch x := v.(type) {
	case Rope:
		return x.String()
	case undefined:
		return nil
	}
	return v
}
