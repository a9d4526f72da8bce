package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/funvibe/adapt/internal/dispatch"
	"github.com/funvibe/adapt/internal/guard"
	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/marshal"
	"github.com/funvibe/adapt/internal/synth"
	"github.com/funvibe/adapt/internal/typemodel"
)

var errClosed = errors.New("closed")

// newTask builds a class with one abstract name (apply), so it is SAM
// eligible, plus concrete members that exercise fallback and dispatch.
func newTask() *typemodel.Type {
	t := typemodel.NewClass("work", "Task", nil)
	t.AddConstructor(&typemodel.Constructor{})
	t.AddConstructor(&typemodel.Constructor{
		Params: []typemodel.TypeRef{typemodel.String},
		Init: func(ctx context.Context, self typemodel.Object, args []any) error {
			self.Fields().Set("name", args[0])
			return nil
		},
	})
	t.AddMethod(&typemodel.Method{
		Name:     "apply",
		Params:   []typemodel.TypeRef{typemodel.Int32},
		Result:   typemodel.Int32,
		Abstract: true,
	})
	t.AddMethod(&typemodel.Method{
		Name:   "label",
		Result: typemodel.String,
		Impl: func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
			return "base", nil
		},
	})
	t.AddMethod(&typemodel.Method{
		Name:   "twice",
		Params: []typemodel.TypeRef{typemodel.Int32},
		Result: typemodel.Int32,
		Impl: func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
			v, err := self.Invoke(ctx, "apply", args[0])
			if err != nil {
				return nil, err
			}
			return self.Invoke(ctx, "apply", v)
		},
	})
	t.AddMethod(&typemodel.Method{
		Name:   "read",
		Result: typemodel.String,
		Throws: []error{errClosed},
		Impl: func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
			return "", nil
		},
	})
	t.AddMethod(&typemodel.Method{
		Name:   "greet",
		Params: []typemodel.TypeRef{typemodel.Char},
		Result: typemodel.Any,
	})
	return t
}

func load(t *testing.T, svc dispatch.Service, mode typemodel.Mode, types ...*typemodel.Type) *Class {
	t.Helper()
	desc, err := typemodel.NewDescriptor(types...)
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	res, err := synth.New().Synthesize(desc, mode)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	c, err := Load(res, desc, svc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func fn(f func(this any, args []any) (any, error)) dispatch.Func {
	return func(ctx context.Context, this any, args ...any) (any, error) { return f(this, args) }
}

func doubler() *dispatch.Object {
	return dispatch.NewObject(nil).Set("apply", fn(func(this any, args []any) (any, error) {
		return args[0].(int32) * 2, nil
	}))
}

func TestAdapter_MembersDelegate(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	delegate := doubler().Set("label", fn(func(this any, args []any) (any, error) {
		return "delegate", nil
	}))

	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.Form() != image.CtorMembers || inst.Shape() != dispatch.ShapeMembers {
		t.Errorf("form = %s, shape = %s", inst.Form(), inst.Shape())
	}
	if !inst.Type().IsSubtypeOf(c.contracts.Descriptor.Base) {
		t.Error("adapter type is not a subtype of its base")
	}

	tests := []struct {
		name string
		args []any
		want any
	}{
		{"apply", []any{21}, int32(42)},
		{"label", nil, "delegate"},
		{"twice", []any{int32(3)}, int32(12)},
	}
	for _, tt := range tests {
		got, err := inst.Invoke(ctx, tt.name, tt.args...)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %#v, want %#v", tt.name, got, tt.want)
		}
	}

	got, err := inst.Super(ctx, "label")
	if err != nil || got != "base" {
		t.Errorf("Super(label) = %v, %v, want base", got, err)
	}
	if _, err := inst.Super(ctx, "apply", 1); err == nil {
		t.Error("abstract method has a super accessor")
	}
}

func TestAdapter_FallbackToBase(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	inst, err := c.New(ctx, dispatch.NewObject(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := inst.Invoke(ctx, "label")
	if err != nil || got != "base" {
		t.Errorf("label = %v, %v, want base", got, err)
	}

	_, err = inst.Invoke(ctx, "apply", 1)
	if !errors.Is(err, typemodel.ErrNotImplemented) {
		t.Errorf("apply error = %v, want ErrNotImplemented", err)
	}
	var inv *typemodel.InvocationError
	if errors.As(err, &inv) {
		t.Error("unchecked failure was wrapped")
	}

	_, err = inst.Invoke(ctx, "greet", 'x')
	if !errors.Is(err, typemodel.ErrNoBaseImplementation) {
		t.Errorf("greet error = %v, want ErrNoBaseImplementation", err)
	}

	_, err = inst.Invoke(ctx, "missing")
	if err == nil || !typemodel.IsUnchecked(err) {
		t.Errorf("missing error = %v, want unchecked", err)
	}
}

func TestAdapter_Callable(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	if c.SAM() != "apply" || !c.AutoConvertible() {
		t.Fatalf("sam = %q, auto = %t", c.SAM(), c.AutoConvertible())
	}

	var this any = "unset"
	inst, err := c.New(ctx, "job", fn(func(recv any, args []any) (any, error) {
		this = recv
		return args[0].(int32) + 1, nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.Form() != image.CtorCallable {
		t.Errorf("form = %s, want callable", inst.Form())
	}
	if got := inst.Fields().Get("name"); got != "job" {
		t.Errorf("base constructor stored %v", got)
	}
	got, err := inst.Invoke(ctx, "apply", 1)
	if err != nil || got != int32(2) {
		t.Errorf("apply = %v, %v", got, err)
	}
	if this != nil {
		t.Errorf("callable receiver = %v, want nil", this)
	}
	// Non-SAM members still fall back to the base.
	if got, _ := inst.Invoke(ctx, "label"); got != "base" {
		t.Errorf("label = %v, want base", got)
	}
}

func TestAdapter_CallableNeedsSAM(t *testing.T) {
	stopper := typemodel.NewInterface("work", "Stopper")
	stopper.AddMethod(&typemodel.Method{Name: "stop", Result: typemodel.Void})
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask(), stopper)

	_, err := c.New(context.Background(), fn(func(any, []any) (any, error) { return nil, nil }))
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TypeError", err)
	}
	if !typemodel.IsUnchecked(err) {
		t.Error("TypeError must be unchecked")
	}
}

func TestAdapter_BadDelegate(t *testing.T) {
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	tests := []struct {
		name string
		args []any
	}{
		{"number", []any{42}},
		{"nil", []any{nil}},
		{"no delegate", nil},
		{"wrapped number", []any{&dispatch.Mirror{Target: 42}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := c.New(context.Background(), tt.args...)
			var te *TypeError
			if !errors.As(err, &te) || inst != nil {
				t.Errorf("New = %v, %v, want TypeError", inst, err)
			}
		})
	}
	if _, err := c.New(context.Background(), 1, 2, doubler()); err == nil {
		t.Error("New accepted an unknown arity")
	}
}

func TestAdapter_FailurePolicy(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	var raise error
	delegate := dispatch.NewObject(nil).
		Set("read", fn(func(any, []any) (any, error) { return nil, raise })).
		Set("label", fn(func(any, []any) (any, error) { return nil, raise }))
	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cause := errors.New("disk on fire")
	declared := errors.Join(errClosed, errors.New("eof"))
	tests := []struct {
		name    string
		method  string
		raise   error
		wrapped bool
	}{
		{"declared", "read", declared, false},
		{"unchecked", "label", typemodel.NewRuntimeError("bad", nil), false},
		{"canceled", "label", context.Canceled, false},
		{"undeclared", "label", cause, true},
		{"undeclared on throwing method", "read", cause, true},
		{"checked wrapping unchecked", "label", fmt.Errorf("lookup: %w", typemodel.NewRuntimeError("bad", nil)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raise = tt.raise
			_, err := inst.Invoke(ctx, tt.method)
			var inv *typemodel.InvocationError
			if got := errors.As(err, &inv); got != tt.wrapped {
				t.Fatalf("error = %v, wrapped = %t, want %t", err, got, tt.wrapped)
			}
			if !tt.wrapped && err != tt.raise {
				t.Errorf("error = %v, want %v unmodified", err, tt.raise)
			}
			if tt.wrapped && errors.Unwrap(err) != tt.raise {
				t.Errorf("cause = %v, want %v", errors.Unwrap(err), tt.raise)
			}
		})
	}
}

func TestAdapter_AmbientContext(t *testing.T) {
	ctx := context.Background()
	creator := dispatch.NewGlobal("creator")
	caller := dispatch.NewGlobal("caller")
	rt := dispatch.NewRuntime(creator)
	c := load(t, rt, typemodel.InstanceLevel, newTask())

	var seen *dispatch.Global
	var raise error
	delegate := doubler().Set("label", dispatch.Func(func(ctx context.Context, this any, args ...any) (any, error) {
		seen = rt.CurrentGlobal(ctx)
		if raise != nil {
			return nil, raise
		}
		return "ok", nil
	}))
	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	callerCtx, tok := rt.Enter(ctx, caller)
	defer rt.Restore(tok)
	if _, err := inst.Invoke(callerCtx, "label"); err != nil {
		t.Fatalf("label: %v", err)
	}
	if seen != creator {
		t.Errorf("delegate ran in %s, want creator", seen)
	}
	if g := rt.CurrentGlobal(callerCtx); g != caller {
		t.Errorf("after call global = %s, want caller", g)
	}
	if n := rt.Open(); n != 1 {
		t.Errorf("open scopes = %d, want only the caller's", n)
	}

	raise = errors.New("fail")
	if _, err := inst.Invoke(callerCtx, "label"); err == nil {
		t.Fatal("expected an error")
	}
	if n := rt.Open(); n != 1 {
		t.Errorf("open scopes after failing call = %d, want 1", n)
	}
}

func TestAdapter_AmbientRestoredOnPanic(t *testing.T) {
	creator := dispatch.NewGlobal("creator")
	rt := dispatch.NewRuntime(creator)
	c := load(t, rt, typemodel.InstanceLevel, newTask())
	inst, err := c.New(context.Background(), dispatch.NewObject(nil).Set("label", fn(func(any, []any) (any, error) {
		panic("boom")
	})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	func() {
		defer func() { _ = recover() }()
		_, _ = inst.Invoke(context.Background(), "label")
	}()
	if n := rt.Open(); n != 0 {
		t.Errorf("open scopes after panic = %d, want 0", n)
	}
}

// Two calls on different goroutines overlap and finish in entry order; each
// delegate sees its own creator's global and nothing stays installed.
func TestAdapter_AmbientConcurrentCalls(t *testing.T) {
	g0 := dispatch.NewGlobal("g0")
	rt := dispatch.NewRuntime(g0)
	c := load(t, rt, typemodel.InstanceLevel, newTask())

	type call struct {
		global  *dispatch.Global
		inst    *Instance
		entered chan struct{}
		release chan struct{}
		done    chan error
		seen    *dispatch.Global
	}
	newCall := func(name string) *call {
		cl := &call{
			global:  dispatch.NewGlobal(name),
			entered: make(chan struct{}),
			release: make(chan struct{}),
			done:    make(chan error, 1),
		}
		ctx, tok := rt.Enter(context.Background(), cl.global)
		defer rt.Restore(tok)
		delegate := dispatch.NewObject(nil).Set("label", dispatch.Func(func(ctx context.Context, this any, args ...any) (any, error) {
			cl.seen = rt.CurrentGlobal(ctx)
			close(cl.entered)
			<-cl.release
			return "ok", nil
		}))
		inst, err := c.New(ctx, delegate)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		cl.inst = inst
		return cl
	}
	a, b := newCall("a"), newCall("b")

	for _, cl := range []*call{a, b} {
		go func(cl *call) {
			_, err := cl.inst.Invoke(context.Background(), "label")
			cl.done <- err
		}(cl)
		<-cl.entered
	}
	close(a.release)
	if err := <-a.done; err != nil {
		t.Errorf("call a: %v", err)
	}
	close(b.release)
	if err := <-b.done; err != nil {
		t.Errorf("call b: %v", err)
	}

	if a.seen != a.global || b.seen != b.global {
		t.Errorf("delegates ran in %s and %s, want a and b", a.seen, b.seen)
	}
	if g := rt.CurrentGlobal(context.Background()); g != g0 {
		t.Errorf("after both calls returned, ambient = %s, want g0", g)
	}
	if n := rt.Open(); n != 0 {
		t.Errorf("open scopes = %d, want 0", n)
	}
}

func TestAdapter_Bridge(t *testing.T) {
	ctx := context.Background()
	home := dispatch.NewGlobal("home")
	rt := dispatch.NewRuntime(dispatch.NewGlobal("here"))
	c := load(t, rt, typemodel.InstanceLevel, newTask())

	var seen *dispatch.Global
	target := dispatch.NewObject(nil).Set("apply", dispatch.Func(func(ctx context.Context, this any, args ...any) (any, error) {
		seen = rt.CurrentGlobal(ctx)
		return args[0], nil
	}))
	inst, err := c.New(ctx, &dispatch.Mirror{Target: target, Home: home})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if inst.Form() != image.CtorBridge {
		t.Errorf("form = %s, want bridge", inst.Form())
	}
	if got, err := inst.Invoke(ctx, "apply", 5); err != nil || got != int32(5) {
		t.Errorf("apply = %v, %v", got, err)
	}
	if seen != home {
		t.Errorf("wrapped delegate ran in %s, want home", seen)
	}
}

func TestAdapter_ClassLevel(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.ClassLevel, newTask())

	if _, err := c.New(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("New before Initialize = %v, want ErrNotInitialized", err)
	}
	if err := c.Initialize(ctx, doubler()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// The first binding wins.
	if err := c.Initialize(ctx, dispatch.NewObject(nil)); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}

	a, err := c.New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := c.New(ctx, "named")
	if err != nil {
		t.Fatalf("New(named): %v", err)
	}
	for _, inst := range []*Instance{a, b} {
		if inst.Form() != image.CtorDelegating {
			t.Errorf("form = %s, want delegating", inst.Form())
		}
		if got, err := inst.Invoke(ctx, "apply", 4); err != nil || got != int32(8) {
			t.Errorf("apply = %v, %v", got, err)
		}
	}
	if b.Fields().Get("name") != "named" {
		t.Error("base constructor arguments were not forwarded")
	}

	inst := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	if err := inst.Initialize(ctx, doubler()); !errors.Is(err, ErrInstanceLevel) {
		t.Errorf("Initialize on instance-level = %v, want ErrInstanceLevel", err)
	}
}

func TestAdapter_ClassLevelBadDelegate(t *testing.T) {
	c := load(t, dispatch.NewRuntime(nil), typemodel.ClassLevel, newTask())
	var te *TypeError
	if err := c.Initialize(context.Background(), 7); !errors.As(err, &te) {
		t.Fatalf("Initialize = %v, want TypeError", err)
	}
	if _, err := c.New(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("New = %v, want ErrNotInitialized", err)
	}
}

func TestAdapter_Finalizer(t *testing.T) {
	const fs guard.Permission = "fs"
	ctx := context.Background()

	var calls int
	var denied error
	res := typemodel.NewClass("io", "Resource", nil)
	res.AddConstructor(&typemodel.Constructor{})
	res.AddMethod(&typemodel.Method{
		Name:   typemodel.TeardownName,
		Result: typemodel.Void,
		Access: typemodel.Protected,
		Impl: func(ctx context.Context, self typemodel.Object, args []any) (any, error) {
			calls++
			denied = guard.Check(ctx, fs)
			return nil, nil
		},
	})
	res.AddMethod(&typemodel.Method{Name: "close", Result: typemodel.Void, Abstract: true})

	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, res)
	// A delegate member named like the teardown is never consulted.
	delegate := dispatch.NewObject(nil).Set(typemodel.TeardownName, fn(func(any, []any) (any, error) {
		t.Error("teardown dispatched to the delegate")
		return nil, nil
	}))
	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := inst.Finalize(ctx); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := inst.Invoke(ctx, typemodel.TeardownName); err != nil {
		t.Fatalf("Invoke(Finalize): %v", err)
	}
	if calls != 2 {
		t.Errorf("base teardown ran %d times, want 2", calls)
	}
	var perr *guard.PermissionError
	if !errors.As(denied, &perr) {
		t.Errorf("teardown ran with %v, want reduced privileges", denied)
	}
	if err := guard.Check(ctx, fs); err != nil {
		t.Errorf("caller lost privileges: %v", err)
	}
}

func TestAdapter_NoFinalizer(t *testing.T) {
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	inst, err := c.New(context.Background(), doubler())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := inst.Finalize(context.Background()); err != nil {
		t.Errorf("Finalize: %v", err)
	}
}

func TestAdapter_FinalMemberNotDispatched(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	delegate := doubler().Set(typemodel.TypeNameName, fn(func(any, []any) (any, error) {
		return "spoofed", nil
	}))
	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := inst.Invoke(ctx, typemodel.TypeNameName)
	if err != nil {
		t.Fatalf("TypeName: %v", err)
	}
	if got == "spoofed" || !strings.Contains(got.(string), "Task$$Adapter$") {
		t.Errorf("TypeName = %v, want the adapter type name", got)
	}
}

func TestAdapter_Describe(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	describe := fn(func(any, []any) (any, error) { return "custom", nil })

	own, err := c.New(ctx, doubler().Set(typemodel.DescribeName, describe))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := own.String(); got != "custom" {
		t.Errorf("String() = %q, want custom", got)
	}

	proto := dispatch.NewObject(nil).Set(typemodel.DescribeName, describe)
	inherited, err := c.New(ctx, dispatch.NewObject(proto))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := inherited.String(); got == "custom" || !strings.Contains(got, "Task$$Adapter$") {
		t.Errorf("String() = %q, want the base description", got)
	}
}

func TestAdapter_Marshalling(t *testing.T) {
	ctx := context.Background()
	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, newTask())
	var arg any
	delegate := doubler().
		Set("greet", fn(func(this any, args []any) (any, error) {
			arg = args[0]
			return dispatch.Rope{"h", "i"}, nil
		})).
		Set("label", fn(func(any, []any) (any, error) { return 12.0, nil }))
	inst, err := c.New(ctx, delegate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := inst.Invoke(ctx, "greet", 'x')
	if err != nil {
		t.Fatalf("greet: %v", err)
	}
	if arg != marshal.Char('x') {
		t.Errorf("char argument arrived as %#v", arg)
	}
	if got != "hi" {
		t.Errorf("greet = %#v, want externalized string", got)
	}
	if got, _ := inst.Invoke(ctx, "label"); got != "12" {
		t.Errorf("label = %#v, want \"12\"", got)
	}
}

func TestAdapter_Spread(t *testing.T) {
	ctx := context.Background()
	wide := typemodel.NewInterface("work", "Wide")
	params := make([]typemodel.TypeRef, 254)
	for i := range params {
		params[i] = typemodel.Int32
	}
	wide.AddMethod(&typemodel.Method{Name: "sum", Params: params, Result: typemodel.Int64})

	rt := dispatch.NewRuntime(nil)
	c := load(t, rt, typemodel.InstanceLevel, wide)
	inst, err := c.New(ctx, fn(func(this any, args []any) (any, error) {
		var total int64
		for _, a := range args {
			total += int64(a.(int32))
		}
		return total, nil
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	args := make([]any, len(params))
	for i := range args {
		args[i] = 1
	}
	got, err := inst.Invoke(ctx, "sum", args...)
	if err != nil || got != int64(254) {
		t.Errorf("sum = %v, %v", got, err)
	}
	if n := rt.SpreadCalls.Load(); n != 1 {
		t.Errorf("spread calls = %d, want 1", n)
	}
}

func TestLoad_Mismatch(t *testing.T) {
	task := newTask()
	runner := typemodel.NewInterface("work", "Runner")
	desc, _ := typemodel.NewDescriptor(task)
	other, _ := typemodel.NewDescriptor(task, runner)

	res, err := synth.New().Synthesize(desc, typemodel.InstanceLevel)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if _, err := Load(res, other, dispatch.NewRuntime(nil)); !errors.Is(err, ErrImageMismatch) {
		t.Errorf("Load = %v, want ErrImageMismatch", err)
	}
	if _, err := Load(&synth.Result{Image: []byte("junk")}, desc, dispatch.NewRuntime(nil)); err == nil {
		t.Error("Load accepted a corrupt image")
	}
}

func TestClass_BaseConstructorFailure(t *testing.T) {
	boom := errors.New("refused")
	base := typemodel.NewClass("work", "Picky", nil)
	base.AddConstructor(&typemodel.Constructor{
		Init: func(ctx context.Context, self typemodel.Object, args []any) error { return boom },
	})
	base.AddMethod(&typemodel.Method{Name: "run", Result: typemodel.Void, Abstract: true})

	c := load(t, dispatch.NewRuntime(nil), typemodel.InstanceLevel, base)
	inst, err := c.New(context.Background(), dispatch.NewObject(nil))
	if !errors.Is(err, boom) || inst != nil {
		t.Errorf("New = %v, %v, want constructor failure", inst, err)
	}
}
