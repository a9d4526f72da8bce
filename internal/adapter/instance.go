package adapter

import (
	"context"
	"fmt"

	"github.com/funvibe/adapt/internal/dispatch"
	"github.com/funvibe/adapt/internal/guard"
	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/marshal"
	"github.com/funvibe/adapt/internal/typemodel"
)

// Instance is an object of a loaded adapter class.
type Instance struct {
	class  *Class
	ctor   image.Ctor
	base   *typemodel.Constructor
	fields *typemodel.Fields

	delegate any
	ambient  any
	shape    dispatch.Shape
}

var _ typemodel.Object = (*Instance)(nil)

func (inst *Instance) construct(ctx context.Context, args []any) (*Instance, error) {
	if inst.base.Init == nil {
		return inst, nil
	}
	converted, err := convertArgs(inst.base.Params, args)
	if err != nil {
		return nil, err
	}
	if err := inst.base.Init(ctx, inst, converted); err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Instance) Type() *typemodel.Type { return inst.class.typ }

func (inst *Instance) Fields() *typemodel.Fields { return inst.fields }

// Class returns the adapter class of the instance.
func (inst *Instance) Class() *Class { return inst.class }

// Form is the constructor form the instance was created through.
func (inst *Instance) Form() image.CtorForm { return inst.ctor.Form }

// Shape is the shape of the delegate the instance holds.
func (inst *Instance) Shape() dispatch.Shape { return inst.shape }

// Invoke calls a method by name with virtual dispatch: generated bodies
// first, then inherited members the adapter does not override.
func (inst *Instance) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	for _, e := range inst.class.byName[name] {
		if len(e.method.Params) == len(args) {
			return inst.call(ctx, e, args)
		}
	}
	if name == typemodel.TeardownName && len(args) == 0 && inst.class.final != nil {
		return nil, inst.Finalize(ctx)
	}
	if m := inst.class.contracts.Descriptor.Base.ResolveName(name, len(args)); m != nil {
		return callBase(ctx, inst, m, args)
	}
	return nil, typemodel.NewRuntimeError(fmt.Sprintf("%s has no method %s/%d", inst.class.Name, name, len(args)), nil)
}

// Super calls the inherited implementation of a concrete method, bypassing
// the delegate.
func (inst *Instance) Super(ctx context.Context, name string, args ...any) (any, error) {
	for _, e := range inst.class.supers[name] {
		if len(e.method.Params) == len(args) {
			return callBase(ctx, inst, e.method, args)
		}
	}
	return nil, typemodel.NewRuntimeError(fmt.Sprintf("%s has no super accessor for %s/%d", inst.class.Name, name, len(args)), nil)
}

// Finalize runs the teardown override. The inherited teardown is invoked
// through the static helper with no permissions beyond those the caller
// and the empty domain share.
func (inst *Instance) Finalize(ctx context.Context) error {
	c := inst.class
	if c.final == nil {
		return nil
	}
	return guard.DoPrivileged(ctx, guard.NoPermissions, func(ctx context.Context) error {
		return c.runHelper(ctx, inst)
	})
}

func (c *Class) runHelper(ctx context.Context, inst *Instance) error {
	_, err := callBase(ctx, inst, c.helper.method, nil)
	return err
}

func (inst *Instance) String() string {
	v, err := inst.Invoke(context.Background(), typemodel.DescribeName)
	if err != nil {
		return fmt.Sprintf("%s@%x", inst.class.Name, inst.fields.Identity())
	}
	s, _ := v.(string)
	return s
}

// call runs a generated body under the captured ambient context. The scope
// is closed on every exit path, panics included; the caller's ctx is left
// untouched.
func (inst *Instance) call(ctx context.Context, e *entry, args []any) (any, error) {
	svc := inst.class.svc
	ctx, token := svc.Enter(ctx, inst.ambient)
	defer svc.Restore(token)

	res, err := inst.dispatch(ctx, e, args)
	if err != nil {
		return nil, typemodel.Propagate(e.method, err)
	}
	return res, nil
}

func (inst *Instance) dispatch(ctx context.Context, e *entry, args []any) (any, error) {
	svc := inst.class.svc
	m := e.method
	if e.body == image.BodySAM && inst.shape == dispatch.ShapeCallable {
		return inst.invoke(ctx, m, inst.delegate, nil, args)
	}
	var fn any
	var ok bool
	if e.body == image.BodyDescribe {
		fn, ok = svc.OwnMember(inst.delegate, e.symbol)
	} else {
		fn, ok = svc.Member(inst.delegate, e.symbol)
	}
	if ok {
		return inst.invoke(ctx, m, fn, inst.delegate, args)
	}
	if m.Abstract {
		return nil, typemodel.NewRuntimeError(m.Key(), typemodel.ErrNotImplemented)
	}
	return callBase(ctx, inst, m, args)
}

// invoke calls a delegate member with marshalled arguments and converts the
// result to the declared type.
func (inst *Instance) invoke(ctx context.Context, m *typemodel.Method, fn, recv any, args []any) (any, error) {
	svc := inst.class.svc
	dyn, err := marshal.Args(m.Params, args)
	if err != nil {
		return nil, err
	}
	var res any
	if marshal.NeedsSpread(m.Params) {
		res, err = svc.InvokeSpread(ctx, fn, recv, dyn)
	} else {
		res, err = svc.Invoke(ctx, fn, recv, dyn)
	}
	if err != nil {
		return nil, err
	}
	if m.Result.Kind == typemodel.KindObject {
		res = svc.Externalize(res)
	}
	return marshal.Convert(res, m.Result)
}

func callBase(ctx context.Context, self typemodel.Object, m *typemodel.Method, args []any) (any, error) {
	if m.Impl == nil {
		return nil, typemodel.NewRuntimeError(m.String(), typemodel.ErrNoBaseImplementation)
	}
	return m.Impl(ctx, self, args)
}
