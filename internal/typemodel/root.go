package typemodel

import (
	"context"
	"fmt"
)

// Names of the universal members every type inherits from Root.
const (
	DescribeName = "String"
	TeardownName = "Finalize"
	HashName     = "Hash"
	TypeNameName = "TypeName"
)

// Root is the universal root class. Its Finalize is trivial, so it never
// sets the finalizer flag of an adapter.
var Root = newRoot()

func newRoot() *Type {
	root := &Type{Name: "Object"}
	root.AddMethod(&Method{
		Name:   DescribeName,
		Result: String,
		Impl: func(ctx context.Context, self Object, args []any) (any, error) {
			return fmt.Sprintf("%s@%x", self.Type().QualifiedName(), self.Fields().Identity()), nil
		},
	})
	root.AddMethod(&Method{
		Name:   HashName,
		Result: Int64,
		Impl: func(ctx context.Context, self Object, args []any) (any, error) {
			return self.Fields().Identity(), nil
		},
	})
	root.AddMethod(&Method{
		Name:   TypeNameName,
		Result: String,
		Final:  true,
		Impl: func(ctx context.Context, self Object, args []any) (any, error) {
			return self.Type().QualifiedName(), nil
		},
	})
	root.AddMethod(&Method{
		Name:   TeardownName,
		Result: Void,
		Access: Protected,
		Impl: func(ctx context.Context, self Object, args []any) (any, error) {
			return nil, nil
		},
	})
	root.AddConstructor(&Constructor{})
	return root
}
