package guard

import (
	"context"
	"errors"
	"testing"
)

const (
	read  Permission = "read"
	write Permission = "write"
)

func TestCurrent_Default(t *testing.T) {
	if d := Current(context.Background()); !d.Unrestricted() {
		t.Errorf("Current = %s, want all", d)
	}
	if err := Check(context.Background(), write); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestDoPrivileged_Reduces(t *testing.T) {
	ctx := context.Background()
	err := DoPrivileged(ctx, NoPermissions, func(ctx context.Context) error {
		if !Current(ctx).Empty() {
			t.Errorf("Current = %s, want empty", Current(ctx))
		}
		return Check(ctx, read)
	})
	var perr *PermissionError
	if !errors.As(err, &perr) || perr.Permission != read {
		t.Fatalf("error = %v, want permission error for read", err)
	}
	if !perr.Unchecked() {
		t.Error("permission errors must be unchecked")
	}
	if err := Check(ctx, read); err != nil {
		t.Errorf("caller context changed: %v", err)
	}
}

func TestDoPrivileged_NeverGrows(t *testing.T) {
	ctx := context.Background()
	_ = DoPrivileged(ctx, NewDomain("reader", read), func(ctx context.Context) error {
		return DoPrivileged(ctx, AllPermissions, func(ctx context.Context) error {
			if err := Check(ctx, read); err != nil {
				t.Errorf("read: %v", err)
			}
			if err := Check(ctx, write); err == nil {
				t.Error("nested call regained write")
			}
			return nil
		})
	})
}

func TestDomain(t *testing.T) {
	rw := NewDomain("rw", write, read)
	if got := rw.String(); got != "rw{read,write}" {
		t.Errorf("String() = %q", got)
	}
	both := rw.Intersect(NewDomain("r", read))
	if !both.Allows(read) || both.Allows(write) {
		t.Errorf("Intersect = %s", both)
	}
	var none *Domain
	if !none.Allows(write) || none.String() != "all" {
		t.Error("nil domain must grant everything")
	}
	if NoPermissions.Allows(read) || !NoPermissions.Empty() {
		t.Error("NoPermissions grants something")
	}
}
