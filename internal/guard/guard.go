// Package guard carries privilege domains on a context.Context so code can
// be run with fewer permissions than its caller.
package guard

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Permission names a privileged capability.
type Permission string

// Domain is a set of permissions. A nil *Domain grants everything.
type Domain struct {
	Name  string
	all   bool
	perms map[Permission]bool
}

var (
	// AllPermissions is the domain of trusted host code.
	AllPermissions = &Domain{Name: "all", all: true}
	// NoPermissions grants nothing.
	NoPermissions = &Domain{Name: "none", perms: map[Permission]bool{}}
)

// NewDomain creates a domain granting exactly perms.
func NewDomain(name string, perms ...Permission) *Domain {
	d := &Domain{Name: name, perms: make(map[Permission]bool, len(perms))}
	for _, p := range perms {
		d.perms[p] = true
	}
	return d
}

// Allows reports whether the domain grants p.
func (d *Domain) Allows(p Permission) bool {
	if d == nil || d.all {
		return true
	}
	return d.perms[p]
}

// Unrestricted reports whether the domain grants every permission.
func (d *Domain) Unrestricted() bool { return d == nil || d.all }

// Empty reports whether the domain grants nothing.
func (d *Domain) Empty() bool { return d != nil && !d.all && len(d.perms) == 0 }

// Intersect returns the permissions granted by both d and other.
func (d *Domain) Intersect(other *Domain) *Domain {
	switch {
	case d.Unrestricted():
		return other
	case other.Unrestricted():
		return d
	}
	out := NewDomain(d.Name + "&" + other.Name)
	for p := range d.perms {
		if other.perms[p] {
			out.perms[p] = true
		}
	}
	return out
}

func (d *Domain) String() string {
	if d.Unrestricted() {
		return "all"
	}
	perms := make([]string, 0, len(d.perms))
	for p := range d.perms {
		perms = append(perms, string(p))
	}
	sort.Strings(perms)
	return d.Name + "{" + strings.Join(perms, ",") + "}"
}

type domainKey struct{}

// Current returns the domain active on ctx; AllPermissions when none is set.
func Current(ctx context.Context) *Domain {
	if d, ok := ctx.Value(domainKey{}).(*Domain); ok {
		return d
	}
	return AllPermissions
}

// DoPrivileged runs fn with the intersection of the current domain and d,
// so fn can never hold more than its caller.
func DoPrivileged(ctx context.Context, d *Domain, fn func(ctx context.Context) error) error {
	reduced := Current(ctx).Intersect(d)
	return fn(context.WithValue(ctx, domainKey{}, reduced))
}

// PermissionError reports a denied permission check.
type PermissionError struct {
	Permission Permission
	Domain     *Domain
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission %q denied in domain %s", e.Permission, e.Domain)
}

// Unchecked marks permission failures as unchecked.
func (e *PermissionError) Unchecked() bool { return true }

// Check fails with a *PermissionError unless the current domain grants p.
func Check(ctx context.Context, p Permission) error {
	if d := Current(ctx); !d.Allows(p) {
		return &PermissionError{Permission: p, Domain: d}
	}
	return nil
}
