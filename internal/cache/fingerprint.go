// Package cache keeps synthesized adapter types so each (descriptor, mode)
// pair is synthesized at most once, in memory and optionally in a SQLite
// image store shared between processes.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"

	"github.com/funvibe/adapt/internal/image"
	"github.com/funvibe/adapt/internal/typemodel"
)

// Fingerprint returns a deterministic key for an adapter request. It covers
// the structure of every type reachable from the descriptor, so a changed
// method set yields a new key, and the image version, so stale images are
// never reused.
func Fingerprint(desc typemodel.Descriptor, mode typemodel.Mode) string {
	if desc.Base == nil {
		desc.Base = typemodel.Root
	}
	h := sha256.New()
	seen := make(map[*typemodel.Type]bool)
	for _, t := range desc.Types() {
		writeType(h, t, seen)
		h.Write([]byte("\x00"))
	}
	h.Write([]byte(mode.String()))
	h.Write([]byte("\x00"))
	h.Write([]byte(strconv.Itoa(image.Version)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func writeType(h hash.Hash, t *typemodel.Type, seen map[*typemodel.Type]bool) {
	if t == nil {
		return
	}
	fmt.Fprintf(h, "type %s i=%t f=%t a=%s\n", t.QualifiedName(), t.Interface, t.Final, t.Access)
	if seen[t] {
		return
	}
	seen[t] = true
	for _, m := range t.Methods {
		fmt.Fprintf(h, " m %s a=%s s=%t abs=%t f=%t cs=%t any=%t\n", m.Key(), m.Access, m.Static, m.Abstract, m.Final, m.CallerSensitive, m.AnyFailure)
		for _, e := range m.Throws {
			fmt.Fprintf(h, "  throws %T %q\n", e, e.Error())
		}
	}
	for _, c := range t.Constructors {
		fmt.Fprintf(h, " c %s a=%s\n", c.Descriptor(), c.Access)
	}
	if t.Super != nil {
		h.Write([]byte(" super\n"))
		writeType(h, t.Super, seen)
	}
	for _, itf := range t.Interfaces {
		h.Write([]byte(" iface\n"))
		writeType(h, itf, seen)
	}
}
