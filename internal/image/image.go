// Package image defines the binary form of a synthesized adapter type: a
// symbol table of encoded member names with the kind of body generated for
// each, plus the constructor forms. Images are CBOR encoded in canonical
// mode, so equal requests produce equal bytes.
package image

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funvibe/adapt/internal/namecodec"
	"github.com/fxamacker/cbor/v2"
)

// Version is bumped whenever the layout or body semantics change.
const Version = 1

// Body identifies the generated code behind a method entry.
type Body uint8

const (
	// BodyDispatch consults the delegate by name, then falls back.
	BodyDispatch Body = 1
	// BodySAM checks for a single-callable delegate before BodyDispatch.
	BodySAM Body = 2
	// BodyDescribe dispatches only to a member the delegate owns itself.
	BodyDescribe Body = 3
	// BodySuper invokes the inherited implementation.
	BodySuper Body = 4
	// BodyFinalizer hands the helper to the privilege-reduced path.
	BodyFinalizer Body = 5
	// BodyFinalizerHelper is the static helper invoking the inherited teardown.
	BodyFinalizerHelper Body = 6
)

func (b Body) String() string {
	switch b {
	case BodyDispatch:
		return "dispatch"
	case BodySAM:
		return "sam"
	case BodyDescribe:
		return "describe"
	case BodySuper:
		return "super"
	case BodyFinalizer:
		return "finalizer"
	case BodyFinalizerHelper:
		return "finalizer-helper"
	}
	return fmt.Sprintf("body(%d)", uint8(b))
}

// CtorForm identifies a generated constructor.
type CtorForm uint8

const (
	// CtorDelegating forwards the base arguments as is (class-level mode).
	CtorDelegating CtorForm = 1
	// CtorMembers appends a named-member provider parameter.
	CtorMembers CtorForm = 2
	// CtorCallable appends a single-callable parameter (SAM types only).
	CtorCallable CtorForm = 3
	// CtorBridge appends an opaque value resolved at run time.
	CtorBridge CtorForm = 4
)

func (f CtorForm) String() string {
	switch f {
	case CtorDelegating:
		return "delegating"
	case CtorMembers:
		return "members"
	case CtorCallable:
		return "callable"
	case CtorBridge:
		return "bridge"
	}
	return fmt.Sprintf("ctor(%d)", uint8(f))
}

// Ctor is a constructor entry. Base indexes the accessible base constructors
// in collection order.
type Ctor struct {
	Form   CtorForm `cbor:"1,keyasint"`
	Base   int      `cbor:"2,keyasint"`
	Params []string `cbor:"3,keyasint,omitempty"`
}

// Method is a method entry. Symbol is the encoded member name, prefixed with
// the super-accessor prefix for BodySuper entries.
type Method struct {
	Symbol   string `cbor:"1,keyasint"`
	Desc     string `cbor:"2,keyasint"`
	Body     Body   `cbor:"3,keyasint"`
	Abstract bool   `cbor:"4,keyasint,omitempty"`
	Static   bool   `cbor:"5,keyasint,omitempty"`
}

// Image is a synthesized adapter type.
type Image struct {
	Version         int      `cbor:"1,keyasint"`
	Name            string   `cbor:"2,keyasint"`
	Super           string   `cbor:"3,keyasint"`
	Interfaces      []string `cbor:"4,keyasint,omitempty"`
	Mode            uint8    `cbor:"5,keyasint"`
	SAM             string   `cbor:"6,keyasint,omitempty"`
	AutoConvertible bool     `cbor:"7,keyasint,omitempty"`
	Ctors           []Ctor   `cbor:"8,keyasint"`
	Methods         []Method `cbor:"9,keyasint"`
	// Initializer is set when the type resolves a shared delegate once.
	Initializer bool `cbor:"10,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal validates and serializes an image.
func Marshal(img *Image) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(img)
}

// Unmarshal deserializes and validates an image.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return &img, nil
}

// ErrMalformed is wrapped by every validation failure.
var ErrMalformed = errors.New("image: malformed")

// Validate checks structural invariants: version, legal symbols, no
// duplicate entries, constructor forms present.
func (img *Image) Validate() error {
	if img.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrMalformed, img.Version, Version)
	}
	if img.Name == "" || img.Super == "" {
		return fmt.Errorf("%w: missing name or super", ErrMalformed)
	}
	if len(img.Ctors) == 0 {
		return fmt.Errorf("%w: %s has no constructors", ErrMalformed, img.Name)
	}
	seen := make(map[string]bool, len(img.Methods))
	for _, m := range img.Methods {
		sym := m.Symbol
		switch m.Body {
		case BodySuper:
			if !strings.HasPrefix(sym, SuperPrefix) {
				return fmt.Errorf("%w: super accessor %q lacks prefix", ErrMalformed, sym)
			}
			sym = strings.TrimPrefix(sym, SuperPrefix)
		case BodyFinalizerHelper:
			if sym != FinalizerHelperSymbol || !m.Static {
				return fmt.Errorf("%w: bad finalizer helper %q", ErrMalformed, sym)
			}
			sym = ""
		case BodyDispatch, BodySAM, BodyDescribe, BodyFinalizer:
		default:
			return fmt.Errorf("%w: unknown body %s for %q", ErrMalformed, m.Body, sym)
		}
		if !namecodec.Legal(sym) {
			return fmt.Errorf("%w: illegal symbol %q", ErrMalformed, m.Symbol)
		}
		key := m.Symbol + m.Desc
		if seen[key] {
			return fmt.Errorf("%w: duplicate entry %s", ErrMalformed, key)
		}
		seen[key] = true
	}
	return nil
}

// SuperPrefix starts super-accessor symbols.
const SuperPrefix = "super$"

// SuperSymbol returns the super-accessor symbol for an encoded name.
func SuperSymbol(encoded string) string { return SuperPrefix + encoded }

// FinalizerHelperSymbol names the static teardown helper. The '$' cannot
// occur in an encoded name, so the symbol never collides with a contract.
const FinalizerHelperSymbol = "finalize$helper"
