package typemodel

import (
	"fmt"
	"strings"
)

// Kind categorizes a static value type for marshalling and signatures.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindObject
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindChar:    "char",
	KindString:  "string",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsNarrowInt reports whether values of this kind are widened to int32
// before they cross into the dynamic model.
func (k Kind) IsNarrowInt() bool {
	switch k {
	case KindInt8, KindInt16, KindUint8, KindUint16:
		return true
	}
	return false
}

// IsNumeric reports whether k is an integer or floating point kind.
func (k Kind) IsNumeric() bool {
	return k >= KindInt8 && k <= KindFloat64
}

// TypeRef references a parameter or result type. Name is only meaningful
// for KindObject, where an empty name means "any object".
type TypeRef struct {
	Kind Kind
	Name string
}

// Ref returns a TypeRef for a non-object kind.
func Ref(k Kind) TypeRef { return TypeRef{Kind: k} }

// ObjectRef returns an object TypeRef naming a specific type.
func ObjectRef(name string) TypeRef { return TypeRef{Kind: KindObject, Name: name} }

// Common refs.
var (
	Void    = Ref(KindVoid)
	Bool    = Ref(KindBool)
	Int32   = Ref(KindInt32)
	Int64   = Ref(KindInt64)
	Float64 = Ref(KindFloat64)
	String  = Ref(KindString)
	Char    = Ref(KindChar)
	Any     = Ref(KindObject)
)

func (r TypeRef) String() string {
	if r.Kind == KindObject && r.Name != "" {
		return "object<" + r.Name + ">"
	}
	return r.Kind.String()
}

// ParseRef parses the textual form produced by TypeRef.String.
func ParseRef(s string) (TypeRef, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "object<") && strings.HasSuffix(s, ">") {
		name := s[len("object<") : len(s)-1]
		if name == "" {
			return TypeRef{}, fmt.Errorf("empty object type name in %q", s)
		}
		return ObjectRef(name), nil
	}
	for k, name := range kindNames {
		if name == s {
			return Ref(Kind(k)), nil
		}
	}
	return TypeRef{}, fmt.Errorf("unknown type %q", s)
}

// SignatureDescriptor renders a parameter list and result as "(p1,p2)r".
func SignatureDescriptor(params []TypeRef, result TypeRef) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(result.String())
	return b.String()
}

// ParseSignatureDescriptor is the inverse of SignatureDescriptor.
func ParseSignatureDescriptor(desc string) ([]TypeRef, TypeRef, error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, TypeRef{}, fmt.Errorf("malformed descriptor %q", desc)
	}
	end := strings.LastIndexByte(desc, ')')
	if end < 0 {
		return nil, TypeRef{}, fmt.Errorf("malformed descriptor %q", desc)
	}
	var params []TypeRef
	if inner := desc[1:end]; inner != "" {
		for _, part := range splitParams(inner) {
			ref, err := ParseRef(part)
			if err != nil {
				return nil, TypeRef{}, fmt.Errorf("descriptor %q: %w", desc, err)
			}
			params = append(params, ref)
		}
	}
	result, err := ParseRef(desc[end+1:])
	if err != nil {
		return nil, TypeRef{}, fmt.Errorf("descriptor %q: %w", desc, err)
	}
	return params, result, nil
}

// splitParams splits on commas outside of object<...> brackets.
func splitParams(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
