// Package marshal converts values between the static signatures of adapter
// methods and the dynamic model of the dispatch service.
package marshal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/funvibe/adapt/internal/typemodel"
)

// Char is a boxed character. Go runes are int32, so without the box the
// dynamic side could not tell a code unit from a number or from a
// one-character string.
type Char rune

func (c Char) String() string { return string(rune(c)) }

// MaxSlots is the fixed arity ceiling of one dynamic call, counting the
// callee and the receiver. 64-bit values take two slots.
const MaxSlots = 255

// Slots returns the weighted slot count of a call with the given parameter
// types, including the callee and receiver slots.
func Slots(params []typemodel.TypeRef) int {
	n := 2
	for _, p := range params {
		switch p.Kind {
		case typemodel.KindInt64, typemodel.KindFloat64, typemodel.KindFloat32:
			n += 2
		default:
			n++
		}
	}
	return n
}

// NeedsSpread reports whether the arguments must be packed into a single
// array and invoked in spread form.
func NeedsSpread(params []typemodel.TypeRef) bool {
	return Slots(params) > MaxSlots
}

// Args converts static arguments to their dynamic form: narrow integers widen
// to int32, float32 becomes float64, characters are boxed.
func Args(params []typemodel.TypeRef, args []any) ([]any, error) {
	if len(params) != len(args) {
		return nil, typemodel.NewRuntimeError(
			fmt.Sprintf("expected %d arguments, got %d", len(params), len(args)), nil)
	}
	out := make([]any, len(args))
	for i, p := range params {
		v, err := Convert(args[i], p)
		if err != nil {
			return nil, err
		}
		out[i] = ToDynamic(v, p)
	}
	return out, nil
}

// ToDynamic widens a value of the given static type for the dynamic model.
func ToDynamic(v any, ref typemodel.TypeRef) any {
	switch ref.Kind {
	case typemodel.KindInt8, typemodel.KindInt16, typemodel.KindUint8, typemodel.KindUint16:
		n, _ := toInt64(v)
		return int32(n)
	case typemodel.KindFloat32:
		f, _ := toFloat(v)
		return f
	case typemodel.KindChar:
		switch c := v.(type) {
		case Char:
			return c
		case rune:
			return Char(c)
		}
	}
	return v
}

// Convert coerces a value to the Go representation of a static type. The
// result is one of: nil (void), bool, int8, int16, int32, int64, uint8,
// uint16, float32, float64, rune (char), string, or the value itself
// (object). Failures are unchecked.
func Convert(v any, ref typemodel.TypeRef) (any, error) {
	switch ref.Kind {
	case typemodel.KindVoid:
		return nil, nil
	case typemodel.KindBool:
		return truthy(v), nil
	case typemodel.KindInt8:
		return int8(toInt32(v)), nil
	case typemodel.KindInt16:
		return int16(toInt32(v)), nil
	case typemodel.KindInt32:
		return toInt32(v), nil
	case typemodel.KindInt64:
		f := toNumber(v)
		if n, ok := toInt64(v); ok {
			return n, nil
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return int64(0), nil
		}
		return int64(f), nil
	case typemodel.KindUint8:
		return uint8(toInt32(v)), nil
	case typemodel.KindUint16:
		return uint16(toInt32(v)), nil
	case typemodel.KindFloat32:
		return float32(toNumber(v)), nil
	case typemodel.KindFloat64:
		return toNumber(v), nil
	case typemodel.KindChar:
		return toChar(v)
	case typemodel.KindString:
		return toString(v), nil
	case typemodel.KindObject:
		return v, nil
	}
	return nil, typemodel.NewRuntimeError(fmt.Sprintf("cannot convert to %s", ref), nil)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case Char:
		return true
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// toInt32 wraps modulo 2^32 the way dynamic languages truncate numbers.
func toInt32(v any) int32 {
	if n, ok := toInt64(v); ok {
		return int32(n)
	}
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(math.Mod(math.Trunc(f), 1<<32)))
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case Char:
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case nil:
		return 0, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if n, ok := toInt64(v); ok {
		return float64(n), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toNumber(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return toNumber(s.String())
	}
	return math.NaN()
}

func toChar(v any) (any, error) {
	switch x := v.(type) {
	case Char:
		return rune(x), nil
	case string:
		if utf8.RuneCountInString(x) == 1 {
			r, _ := utf8.DecodeRuneInString(x)
			return r, nil
		}
		return nil, typemodel.NewRuntimeError(fmt.Sprintf("cannot convert string of length %d to char", utf8.RuneCountInString(x)), nil)
	}
	if n, ok := toInt64(v); ok && v != nil {
		return rune(n), nil
	}
	return nil, typemodel.NewRuntimeError(fmt.Sprintf("cannot convert %T to char", v), nil)
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case Char:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
