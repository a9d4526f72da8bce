// Package namecodec maps arbitrary delegate member names ("spellings") to
// names that are legal in the symbol table of a synthesized type, and back.
//
// The characters \ / . ; : $ [ ] < > are structural in symbols. Each of them
// is written as the escape character \ followed by its replacement from
// - | , ? ! % { } ^ _ respectively. A name that needed any replacement is
// prefixed with the marker \= unless it already starts with \, so whether a
// symbol was encoded is visible from its first character. The empty name
// encodes to the marker alone.
package namecodec

import (
	"fmt"
	"strings"
)

const (
	// Escape starts every escape sequence.
	Escape = '\\'
	// Marker follows Escape at the start of an encoded symbol.
	Marker = '='

	dangerous    = "\\/.;:$[]<>"
	replacements = "-|,?!%{}^_"
)

var markerPrefix = string([]byte{Escape, Marker})

// Encode returns the symbol-legal form of name. It panics if the produced
// symbol does not decode back to name, which would let two delegate names
// collide on one symbol.
func Encode(name string) string {
	enc := mangle(name)
	if enc != name && !looksEncoded(enc) {
		panic(fmt.Sprintf("namecodec: encoded %q lacks escape prefix: %q", name, enc))
	}
	if dec := demangle(enc); dec != name {
		panic(fmt.Sprintf("namecodec: %q encodes to %q which decodes to %q", name, enc, dec))
	}
	return enc
}

// Decode returns the spelling of an encoded symbol. Symbols not starting
// with the escape character are their own spelling.
func Decode(symbol string) string {
	if !looksEncoded(symbol) {
		return symbol
	}
	return demangle(symbol)
}

// Legal reports whether symbol contains no structural characters other than
// the escape character.
func Legal(symbol string) bool {
	return !strings.ContainsAny(symbol, dangerous[1:])
}

func looksEncoded(s string) bool {
	return len(s) > 0 && s[0] == Escape
}

func replacementOf(c byte) (byte, bool) {
	if i := strings.IndexByte(dangerous, c); i >= 0 {
		return replacements[i], true
	}
	return 0, false
}

func originalOf(c byte) (byte, bool) {
	if i := strings.IndexByte(replacements, c); i >= 0 {
		return dangerous[i], true
	}
	return 0, false
}

func mangle(s string) string {
	if s == "" {
		return markerPrefix
	}
	var b *strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		needEscape := false
		if c == Escape {
			// An escape character is only ambiguous when the next character
			// would be read as a replacement, or as the marker at the start.
			if i+1 < len(s) {
				next := s[i+1]
				_, isReplacement := originalOf(next)
				if (i == 0 && next == Marker) || isReplacement {
					needEscape = true
				}
			}
		} else {
			_, needEscape = replacementOf(c)
		}
		if !needEscape {
			if b != nil {
				b.WriteByte(c)
			}
			continue
		}
		if b == nil {
			b = &strings.Builder{}
			b.Grow(len(s) + 10)
			if s[0] != Escape && i > 0 {
				b.WriteString(markerPrefix)
			}
			b.WriteString(s[:i])
		}
		r, _ := replacementOf(c)
		b.WriteByte(Escape)
		b.WriteByte(r)
	}
	if b == nil {
		return s
	}
	return b.String()
}

func demangle(s string) string {
	start := 0
	if strings.HasPrefix(s, markerPrefix) {
		start = 2
	}
	var b *strings.Builder
	for i := start; i < len(s); i++ {
		c := s[i]
		if c == Escape && i+1 < len(s) {
			if orig, ok := originalOf(s[i+1]); ok {
				if b == nil {
					b = &strings.Builder{}
					b.Grow(len(s))
					b.WriteString(s[start:i])
				}
				i++
				c = orig
			}
		}
		if b != nil {
			b.WriteByte(c)
		}
	}
	if b == nil {
		return s[start:]
	}
	return b.String()
}
