package canon

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// Canonicalize parses raw JSON and re-encodes it in RFC 8785 canonical form.
// Two documents that differ only in key order or insignificant whitespace
// canonicalize to identical bytes.
func Canonicalize(raw []byte) ([]byte, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Marshal(v)
}

// Marshal encodes a Value as RFC 8785 canonical JSON.
// CRITICAL: this is the ONLY serialization used for identity computation.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units at every depth
//  2. Numbers in ECMAScript form (no trailing ".0", "1e+21", "1e-7")
//  3. No HTML escaping; U+2028 and U+2029 are written literally
//  4. NaN, Infinity and invalid UTF-8 are errors, never substituted
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v, "$"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustMarshal is like Marshal but panics on error.
// Use only in tests or with values known to be valid.
func MustMarshal(v Value) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func encode(buf *bytes.Buffer, v Value, path string) error {
	switch val := v.(type) {
	case nil:
		return errorAt(path, "missing value")
	case Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		s, err := formatNumber(float64(val), path)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case String:
		return encodeString(buf, string(val), path)
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k, path); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k], path+"."+k); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errorAt(path, fmt.Sprintf("unsupported value type %T", v))
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// encodeString writes s with the minimal escaping of RFC 8785 §3.2.2.2:
// quote, backslash, the five short control escapes, and \u00xx (lowercase
// hex) for the remaining C0 controls. Everything else is literal UTF-8.
func encodeString(buf *bytes.Buffer, s, path string) error {
	if !utf8.ValidString(s) {
		return errorAt(path, "string is not valid UTF-8")
	}

	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xF])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
	return nil
}
