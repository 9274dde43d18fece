package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes raw JSON into a Value tree.
//
// Parse is stricter than encoding/json: it rejects a leading BOM, invalid
// UTF-8, unpaired surrogate escapes, duplicate keys at any depth, numbers
// outside the double range, and any data after the first value. Syntax
// errors (including the NaN and Infinity literals some encoders emit)
// surface as CanonicalizationError.
func Parse(data []byte) (Value, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return nil, errorAt("$", "byte order mark is not allowed")
	}
	if !utf8.Valid(data) {
		return nil, errorAt("$", "input is not valid UTF-8")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	p := &parser{dec: dec, data: data}

	v, err := p.value("$")
	if err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errorAt("$", "unexpected data after top-level value")
	}
	return v, nil
}

// parser walks the decoder's token stream. data is kept so string tokens
// can be checked against their raw literal, since encoding/json replaces
// unpaired surrogate escapes with U+FFFD.
type parser struct {
	dec  *json.Decoder
	data []byte
}

// token returns the next token. String tokens are rejected when their raw
// literal holds an unpaired surrogate escape.
func (p *parser) token(path string) (json.Token, error) {
	start := p.dec.InputOffset()
	tok, err := p.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errorAt(path, "unexpected end of input")
		}
		return nil, &CanonicalizationError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if _, ok := tok.(string); ok {
		if esc := unpairedSurrogate(p.data[start:p.dec.InputOffset()]); esc != "" {
			return nil, errorAt(path, "unpaired surrogate escape "+esc)
		}
	}
	return tok, nil
}

func (p *parser) value(path string) (Value, error) {
	tok, err := p.token(path)
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object(path)
		case '[':
			return p.array(path)
		}
		return nil, errorAt(path, fmt.Sprintf("unexpected delimiter %q", t))
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(string(t), path)
	}
	return nil, errorAt(path, fmt.Sprintf("unexpected token %v", tok))
}

func (p *parser) object(path string) (Value, error) {
	obj := Object{}
	for p.dec.More() {
		tok, err := p.token(path)
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errorAt(path, fmt.Sprintf("object key must be a string, got %v", tok))
		}
		if _, dup := obj[key]; dup {
			return nil, errorAt(path, fmt.Sprintf("duplicate key %q", key))
		}
		v, err := p.value(path + "." + key)
		if err != nil {
			return nil, err
		}
		obj[key] = v
	}
	if err := p.expectDelim('}', path); err != nil {
		return nil, err
	}
	return obj, nil
}

func (p *parser) array(path string) (Value, error) {
	arr := Array{}
	for i := 0; p.dec.More(); i++ {
		v, err := p.value(fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if err := p.expectDelim(']', path); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *parser) expectDelim(want json.Delim, path string) error {
	tok, err := p.dec.Token()
	if err != nil {
		return &CanonicalizationError{Path: path, Reason: "invalid JSON", Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errorAt(path, fmt.Sprintf("expected %q, got %v", want, tok))
	}
	return nil
}

// unpairedSurrogate scans the raw bytes of one string token and returns the
// first \uXXXX escape that is a surrogate without its partner, or "".
// raw may carry the separators that preceded the literal; they hold no
// backslashes.
func unpairedSurrogate(raw []byte) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		r, ok := hexEscape(raw, i)
		if !ok {
			// Any other escape is two bytes long.
			i++
			continue
		}
		switch {
		case utf16.IsSurrogate(r) && r < 0xDC00:
			if lo, ok := hexEscape(raw, i+6); ok && lo >= 0xDC00 && lo <= 0xDFFF {
				i += 11
				continue
			}
			return string(raw[i : i+6])
		case utf16.IsSurrogate(r):
			return string(raw[i : i+6])
		}
		i += 5
	}
	return ""
}

// hexEscape decodes the \uXXXX escape starting at raw[i].
func hexEscape(raw []byte, i int) (rune, bool) {
	if i+6 > len(raw) || raw[i] != '\\' || raw[i+1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(string(raw[i+2:i+6]), 16, 16)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

// parseNumber converts a JSON number literal to a double.
// Literals that overflow float64 are rejected rather than becoming Inf.
func parseNumber(lit, path string) (Value, error) {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, &CanonicalizationError{Path: path, Reason: fmt.Sprintf("number %s out of range", lit), Err: err}
	}
	return floatNumber(f, path)
}
