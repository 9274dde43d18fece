package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON data model.
// Only Null, Bool, Number, String, Array and Object implement it.
type Value interface {
	canonValue() // Sealed
}

// Null is the JSON null literal.
type Null struct{}

func (Null) canonValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) canonValue() {}

// Number is a JSON number. JSON has a single number type; integers and
// fractions share the IEEE-754 double representation, as in ECMAScript.
type Number float64

func (Number) canonValue() {}

// String is a JSON string.
type String string

func (String) canonValue() {}

// Array is an ordered JSON array. Order is significant and preserved.
type Array []Value

func (Array) canonValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) canonValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string ordering compares UTF-8 bytes, which differs for
// characters above U+FFFF.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Get returns the value stored under key and whether it was present.
func (o Object) Get(key string) (Value, bool) {
	v, ok := o[key]
	return v, ok
}

// compareKeys compares strings by UTF-16 code units as RFC 8785 §3.2.3 requires.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromGo converts plain Go data (as produced by encoding/json or built by
// hand) into a Value. Supported: nil, bool, string, all integer kinds,
// float32/float64, json.Number, []any, map[string]any and Value itself.
func FromGo(v any) (Value, error) {
	return fromGo(v, "$")
}

func fromGo(v any, path string) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Number(float64(val)), nil
	case int8:
		return Number(float64(val)), nil
	case int16:
		return Number(float64(val)), nil
	case int32:
		return Number(float64(val)), nil
	case int64:
		return intNumber(val, path)
	case uint:
		return Number(float64(val)), nil
	case uint8:
		return Number(float64(val)), nil
	case uint16:
		return Number(float64(val)), nil
	case uint32:
		return Number(float64(val)), nil
	case float32:
		return floatNumber(float64(val), path)
	case float64:
		return floatNumber(val, path)
	case json.Number:
		return parseNumber(string(val), path)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := fromGo(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := fromGo(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, errorAt(path, fmt.Sprintf("unsupported type %T", v))
	}
}

// intNumber rejects int64 values that a double cannot hold exactly.
func intNumber(n int64, path string) (Value, error) {
	const maxSafe = 1<<53 - 1
	if n > maxSafe || n < -maxSafe {
		return nil, errorAt(path, fmt.Sprintf("integer %d exceeds IEEE-754 exact range", n))
	}
	return Number(float64(n)), nil
}

func floatNumber(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errorAt(path, fmt.Sprintf("number %v has no JSON representation", f))
	}
	return Number(f), nil
}

// ToGo converts a Value back into plain Go data: nil, bool, float64,
// string, []any and map[string]any.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Number:
		return float64(val)
	case String:
		return string(val)
	case Array:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToGo(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = ToGo(e)
		}
		return out
	}
	return nil
}
