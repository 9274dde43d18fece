package artifact

import (
	"fmt"
	"math"

	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
)

// decoder reads typed fields out of a schema-validated canon.Object and
// records the first failure, so callers can read every field and check err
// once.
type decoder struct {
	entity string
	err    error
}

func (d *decoder) fail(field, format string, args ...any) {
	if d.err == nil {
		d.err = kernel.Validationf(d.entity, field, format, args...)
	}
}

func (d *decoder) object(v canon.Value, field string) canon.Object {
	obj, ok := v.(canon.Object)
	if !ok {
		d.fail(field, "expected object, got %T", v)
		return canon.Object{}
	}
	return obj
}

func (d *decoder) str(obj canon.Object, key, field string) string {
	v, ok := obj.Get(key)
	if !ok {
		d.fail(field, "is required")
		return ""
	}
	s, ok := v.(canon.String)
	if !ok {
		d.fail(field, "expected string")
		return ""
	}
	return string(s)
}

func (d *decoder) number(obj canon.Object, key, field string) float64 {
	v, ok := obj.Get(key)
	if !ok {
		d.fail(field, "is required")
		return 0
	}
	n, ok := v.(canon.Number)
	if !ok {
		d.fail(field, "expected number")
		return 0
	}
	return float64(n)
}

func (d *decoder) integer(obj canon.Object, key, field string) int {
	f := d.number(obj, key, field)
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		d.fail(field, "expected integer, got %v", f)
		return 0
	}
	return int(f)
}

func (d *decoder) array(obj canon.Object, key, field string) canon.Array {
	v, ok := obj.Get(key)
	if !ok {
		d.fail(field, "is required")
		return nil
	}
	arr, ok := v.(canon.Array)
	if !ok {
		d.fail(field, "expected array")
		return nil
	}
	return arr
}

// prepare is the common front half of every artifact pipeline: strict parse
// (duplicate keys, BOM, invalid UTF-8 rejected), canonicalization, then the
// structural schema check against the canonical bytes.
func prepare(entity, def string, raw []byte) (canon.Object, []byte, error) {
	v, err := canon.Parse(raw)
	if err != nil {
		return nil, nil, &kernel.ValidationError{Entity: entity, Message: "document cannot be canonicalized", Err: err}
	}
	canonical, err := canon.Marshal(v)
	if err != nil {
		return nil, nil, &kernel.ValidationError{Entity: entity, Message: "document cannot be canonicalized", Err: err}
	}
	obj, ok := v.(canon.Object)
	if !ok {
		return nil, nil, kernel.Validationf(entity, "", "document must be a JSON object")
	}
	if err := validateSchema(entity, def, canonical); err != nil {
		return nil, nil, err
	}
	return obj, canonical, nil
}

func fieldPath(parts ...any) string {
	s := ""
	for i, p := range parts {
		switch v := p.(type) {
		case int:
			s += fmt.Sprintf("[%d]", v)
		default:
			if i > 0 {
				s += "."
			}
			s += fmt.Sprint(v)
		}
	}
	return s
}
