package canon

import (
	"math"
	"strconv"
	"strings"
)

// formatNumber renders a double with the ECMAScript Number.prototype.toString
// algorithm (ECMA-262 §7.1.12.1) that RFC 8785 §3.2.2.3 mandates.
//
// Go's shortest round-trip formatting produces the same digits as
// ECMAScript; only the choice between fixed and exponent notation and the
// exponent spelling differ, and those are fixed up here.
func formatNumber(f float64, path string) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errorAt(path, "NaN and Infinity have no JSON representation")
	}
	if f == 0 {
		return "0", nil // also -0
	}

	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + digits, nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
