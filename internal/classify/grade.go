package classify

import (
	"fmt"

	"github.com/roach88/golfkpi/internal/artifact"
)

// Grade is a shot or metric grade. The numeric order is C < B < A, so the
// worst of several grades is their minimum.
type Grade int

const (
	GradeC Grade = iota + 1
	GradeB
	GradeA
)

func (g Grade) String() string {
	switch g {
	case GradeA:
		return "A"
	case GradeB:
		return "B"
	case GradeC:
		return "C"
	}
	return fmt.Sprintf("Grade(%d)", int(g))
}

// ParseGrade converts "A", "B" or "C" to a Grade.
func ParseGrade(s string) (Grade, error) {
	switch s {
	case "A":
		return GradeA, nil
	case "B":
		return GradeB, nil
	case "C":
		return GradeC, nil
	}
	return 0, fmt.Errorf("unknown grade %q", s)
}

// MarshalText renders the grade as its letter.
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses a grade letter.
func (g *Grade) UnmarshalText(b []byte) error {
	parsed, err := ParseGrade(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Worst returns the lowest of the given grades, or GradeA for none.
func Worst(grades ...Grade) Grade {
	worst := GradeA
	for _, g := range grades {
		if g < worst {
			worst = g
		}
	}
	return worst
}

// GradeMetric grades one metric value against its threshold. Cutoffs are
// inclusive: a value equal to a_min (or a_max) earns A.
func GradeMetric(value float64, th artifact.Threshold) Grade {
	if th.Direction == artifact.LowerIsBetter {
		switch {
		case value <= th.A:
			return GradeA
		case value <= th.B:
			return GradeB
		}
		return GradeC
	}

	switch {
	case value >= th.A:
		return GradeA
	case value >= th.B:
		return GradeB
	}
	return GradeC
}
