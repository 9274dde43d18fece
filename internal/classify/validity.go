package classify

import "fmt"

// ValidityStatus is the sample-size tier of a club sub-session.
type ValidityStatus string

const (
	Insufficient ValidityStatus = "insufficient"
	Warning      ValidityStatus = "warning"
	Valid        ValidityStatus = "valid"
)

// Thresholds are the sample-size cutoffs. Counts below MinSample are
// insufficient, counts from MinSample up to ValidSample-1 are a low-sample
// warning, and counts of ValidSample or more are valid.
type Thresholds struct {
	MinSample   int
	ValidSample int
}

// DefaultThresholds returns the default cutoffs: <5 insufficient, 5..14
// warning, >=15 valid.
func DefaultThresholds() Thresholds {
	return Thresholds{MinSample: 5, ValidSample: 15}
}

// Validate rejects cutoffs that would make a tier unreachable in the wrong
// direction.
func (t Thresholds) Validate() error {
	if t.MinSample < 1 {
		return fmt.Errorf("min sample must be >= 1, got %d", t.MinSample)
	}
	if t.ValidSample < t.MinSample {
		return fmt.Errorf("valid sample (%d) must be >= min sample (%d)", t.ValidSample, t.MinSample)
	}
	return nil
}

// Validity maps a shot count onto its tier.
func Validity(shotCount int, t Thresholds) ValidityStatus {
	switch {
	case shotCount < t.MinSample:
		return Insufficient
	case shotCount < t.ValidSample:
		return Warning
	}
	return Valid
}
