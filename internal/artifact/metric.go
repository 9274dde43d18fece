package artifact

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MetricName identifies one of the launch-monitor metrics a template may
// grade.
type MetricName string

const (
	BallSpeed    MetricName = "ball_speed"
	SmashFactor  MetricName = "smash_factor"
	DescentAngle MetricName = "descent_angle"
	SpinRate     MetricName = "spin_rate"
)

// MetricNames lists every known metric in the fixed order used wherever
// iteration order is observable (reports, averages, per-metric detail).
var MetricNames = []MetricName{BallSpeed, SmashFactor, DescentAngle, SpinRate}

// Direction says which way a metric improves.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// AggregationWorstMetric is the only aggregation method: a shot's grade is
// the worst of its per-metric grades.
const AggregationWorstMetric = "worst_metric"

// Threshold is the two-cutoff grading rule for one metric. For
// HigherIsBetter, A and B are a_min and b_min; for LowerIsBetter they are
// a_max and b_max.
type Threshold struct {
	Direction Direction
	A         float64
	B         float64
}

// NormalizeClub returns the comparison key for a club label: trimmed, NFC
// normalized and case folded, so "7I", " 7i" and "7i" group together.
// Stored artifacts keep the label exactly as written.
func NormalizeClub(label string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(label)))
}

// isNFC reports whether s is already in Unicode normalization form C.
// Artifact text fields must be NFC so that visually identical documents
// cannot hash differently.
func isNFC(s string) bool {
	return norm.NFC.IsNormalString(s)
}
