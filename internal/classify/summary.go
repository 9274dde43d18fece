package classify

import (
	"fmt"
	"math"

	"github.com/roach88/golfkpi/internal/artifact"
)

// Summary is the aggregate of one club's shots under one template: the
// content of a club sub-session row.
type Summary struct {
	ShotCount int            `json:"shot_count"`
	ACount    int            `json:"a_count"`
	BCount    int            `json:"b_count"`
	CCount    int            `json:"c_count"`
	Validity  ValidityStatus `json:"validity_status"`

	// APercentage is nil when Validity is Insufficient.
	APercentage *float64 `json:"a_percentage"`

	AvgBallSpeed    *float64 `json:"avg_ball_speed"`
	AvgSmashFactor  *float64 `json:"avg_smash_factor"`
	AvgDescentAngle *float64 `json:"avg_descent_angle"`
	AvgSpinRate     *float64 `json:"avg_spin_rate"`
}

// Summarize classifies every shot and aggregates the results. All shots
// must be gradable; the caller filters rejected shots first. Averages cover
// every reported value of each metric, whether or not the template grades
// it, and are nil when no shot reports the metric.
func Summarize(shots []Shot, t *artifact.Template, th Thresholds) (Summary, error) {
	if err := th.Validate(); err != nil {
		return Summary{}, err
	}

	var s Summary
	for i, shot := range shots {
		res, err := ClassifyShot(shot, t)
		if err != nil {
			return Summary{}, fmt.Errorf("shot %d: %w", i, err)
		}
		switch res.Grade {
		case GradeA:
			s.ACount++
		case GradeB:
			s.BCount++
		default:
			s.CCount++
		}
	}
	s.ShotCount = len(shots)
	s.Validity = Validity(s.ShotCount, th)
	if s.Validity != Insufficient {
		pct := Percentage(s.ACount, s.ShotCount)
		s.APercentage = &pct
	}

	s.AvgBallSpeed = average(shots, artifact.BallSpeed)
	s.AvgSmashFactor = average(shots, artifact.SmashFactor)
	s.AvgDescentAngle = average(shots, artifact.DescentAngle)
	s.AvgSpinRate = average(shots, artifact.SpinRate)
	return s, nil
}

// Percentage returns 100*part/whole rounded to two decimals, halves away
// from zero. whole must be positive.
func Percentage(part, whole int) float64 {
	return math.Round(float64(part)*10000/float64(whole)) / 100
}

func average(shots []Shot, name artifact.MetricName) *float64 {
	var sum float64
	n := 0
	for _, s := range shots {
		if v, ok := s.Metric(name); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
