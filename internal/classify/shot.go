package classify

import (
	"math"

	"github.com/roach88/golfkpi/internal/artifact"
	"github.com/roach88/golfkpi/internal/kernel"
)

// Shot holds the four classification metrics of one shot. A nil field
// means the launch monitor did not report that metric.
type Shot struct {
	BallSpeed    *float64 `json:"ball_speed,omitempty"`
	SmashFactor  *float64 `json:"smash_factor,omitempty"`
	DescentAngle *float64 `json:"descent_angle,omitempty"`
	SpinRate     *float64 `json:"spin_rate,omitempty"`
}

// Metric returns the value of a metric and whether it is present.
func (s Shot) Metric(name artifact.MetricName) (float64, bool) {
	var p *float64
	switch name {
	case artifact.BallSpeed:
		p = s.BallSpeed
	case artifact.SmashFactor:
		p = s.SmashFactor
	case artifact.DescentAngle:
		p = s.DescentAngle
	case artifact.SpinRate:
		p = s.SpinRate
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Validate rejects values that cannot be graded deterministically.
func (s Shot) Validate() error {
	for _, name := range artifact.MetricNames {
		v, ok := s.Metric(name)
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return kernel.Validationf("shot", string(name), "must be a finite number")
		}
		if v < 0 {
			return kernel.Validationf("shot", string(name), "must not be negative, got %v", v)
		}
	}
	return nil
}

// MetricGrade is the grade of one metric of one shot.
type MetricGrade struct {
	Metric artifact.MetricName `json:"metric"`
	Value  float64             `json:"value"`
	Grade  Grade               `json:"grade"`
}

// ShotResult is the outcome of classifying one shot.
type ShotResult struct {
	Grade   Grade         `json:"grade"`
	Metrics []MetricGrade `json:"metrics"`
}

// ClassifyShot grades every template metric the shot reports and returns
// the worst of them. Metrics the shot does not report are skipped; a shot
// that reports none of the template's metrics cannot be graded and yields a
// *kernel.ValidationError.
func ClassifyShot(s Shot, t *artifact.Template) (ShotResult, error) {
	if err := s.Validate(); err != nil {
		return ShotResult{}, err
	}

	var res ShotResult
	for _, name := range t.MetricOrder() {
		v, ok := s.Metric(name)
		if !ok {
			continue
		}
		res.Metrics = append(res.Metrics, MetricGrade{
			Metric: name,
			Value:  v,
			Grade:  GradeMetric(v, t.Metrics[name]),
		})
	}
	if len(res.Metrics) == 0 {
		return ShotResult{}, kernel.Validationf("shot", "", "reports none of the template metrics for club %q", t.Club)
	}

	res.Grade = GradeA
	for _, mg := range res.Metrics {
		res.Grade = Worst(res.Grade, mg.Grade)
	}
	return res, nil
}
