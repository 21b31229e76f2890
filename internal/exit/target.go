package exit

import "time"

// targetKnot is one point of the progressive profit-target schedule.
type targetKnot struct {
	hours  float64
	target float64
}

// The schedule demands more of the theta decay as the session ages: an
// early exit may bank 50%, a late one should capture closer to the full
// credit. Piecewise-linear between knots, flat outside.
var targetSchedule = []targetKnot{
	{0, 0.50},
	{1.5, 0.60},
	{3, 0.70},
	{4, 0.80},
}

// ProgressiveTarget interpolates the profit-target percentage for a
// position of the given age. Monotonically non-decreasing, bounded by the
// first and last knot.
func ProgressiveTarget(age time.Duration) float64 {
	h := age.Hours()
	if h <= targetSchedule[0].hours {
		return targetSchedule[0].target
	}
	last := targetSchedule[len(targetSchedule)-1]
	if h >= last.hours {
		return last.target
	}
	for i := 1; i < len(targetSchedule); i++ {
		lo, hi := targetSchedule[i-1], targetSchedule[i]
		if h <= hi.hours {
			frac := (h - lo.hours) / (hi.hours - lo.hours)
			return lo.target + frac*(hi.target-lo.target)
		}
	}
	return last.target
}
