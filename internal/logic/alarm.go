package logic

import "math"

// Evaluate decides the alarm transition for a reading.
// A reading inside [Target-Hysteresis, Target] never changes the state.
// Values are compared in whole tenths of a degree, the resolution readings
// are rounded to, so a reading equal to Target-Hysteresis stays in the band.
func Evaluate(temp float64, th Thresholds, asserted bool) Transition {
	if !asserted && tenths(temp) > tenths(th.Target) {
		return TransitionAssert
	}
	if asserted && tenths(temp) < tenths(th.ClearBelow()) {
		return TransitionClear
	}
	return TransitionNone
}

func tenths(c float64) int64 {
	return int64(math.Round(c * 10))
}

// RoundReading rounds a raw sensor value to one decimal place.
func RoundReading(c float64) float64 {
	return math.Round(c*10) / 10
}

// UpdateExtrema folds a reading into the running extrema. Min and Max are
// checked independently; an unset bound takes the reading.
func UpdateExtrema(ex Extrema, temp float64) (out Extrema, minChanged, maxChanged bool) {
	out = ex
	if !ex.HasMin || temp < ex.Min {
		out.Min, out.HasMin = temp, true
		minChanged = true
	}
	if !ex.HasMax || temp > ex.Max {
		out.Max, out.HasMax = temp, true
		maxChanged = true
	}
	return out, minChanged, maxChanged
}

// ShouldEscalate reports whether a low-power check must leave deep sleep and
// return to continuous monitoring instead of sleeping again.
func ShouldEscalate(fridgeTemp, target float64) bool {
	return tenths(fridgeTemp) > tenths(target)
}
