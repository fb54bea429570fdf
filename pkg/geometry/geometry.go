// Package geometry maps between rail millimeters, external display
// units and motor microsteps.
package geometry

import "math"

// Rail holds the mechanical constants of the axis. It is built once at
// configuration time and never mutated afterwards.
type Rail struct {
	ScrewLeadMm     float64 // screw travel per revolution
	FullStepsPerRev int
	Microsteps      int

	MinPositionCm   float64 // travel limits in centimeters
	MaxPositionCm   float64
	Switch1OffsetCm float64 // physical offset of switch 1 from logical zero

	CalibrationSpeedMmS float64 // constant sweep speed while seeking switches
}

// DefaultRail returns the geometry of the reference rail.
func DefaultRail() Rail {
	return Rail{
		ScrewLeadMm:         8.0,
		FullStepsPerRev:     200,
		Microsteps:          16,
		MinPositionCm:       -12.5,
		MaxPositionCm:       12.0,
		Switch1OffsetCm:     -11.8,
		CalibrationSpeedMmS: 10.0,
	}
}

// StepsPerMm returns the number of microsteps per millimeter of travel.
func (r Rail) StepsPerMm() float64 {
	return float64(r.FullStepsPerRev*r.Microsteps) / r.ScrewLeadMm
}

// MmToSteps converts a distance in millimeters to microsteps.
func (r Rail) MmToSteps(mm float64) int64 {
	return int64(math.Round(mm * r.StepsPerMm()))
}

// OffsetMm returns switch 1's physical offset in display millimeters.
func (r Rail) OffsetMm() int {
	return int(math.Round(r.Switch1OffsetCm * 10))
}

// StepsToDisplayMm converts an internal step count (zero at the
// switch-1 calibrated origin) into the external millimeter coordinate
// whose zero is the rail's logical zero.
func (r Rail) StepsToDisplayMm(steps int64) int {
	return int(math.Round(float64(steps)/r.StepsPerMm())) + r.OffsetMm()
}

// DisplayMmToSteps converts an external millimeter position to steps.
func (r Rail) DisplayMmToSteps(mm int) int64 {
	return r.MmToSteps(float64(mm - r.OffsetMm()))
}

// MinMm returns the lower display-coordinate bound.
func (r Rail) MinMm() int { return int(math.Round(r.MinPositionCm * 10)) }

// MaxMm returns the upper display-coordinate bound.
func (r Rail) MaxMm() int { return int(math.Round(r.MaxPositionCm * 10)) }

// ClampDisplayMm limits a requested display position to the travel
// range. The converter itself never clamps; callers do.
func (r Rail) ClampDisplayMm(mm int) int {
	if mm < r.MinMm() {
		return r.MinMm()
	}
	if mm > r.MaxMm() {
		return r.MaxMm()
	}
	return mm
}

// SweepBoundSteps returns the step limit for the calibration sweep:
// the full travel plus the switch-1 offset margin.
func (r Rail) SweepBoundSteps() int64 {
	boundMm := (r.MaxPositionCm + math.Abs(r.Switch1OffsetCm)) * 10
	return r.MmToSteps(boundMm)
}

// SpeedSteps converts a speed in mm/s to steps/s.
func (r Rail) SpeedSteps(mmPerSec float64) float64 {
	return mmPerSec * r.StepsPerMm()
}

// AccelSteps converts an acceleration in mm/s^2 to steps/s^2.
func (r Rail) AccelSteps(mmPerSec2 float64) float64 {
	return mmPerSec2 * r.StepsPerMm()
}
