// Package braking estimates the altitude at which continuous full thrust must begin.
package braking

import "math"

// Input is everything the estimator reads; all values come from one tick.
type Input struct {
	Mass        float64
	Altitude    float64 // surface altitude h
	Speed       float64
	Gravity     float64
	MaxThrust   float64
	ImpactSpeed float64 // tolerated touchdown speed
}

// Estimate is the result for one tick. It must be recomputed every tick, never cached.
type Estimate struct {
	// Energy is m·h·g + ½·m·(v − v_impact)².
	Energy float64
	// MinAltitude is Energy / T_max: below it full braking is required.
	MinAltitude float64
	// Crossover is ½·m·(v − v_impact)² / (T_max − m·g), the altitude-independent form of
	// the same boundary (h < MinAltitude ⇔ h < Crossover when T_max > m·g). +Inf when the
	// engine cannot out-thrust gravity.
	Crossover float64
}

// Compute evaluates the estimator.
//
// The energy balance ignores thrust-direction losses and gravity's work during the burn,
// so MinAltitude is a trigger threshold, not an exact stopping distance.
func Compute(in Input) Estimate {
	dv := in.Speed - in.ImpactSpeed
	kinetic := 0.5 * in.Mass * dv * dv
	energy := in.Mass*in.Altitude*in.Gravity + kinetic

	est := Estimate{Energy: energy, MinAltitude: math.Inf(1), Crossover: math.Inf(1)}
	if in.MaxThrust > 0 {
		est.MinAltitude = energy / in.MaxThrust
	}
	if margin := in.MaxThrust - in.Mass*in.Gravity; margin > 0 {
		est.Crossover = kinetic / margin
	}
	return est
}

// ShouldBrake reports whether the vehicle at altitude h is below the braking altitude.
func (e Estimate) ShouldBrake(h float64) bool {
	return h < e.MinAltitude
}
