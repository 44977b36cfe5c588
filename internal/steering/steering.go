// Package steering implements the velocity-reflection steering law.
//
// The law reflects the vehicle's velocity direction across the line of sight to the
// target, which nulls the velocity component not aligned with the target bearing. It is
// reactive: no intercept point is solved for, so it is only valid while the target is
// stationary or slow compared to the closing speed.
package steering

import (
	"errors"

	"github.com/descentctl/lander/pkg/vecmath"
)

// DefaultLeadCoefficient is the empirically tuned lead factor of the law.
const DefaultLeadCoefficient = 1.3

// Fallback names the degenerate-input path taken by the law, if any.
type Fallback string

const (
	FallbackNone Fallback = ""
	// FallbackTargetSeeking: velocity was degenerate, point straight at the target.
	FallbackTargetSeeking Fallback = "target_seeking"
	// FallbackRetrograde: line of sight was degenerate, point against the velocity.
	FallbackRetrograde Fallback = "retrograde"
	// FallbackHold: both inputs were degenerate, no pointing update.
	FallbackHold Fallback = "hold"
)

// Law is the steering law with its tuning.
type Law struct {
	LeadCoefficient float64
}

// New returns a Law using coefficient, or DefaultLeadCoefficient when coefficient is 0.
func New(coefficient float64) Law {
	if coefficient == 0 {
		coefficient = DefaultLeadCoefficient
	}
	return Law{LeadCoefficient: coefficient}
}

// Result is the outcome of one evaluation.
type Result struct {
	// VelocityDir and LineOfSightDir are the normalized inputs; nil when degenerate.
	VelocityDir    *vecmath.Vector3
	LineOfSightDir *vecmath.Vector3
	// Raw is Reflect(t̂, v̂, k) before negation; zero when a fallback was taken.
	Raw vecmath.Vector3
	// Direction is the unit thrust-pointing direction. Valid is false when there is none.
	Direction vecmath.Vector3
	Valid     bool
	Fallback  Fallback
}

// Steer computes the desired thrust direction from the vehicle velocity and the
// line-of-sight vector (target position minus vehicle position).
// Degenerate input never produces an error; Result.Fallback records what was done instead.
func (l Law) Steer(velocity, lineOfSight vecmath.Vector3) Result {
	var res Result

	v, vErr := velocity.Normalize()
	if vErr == nil {
		res.VelocityDir = &v
	}
	t, tErr := lineOfSight.Normalize()
	if tErr == nil {
		res.LineOfSightDir = &t
	}

	switch {
	case vErr != nil && tErr != nil:
		res.Fallback = FallbackHold
		return res
	case vErr != nil:
		res.Direction, res.Valid, res.Fallback = t, true, FallbackTargetSeeking
		return res
	case tErr != nil:
		res.Direction, res.Valid, res.Fallback = v.Neg(), true, FallbackRetrograde
		return res
	}

	res.Raw = vecmath.Reflect(t, v, l.LeadCoefficient)
	dir, err := res.Raw.Neg().Normalize()
	if errors.Is(err, vecmath.ErrDegenerateVector) {
		// only reachable when k·dot(t̂,v̂)·v̂ cancels t̂ exactly
		res.Direction, res.Valid, res.Fallback = t, true, FallbackTargetSeeking
		return res
	}
	res.Direction, res.Valid = dir, true
	return res
}

// LineOfSight returns target − vehicle.
func LineOfSight(vehicle, target vecmath.Vector3) vecmath.Vector3 {
	return vecmath.Subtract(target, vehicle)
}
