package core

import "github.com/descentctl/lander/pkg/vecmath"

// Frame names the reference frame a sample is expressed in.
// Vehicle and target samples taken in the same tick must share one frame.
type Frame string

const (
	// FrameBody is the rotating, body-fixed frame of the reference body (surface-relative).
	FrameBody Frame = "body"
)

// KinematicSample is one telemetry read of a single vessel.
type KinematicSample struct {
	Time            float64         `json:"time"` // telemetry universal time, seconds
	Position        vecmath.Vector3 `json:"position"`
	Velocity        vecmath.Vector3 `json:"velocity"`
	Mass            float64         `json:"mass"`
	SurfaceAltitude float64         `json:"surfaceAltitude"`
	VerticalSpeed   float64         `json:"verticalSpeed"`
	Speed           float64         `json:"speed"`
	Thrust          float64         `json:"thrust"`
	Latitude        float64         `json:"latitude"`
	Longitude       float64         `json:"longitude"`
}

// DefaultTargetImpactSpeed is the soft-landing tolerance used when none is configured.
const DefaultTargetImpactSpeed = 0.5

// EnvironmentConstants are read-only for the duration of a descent.
type EnvironmentConstants struct {
	SurfaceGravity    float64 `json:"surfaceGravity"`
	MaxThrust         float64 `json:"maxThrust"`
	TargetImpactSpeed float64 `json:"targetImpactSpeed"`
	BodyRadius        float64 `json:"bodyRadius"`
	BodyName          string  `json:"bodyName"`
}
