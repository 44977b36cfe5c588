package core

import "github.com/descentctl/lander/pkg/vecmath"

// SASMode selects the attitude-hold behaviour.
// SASUnset means "leave attitude hold as it is".
type SASMode int

const (
	SASUnset SASMode = iota
	SASOff
	SASRetrograde
	SASRadialOut
)

func (m SASMode) String() string {
	switch m {
	case SASOff:
		return "off"
	case SASRetrograde:
		return "retrograde"
	case SASRadialOut:
		return "radial_out"
	default:
		return "unset"
	}
}

// AutopilotAction engages or disengages the direction-seeking autopilot.
type AutopilotAction int

const (
	AutopilotUnchanged AutopilotAction = iota
	AutopilotEngage
	AutopilotDisengage
)

func (a AutopilotAction) String() string {
	switch a {
	case AutopilotEngage:
		return "engage"
	case AutopilotDisengage:
		return "disengage"
	default:
		return "unchanged"
	}
}

// ActuationCommand is produced fresh every tick. Nil or zero-valued fields are not applied.
type ActuationCommand struct {
	Throttle    *float64         `json:"throttle,omitempty"`
	Pointing    *vecmath.Vector3 `json:"pointing,omitempty"`
	SASMode     SASMode          `json:"sasMode,omitempty"`
	GimbalLimit *float64         `json:"gimbalLimit,omitempty"`
	Autopilot   AutopilotAction  `json:"autopilot,omitempty"`
	Stage       bool             `json:"stage,omitempty"`
}

// Empty reports whether the command sets nothing.
func (c ActuationCommand) Empty() bool {
	return c.Throttle == nil && c.Pointing == nil && c.SASMode == SASUnset &&
		c.GimbalLimit == nil && c.Autopilot == AutopilotUnchanged && !c.Stage
}

// WithThrottle returns a copy of c with the throttle set, clamped to [0, 1].
func (c ActuationCommand) WithThrottle(v float64) ActuationCommand {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	c.Throttle = &v
	return c
}

// WithPointing returns a copy of c pointing the autopilot along d.
func (c ActuationCommand) WithPointing(d vecmath.Vector3) ActuationCommand {
	c.Pointing = &d
	return c
}

// WithGimbalLimit returns a copy of c with the engine gimbal limit set.
func (c ActuationCommand) WithGimbalLimit(v float64) ActuationCommand {
	c.GimbalLimit = &v
	return c
}
