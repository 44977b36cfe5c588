// Package vessel defines the boundary between the guidance core and the vehicle link:
// what can be read from the vehicle and what can be commanded.
package vessel

import (
	"context"
	"fmt"
	"time"

	"github.com/descentctl/lander/internal/clock"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
)

// Telemetry is the read side of the link.
type Telemetry interface {
	SampleVehicle(frame core.Frame) (core.KinematicSample, error)
	// SampleTarget returns nil without error when no target is selected.
	SampleTarget(frame core.Frame) (*core.KinematicSample, error)
	Environment() (core.EnvironmentConstants, error)
	GroundContact() ([]bool, error)
}

// Actuator is the command side of the link.
type Actuator interface {
	SetThrottle(v float64) error
	EngageAutopilot() error
	DisengageAutopilot() error
	SetAutopilotTarget(frame core.Frame, dir vecmath.Vector3) error
	EnableAttitudeHold(on bool) error
	SetAttitudeHold(mode core.SASMode) error
	// SetGimbalLimit applies to every engine of the vehicle.
	SetGimbalLimit(limit float64) error
	ActivateNextStage() error
}

// Link is an exclusive session with one vehicle.
type Link interface {
	Telemetry
	Actuator
	Close() error
}

// Diagnostics is what a link can report about itself before a descent.
type Diagnostics struct {
	LinkType      string  `json:"linkType"`
	ServerVersion string  `json:"serverVersion"`
	VesselName    string  `json:"vesselName"`
	TargetName    string  `json:"targetName"`
	BodyName      string  `json:"bodyName"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// Describer is implemented by links that can report start-up diagnostics.
type Describer interface {
	Describe() (Diagnostics, error)
}

// SurfaceSpeedSetter is implemented by links whose flight display can be switched to
// surface-relative speed.
type SurfaceSpeedSetter interface {
	SetSpeedModeSurface() error
}

// WaitForTarget polls until a target is selected, the timeout elapses or ctx is done.
func WaitForTarget(ctx context.Context, tel Telemetry, clk clock.Clock, frame core.Frame, interval, timeout time.Duration) (*core.KinematicSample, error) {
	start := clk.Now()
	for {
		target, err := tel.SampleTarget(frame)
		if err != nil {
			return nil, &core.TelemetryUnavailableError{Op: "sample target", Err: err}
		}
		if target != nil {
			return target, nil
		}
		if waited := clk.Now().Sub(start); waited >= timeout {
			return nil, fmt.Errorf("waited %s: %w", waited, core.ErrNoTargetSelected)
		}
		if err := clk.Sleep(ctx, interval); err != nil {
			return nil, err
		}
	}
}
