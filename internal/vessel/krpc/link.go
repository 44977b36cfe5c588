// Package krpc drives a Kerbal Space Program vessel through a kRPC server.
package krpc

import (
	"context"
	"fmt"

	krpcgo "github.com/atburke/krpc-go"
	krpcsvc "github.com/atburke/krpc-go/krpc"
	"github.com/atburke/krpc-go/spacecenter"
	"github.com/atburke/krpc-go/types"
	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
)

// Config holds the connection settings.
type Config struct {
	Host string `json:"host" mapstructure:"host"`
}

// Link is a session bound to the active vessel at connect time.
type Link struct {
	client  *krpcgo.KRPCClient
	version string

	vessel    *spacecenter.Vessel
	sc        *spacecenter.SpaceCenter
	control   *spacecenter.Control
	autopilot *spacecenter.AutoPilot
	parts     *spacecenter.Parts
	body      *spacecenter.CelestialBody
	bodyFrame *spacecenter.ReferenceFrame
	flight    *spacecenter.Flight
}

var (
	_ vessel.Link               = (*Link)(nil)
	_ vessel.Describer          = (*Link)(nil)
	_ vessel.SurfaceSpeedSetter = (*Link)(nil)
)

// Dial connects to the server and resolves the active vessel and its body.
func Dial(ctx context.Context, cfg Config) (*Link, error) {
	client := krpcgo.DefaultKRPCClient()
	if cfg.Host != "" {
		client.Host = cfg.Host
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to krpc at %s: %w", client.Host, err)
	}

	l := &Link{client: client, sc: spacecenter.New(client)}
	if err := l.resolve(); err != nil {
		client.Close()
		return nil, err
	}

	status, err := krpcsvc.New(client).GetStatus()
	if err == nil && status != nil {
		l.version = status.Version
	}
	return l, nil
}

func (l *Link) resolve() error {
	var err error
	if l.vessel, err = l.sc.ActiveVessel(); err != nil {
		return fmt.Errorf("active vessel: %w", err)
	}
	if l.control, err = l.vessel.Control(); err != nil {
		return fmt.Errorf("vessel control: %w", err)
	}
	if l.autopilot, err = l.vessel.AutoPilot(); err != nil {
		return fmt.Errorf("vessel autopilot: %w", err)
	}
	if l.parts, err = l.vessel.Parts(); err != nil {
		return fmt.Errorf("vessel parts: %w", err)
	}
	orbit, err := l.vessel.Orbit()
	if err != nil {
		return fmt.Errorf("vessel orbit: %w", err)
	}
	if l.body, err = orbit.Body(); err != nil {
		return fmt.Errorf("orbit body: %w", err)
	}
	if l.bodyFrame, err = l.body.ReferenceFrame(); err != nil {
		return fmt.Errorf("body reference frame: %w", err)
	}
	if l.flight, err = l.vessel.Flight(l.bodyFrame); err != nil {
		return fmt.Errorf("vessel flight: %w", err)
	}
	return nil
}

func (l *Link) frame(f core.Frame) (*spacecenter.ReferenceFrame, error) {
	if f != core.FrameBody {
		return nil, fmt.Errorf("unsupported reference frame %q", f)
	}
	return l.bodyFrame, nil
}

func toVector(t types.Tuple3[float64, float64, float64]) vecmath.Vector3 {
	return vecmath.New(t.A, t.B, t.C)
}

func fromVector(v vecmath.Vector3) types.Tuple3[float64, float64, float64] {
	return types.Tuple3[float64, float64, float64]{A: v.X, B: v.Y, C: v.Z}
}

func (l *Link) SampleVehicle(f core.Frame) (core.KinematicSample, error) {
	rf, err := l.frame(f)
	if err != nil {
		return core.KinematicSample{}, err
	}
	return sample(l.sc, l.vessel, l.flight, rf, true)
}

func (l *Link) SampleTarget(f core.Frame) (*core.KinematicSample, error) {
	rf, err := l.frame(f)
	if err != nil {
		return nil, err
	}
	target, err := l.sc.TargetVessel()
	if err != nil {
		return nil, fmt.Errorf("target vessel: %w", err)
	}
	if target == nil {
		return nil, nil
	}
	flight, err := target.Flight(rf)
	if err != nil {
		return nil, fmt.Errorf("target flight: %w", err)
	}
	s, err := sample(l.sc, target, flight, rf, false)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func sample(sc *spacecenter.SpaceCenter, v *spacecenter.Vessel, flight *spacecenter.Flight, rf *spacecenter.ReferenceFrame, withThrust bool) (core.KinematicSample, error) {
	var (
		s   core.KinematicSample
		err error
	)
	if s.Time, err = sc.UT(); err != nil {
		return s, fmt.Errorf("universal time: %w", err)
	}
	pos, err := v.Position(rf)
	if err != nil {
		return s, fmt.Errorf("position: %w", err)
	}
	vel, err := v.Velocity(rf)
	if err != nil {
		return s, fmt.Errorf("velocity: %w", err)
	}
	s.Position, s.Velocity = toVector(pos), toVector(vel)

	mass, err := v.Mass()
	if err != nil {
		return s, fmt.Errorf("mass: %w", err)
	}
	s.Mass = float64(mass)

	if s.SurfaceAltitude, err = flight.SurfaceAltitude(); err != nil {
		return s, fmt.Errorf("surface altitude: %w", err)
	}
	if s.VerticalSpeed, err = flight.VerticalSpeed(); err != nil {
		return s, fmt.Errorf("vertical speed: %w", err)
	}
	if s.Speed, err = flight.Speed(); err != nil {
		return s, fmt.Errorf("speed: %w", err)
	}
	if s.Latitude, err = flight.Latitude(); err != nil {
		return s, fmt.Errorf("latitude: %w", err)
	}
	if s.Longitude, err = flight.Longitude(); err != nil {
		return s, fmt.Errorf("longitude: %w", err)
	}

	if withThrust {
		thrust, err := v.Thrust()
		if err != nil {
			return s, fmt.Errorf("thrust: %w", err)
		}
		s.Thrust = float64(thrust)
	}
	return s, nil
}

func (l *Link) Environment() (core.EnvironmentConstants, error) {
	var env core.EnvironmentConstants

	g, err := l.body.SurfaceGravity()
	if err != nil {
		return env, fmt.Errorf("surface gravity: %w", err)
	}
	maxThrust, err := l.vessel.MaxThrust()
	if err != nil {
		return env, fmt.Errorf("max thrust: %w", err)
	}
	radius, err := l.body.EquatorialRadius()
	if err != nil {
		return env, fmt.Errorf("equatorial radius: %w", err)
	}
	name, err := l.body.Name()
	if err != nil {
		return env, fmt.Errorf("body name: %w", err)
	}

	env.SurfaceGravity = float64(g)
	env.MaxThrust = float64(maxThrust)
	env.BodyRadius = float64(radius)
	env.BodyName = name
	return env, nil
}

func (l *Link) GroundContact() ([]bool, error) {
	legs, err := l.parts.Legs()
	if err != nil {
		return nil, fmt.Errorf("legs: %w", err)
	}
	contact := make([]bool, 0, len(legs))
	for _, leg := range legs {
		grounded, err := leg.IsGrounded()
		if err != nil {
			return nil, fmt.Errorf("leg grounded: %w", err)
		}
		contact = append(contact, grounded)
	}
	return contact, nil
}

func (l *Link) SetThrottle(v float64) error {
	return l.control.SetThrottle(float32(v))
}

func (l *Link) EngageAutopilot() error {
	return l.autopilot.Engage()
}

func (l *Link) DisengageAutopilot() error {
	return l.autopilot.Disengage()
}

func (l *Link) SetAutopilotTarget(f core.Frame, dir vecmath.Vector3) error {
	rf, err := l.frame(f)
	if err != nil {
		return err
	}
	if err := l.autopilot.SetReferenceFrame(rf); err != nil {
		return err
	}
	return l.autopilot.SetTargetDirection(fromVector(dir))
}

func (l *Link) EnableAttitudeHold(on bool) error {
	return l.control.SetSAS(on)
}

func (l *Link) SetAttitudeHold(mode core.SASMode) error {
	switch mode {
	case core.SASRetrograde:
		return l.control.SetSASMode(spacecenter.SASMode_Retrograde)
	case core.SASRadialOut:
		return l.control.SetSASMode(spacecenter.SASMode_Radial)
	case core.SASOff:
		return l.control.SetSAS(false)
	}
	return nil
}

func (l *Link) SetGimbalLimit(limit float64) error {
	engines, err := l.parts.Engines()
	if err != nil {
		return fmt.Errorf("engines: %w", err)
	}
	for _, e := range engines {
		if err := e.SetGimbalLimit(float32(limit)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) ActivateNextStage() error {
	_, err := l.control.ActivateNextStage()
	return err
}

func (l *Link) SetSpeedModeSurface() error {
	return l.control.SetSpeedMode(spacecenter.SpeedMode_Surface)
}

func (l *Link) Describe() (vessel.Diagnostics, error) {
	d := vessel.Diagnostics{LinkType: "krpc", ServerVersion: l.version}

	var err error
	if d.VesselName, err = l.vessel.Name(); err != nil {
		return d, err
	}
	if d.BodyName, err = l.body.Name(); err != nil {
		return d, err
	}
	if d.Latitude, err = l.flight.Latitude(); err != nil {
		return d, err
	}
	if d.Longitude, err = l.flight.Longitude(); err != nil {
		return d, err
	}
	if target, err := l.sc.TargetVessel(); err == nil && target != nil {
		d.TargetName, _ = target.Name()
	}
	return d, nil
}

func (l *Link) Close() error {
	return l.client.Close()
}
