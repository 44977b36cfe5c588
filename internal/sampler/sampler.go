// Package sampler reads one consistent telemetry snapshot per control tick.
package sampler

import (
	"errors"
	"fmt"
	"math"

	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/pkg/core"
)

var (
	errNonPositiveMass = errors.New("non-positive mass")
	errStaleClock      = errors.New("telemetry clock not advancing")
)

// Config tunes the sampler.
type Config struct {
	Frame core.Frame
	// StaleTicks is how many consecutive samples may repeat the telemetry time before
	// the link is considered dead. Zero disables the check.
	StaleTicks int
	// ImpactSpeed replaces a zero TargetImpactSpeed reported by the link.
	ImpactSpeed float64
}

// Tick is the snapshot the rest of the tick works from.
type Tick struct {
	Vehicle core.KinematicSample
	Target  *core.KinematicSample
	Env     core.EnvironmentConstants
	Contact []bool
}

// GroundContact reports whether any contact sensor is triggered.
func (t Tick) GroundContact() bool {
	for _, c := range t.Contact {
		if c {
			return true
		}
	}
	return false
}

// Sampler is not safe for concurrent use; it belongs to the control loop.
type Sampler struct {
	tel vessel.Telemetry
	cfg Config

	lastTime float64
	stale    int
	sampled  bool
}

// New returns a sampler reading from tel.
func New(tel vessel.Telemetry, cfg Config) *Sampler {
	if cfg.Frame == "" {
		cfg.Frame = core.FrameBody
	}
	if cfg.ImpactSpeed == 0 {
		cfg.ImpactSpeed = core.DefaultTargetImpactSpeed
	}
	return &Sampler{tel: tel, cfg: cfg}
}

// Sample reads vehicle and target back-to-back, then the environment and contact sensors.
// Every failure is a *core.TelemetryUnavailableError.
func (s *Sampler) Sample() (Tick, error) {
	var (
		tick Tick
		err  error
	)

	tick.Vehicle, err = s.tel.SampleVehicle(s.cfg.Frame)
	if err != nil {
		return Tick{}, unavailable("sample vehicle", err)
	}
	tick.Target, err = s.tel.SampleTarget(s.cfg.Frame)
	if err != nil {
		return Tick{}, unavailable("sample target", err)
	}
	tick.Env, err = s.tel.Environment()
	if err != nil {
		return Tick{}, unavailable("environment", err)
	}
	tick.Contact, err = s.tel.GroundContact()
	if err != nil {
		return Tick{}, unavailable("ground contact", err)
	}

	if err := validate("vehicle", tick.Vehicle); err != nil {
		return Tick{}, err
	}
	if tick.Target != nil {
		if err := validate("target", *tick.Target); err != nil {
			return Tick{}, err
		}
	}
	if tick.Env.TargetImpactSpeed == 0 {
		tick.Env.TargetImpactSpeed = s.cfg.ImpactSpeed
	}
	if !finite(tick.Env.SurfaceGravity, tick.Env.MaxThrust, tick.Env.TargetImpactSpeed) {
		return Tick{}, unavailable("environment", fmt.Errorf("non-finite constants %+v", tick.Env))
	}

	if err := s.checkClock(tick.Vehicle.Time); err != nil {
		return Tick{}, err
	}
	return tick, nil
}

func (s *Sampler) checkClock(t float64) error {
	defer func() { s.lastTime, s.sampled = t, true }()
	if !s.sampled || t > s.lastTime {
		s.stale = 0
		return nil
	}
	s.stale++
	if s.cfg.StaleTicks > 0 && s.stale >= s.cfg.StaleTicks {
		return unavailable("telemetry clock", fmt.Errorf("%w: %d samples at t=%.3f", errStaleClock, s.stale, t))
	}
	return nil
}

func validate(what string, k core.KinematicSample) error {
	if !k.Position.IsFinite() || !k.Velocity.IsFinite() ||
		!finite(k.Mass, k.SurfaceAltitude, k.VerticalSpeed, k.Speed, k.Thrust, k.Time) {
		return unavailable("sample "+what, fmt.Errorf("non-finite value in %+v", k))
	}
	if k.Mass <= 0 {
		return unavailable("sample "+what, fmt.Errorf("%w: %g", errNonPositiveMass, k.Mass))
	}
	return nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func unavailable(op string, err error) error {
	return &core.TelemetryUnavailableError{Op: op, Err: err}
}
