// Package sim is a point-mass vehicle on a flat, airless surface. It implements the
// vessel link and a virtual clock: sleeping on the clock advances the physics.
//
// The frame is surface-fixed with Z up and the origin on the ground at the launch site.
// Latitude and longitude are derived from X/Y on a sphere of Config.BodyRadius.
package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
)

const (
	stepSize = 10 * time.Millisecond
	g0       = 9.80665
)

var errClosed = errors.New("sim link closed")

// Config describes the simulated vehicle, its stages and the body it flies over.
type Config struct {
	BodyName   string  `json:"bodyName"`
	BodyRadius float64 `json:"bodyRadius"`
	Gravity    float64 `json:"gravity"`

	LaunchMass    float64 `json:"launchMass"`
	BoosterMass   float64 `json:"boosterMass"` // dropped by the second stage
	BoosterThrust float64 `json:"boosterThrust"`
	BoosterBurn   float64 `json:"boosterBurn"` // seconds
	LaunchTilt    float64 `json:"launchTilt"`  // degrees from vertical, toward -X

	EngineThrust float64 `json:"engineThrust"`
	EngineIsp    float64 `json:"engineIsp"`
	DryMass      float64 `json:"dryMass"`

	Target   vecmath.Vector3 `json:"target"`
	Legs     int             `json:"legs"`
	StartUT  float64         `json:"startUT"`
	Epoch    time.Time       `json:"epoch"`
	VesselID string          `json:"vesselId"`
}

// DefaultConfig is a small hopper on a Kerbin-sized body.
func DefaultConfig() Config {
	return Config{
		BodyName:      "Kerbin",
		BodyRadius:    600000,
		Gravity:       9.81,
		LaunchMass:    4000,
		BoosterMass:   1000,
		BoosterThrust: 100000,
		BoosterBurn:   15,
		LaunchTilt:    0.5,
		EngineThrust:  60000,
		EngineIsp:     300,
		DryMass:       2000,
		Target:        vecmath.New(30, 0, 0),
		Legs:          4,
		StartUT:       1000,
		Epoch:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VesselID:      "hopper",
	}
}

// Sim is safe for concurrent use.
type Sim struct {
	cfg Config

	mu        sync.Mutex
	elapsed   time.Duration
	pos       vecmath.Vector3
	vel       vecmath.Vector3
	mass      float64
	stage     int
	throttle  float64
	autopilot bool
	pointing  vecmath.Vector3
	sas       bool
	sasMode   core.SASMode
	gimbal    float64
	noTarget  bool
	closed    bool
	ignition  time.Duration

	// Stages counts ActivateNextStage calls.
	stages int
}

var (
	_ vessel.Link               = (*Sim)(nil)
	_ vessel.Describer          = (*Sim)(nil)
	_ vessel.SurfaceSpeedSetter = (*Sim)(nil)
)

// New returns a vehicle sitting on the pad with the throttle at full.
func New(cfg Config) *Sim {
	return &Sim{
		cfg:      cfg,
		mass:     cfg.LaunchMass,
		throttle: 1,
		pointing: vecmath.New(0, 0, 1),
		gimbal:   1,
	}
}

// ClearTarget deselects the target.
func (s *Sim) ClearTarget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noTarget = true
}

// Stages returns how many times the next stage was activated.
func (s *Sim) Stages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages
}

// Throttle returns the commanded throttle.
func (s *Sim) Throttle() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.throttle
}

// Position returns the current vehicle position.
func (s *Sim) Position() vecmath.Vector3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Now is the virtual time.
func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Epoch.Add(s.elapsed)
}

// Sleep advances the simulation by d.
func (s *Sim) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for d > 0 {
		h := stepSize
		if d < h {
			h = d
		}
		s.integrate(h.Seconds())
		s.elapsed += h
		d -= h
	}
	return nil
}

func (s *Sim) boosterBurning() bool {
	return s.stage == 1 && (s.elapsed-s.ignition).Seconds() < s.cfg.BoosterBurn
}

func (s *Sim) thrust() float64 {
	switch {
	case s.boosterBurning():
		return s.cfg.BoosterThrust
	case s.stage >= 3 && s.mass > s.cfg.DryMass:
		return s.cfg.EngineThrust * s.throttle
	}
	return 0
}

func (s *Sim) maxThrust() float64 {
	switch {
	case s.boosterBurning():
		return s.cfg.BoosterThrust
	case s.stage >= 3:
		return s.cfg.EngineThrust
	}
	return 0
}

func (s *Sim) thrustDirection() vecmath.Vector3 {
	up := vecmath.New(0, 0, 1)
	if s.stage < 3 {
		tilt := s.cfg.LaunchTilt * math.Pi / 180
		return vecmath.New(math.Sin(tilt), 0, math.Cos(tilt))
	}
	if s.autopilot {
		return s.pointing
	}
	if s.sas && s.sasMode == core.SASRetrograde {
		if d, err := s.vel.Neg().Normalize(); err == nil && s.vel.Len() > 0.1 {
			return d
		}
	}
	return up
}

func (s *Sim) integrate(h float64) {
	thrust := s.thrust()
	if s.stage >= 3 && thrust > 0 {
		s.mass = math.Max(s.cfg.DryMass, s.mass-thrust/(s.cfg.EngineIsp*g0)*h)
	}

	acc := s.thrustDirection().Scale(thrust / s.mass).Sub(vecmath.New(0, 0, s.cfg.Gravity))
	if s.pos.Z <= 0 && acc.Z <= 0 && s.vel.Z <= 0 {
		s.pos.Z, s.vel = 0, vecmath.Vector3{}
		return
	}
	s.vel = s.vel.Add(acc.Scale(h))
	s.pos = s.pos.Add(s.vel.Scale(h))
	if s.pos.Z < 0 {
		s.pos.Z, s.vel = 0, vecmath.Vector3{}
	}
}

func (s *Sim) latLon(p vecmath.Vector3) (float64, float64) {
	deg := 180 / (math.Pi * s.cfg.BodyRadius)
	return p.Y * deg, p.X * deg
}

func (s *Sim) SampleVehicle(_ core.Frame) (core.KinematicSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.KinematicSample{}, errClosed
	}
	lat, lon := s.latLon(s.pos)
	return core.KinematicSample{
		Time:            s.cfg.StartUT + s.elapsed.Seconds(),
		Position:        s.pos,
		Velocity:        s.vel,
		Mass:            s.mass,
		SurfaceAltitude: s.pos.Z,
		VerticalSpeed:   s.vel.Z,
		Speed:           s.vel.Len(),
		Thrust:          s.thrust(),
		Latitude:        lat,
		Longitude:       lon,
	}, nil
}

func (s *Sim) SampleTarget(_ core.Frame) (*core.KinematicSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.noTarget {
		return nil, nil
	}
	lat, lon := s.latLon(s.cfg.Target)
	return &core.KinematicSample{
		Time:            s.cfg.StartUT + s.elapsed.Seconds(),
		Position:        s.cfg.Target,
		Mass:            500,
		SurfaceAltitude: s.cfg.Target.Z,
		Latitude:        lat,
		Longitude:       lon,
	}, nil
}

func (s *Sim) Environment() (core.EnvironmentConstants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.EnvironmentConstants{}, errClosed
	}
	return core.EnvironmentConstants{
		SurfaceGravity: s.cfg.Gravity,
		MaxThrust:      s.maxThrust(),
		BodyRadius:     s.cfg.BodyRadius,
		BodyName:       s.cfg.BodyName,
	}, nil
}

func (s *Sim) GroundContact() ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	contact := make([]bool, s.cfg.Legs)
	grounded := s.pos.Z <= 0 && s.elapsed > 0 && s.stage >= 3
	for i := range contact {
		contact[i] = grounded
	}
	return contact, nil
}

func (s *Sim) command(apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	apply()
	return nil
}

func (s *Sim) SetThrottle(v float64) error {
	return s.command(func() { s.throttle = math.Max(0, math.Min(1, v)) })
}

func (s *Sim) EngageAutopilot() error {
	return s.command(func() { s.autopilot = true })
}

func (s *Sim) DisengageAutopilot() error {
	return s.command(func() { s.autopilot = false })
}

func (s *Sim) SetAutopilotTarget(_ core.Frame, dir vecmath.Vector3) error {
	d, err := dir.Normalize()
	if err != nil {
		return err
	}
	return s.command(func() { s.pointing = d })
}

func (s *Sim) EnableAttitudeHold(on bool) error {
	return s.command(func() { s.sas = on })
}

func (s *Sim) SetAttitudeHold(mode core.SASMode) error {
	return s.command(func() {
		if !s.sas {
			return
		}
		s.sasMode = mode
	})
}

func (s *Sim) SetGimbalLimit(limit float64) error {
	return s.command(func() { s.gimbal = limit })
}

func (s *Sim) ActivateNextStage() error {
	return s.command(func() {
		s.stages++
		s.stage++
		switch s.stage {
		case 1:
			s.ignition = s.elapsed
		case 2:
			s.mass -= s.cfg.BoosterMass
		}
	})
}

func (s *Sim) SetSpeedModeSurface() error {
	return s.command(func() {})
}

func (s *Sim) Describe() (vessel.Diagnostics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lat, lon := s.latLon(s.pos)
	return vessel.Diagnostics{
		LinkType:      "sim",
		ServerVersion: "sim",
		VesselName:    s.cfg.VesselID,
		TargetName:    "target",
		BodyName:      s.cfg.BodyName,
		Latitude:      lat,
		Longitude:     lon,
	}, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
