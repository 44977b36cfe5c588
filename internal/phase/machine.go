// Package phase is the discrete descent controller. It selects which steering and
// throttle policy is active and emits the actuation command for each tick.
package phase

import (
	"fmt"

	"github.com/descentctl/lander/internal/braking"
	"github.com/descentctl/lander/internal/steering"
	"github.com/descentctl/lander/pkg/core"
)

// Input is the per-tick view the machine decides on.
type Input struct {
	Vehicle       core.KinematicSample
	GroundContact bool
	Steering      steering.Result
	Braking       braking.Estimate
}

// Change records one phase transition and why it happened.
type Change struct {
	From   core.Phase
	To     core.Phase
	Reason string
}

// Result is what one Step produced.
type Result struct {
	Phase   core.Phase
	Command core.ActuationCommand
	Changes []Change
}

// Throttle is the powered-descent throttle policy: full braking below the braking
// altitude unless the vehicle is already climbing, otherwise a low approach throttle.
func Throttle(h float64, est braking.Estimate, verticalSpeed float64, cfg Config) float64 {
	if est.ShouldBrake(h) {
		if verticalSpeed > 0 {
			return 0
		}
		return cfg.BrakingThrottle
	}
	return cfg.LowThrottle
}

// Transition is the pure transition function. Threshold crossings cascade inside one
// call in phase order, and the returned phase is never lower than p.
func Transition(p core.Phase, in Input, cfg Config) (core.Phase, core.ActuationCommand, []Change) {
	var (
		cmd     core.ActuationCommand
		changes []Change
	)
	move := func(to core.Phase, reason string) {
		changes = append(changes, Change{From: p, To: to, Reason: reason})
		p = to
	}
	h := in.Vehicle.SurfaceAltitude

	switch p {
	case core.PhaseStaging:
		if in.Vehicle.Thrust > 0 {
			move(core.PhaseAscentWait, "ignition confirmed")
		}
		return p, cmd, changes
	case core.PhaseAscentWait:
		if in.Vehicle.Thrust == 0 {
			cmd.Stage = true
			move(core.PhaseFreefallWait, "ascent burn complete")
		}
		return p, cmd, changes
	case core.PhaseFreefallWait:
		if in.Vehicle.VerticalSpeed < cfg.FreefallVerticalSpeed {
			cmd.Stage = true
			cmd.Autopilot = core.AutopilotEngage
			move(core.PhasePoweredDescent, fmt.Sprintf("descending at %.2f m/s", in.Vehicle.VerticalSpeed))
		}
		return p, cmd, changes
	}

	if !p.Powered() {
		return p, cmd, nil
	}

	if in.GroundContact || h <= cfg.TouchdownAltitude {
		reason := "ground contact"
		if !in.GroundContact {
			reason = fmt.Sprintf("surface altitude %.2f m", h)
		}
		cmd = cmd.WithThrottle(0)
		move(core.PhaseTouchdown, reason)
		return p, cmd, changes
	}

	cmd = cmd.WithThrottle(Throttle(h, in.Braking, in.Vehicle.VerticalSpeed, cfg))

	if p == core.PhasePoweredDescent {
		if h < cfg.GimbalAltitude {
			cmd = cmd.WithGimbalLimit(cfg.GimbalLimit)
			cmd.Autopilot = core.AutopilotDisengage
			cmd.SASMode = core.SASRetrograde
			move(core.PhaseGimbalLimited, fmt.Sprintf("below %.0f m", cfg.GimbalAltitude))
		} else if in.Steering.Valid {
			cmd = cmd.WithPointing(in.Steering.Direction)
		}
	}

	if p == core.PhaseGimbalLimited && h < cfg.UprightAltitude {
		cmd.SASMode = core.SASRadialOut
		move(core.PhaseTerminalUpright, fmt.Sprintf("below %.0f m", cfg.UprightAltitude))
	}

	return p, cmd, changes
}

// Machine carries the single piece of cross-tick state, the current phase.
type Machine struct {
	cfg   Config
	phase core.Phase
}

// NewMachine returns a machine that has not begun.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Phase returns the current phase; zero before Begin.
func (m *Machine) Phase() core.Phase {
	return m.phase
}

// Config returns the machine's tuning.
func (m *Machine) Config() Config {
	return m.cfg
}

// Begin enters STAGING and issues the first stage command.
func (m *Machine) Begin() (Result, error) {
	if m.phase != 0 {
		return Result{Phase: m.phase}, fmt.Errorf("descent already begun in %s", m.phase)
	}
	m.phase = core.PhaseStaging
	return Result{
		Phase:   m.phase,
		Command: core.ActuationCommand{Stage: true},
		Changes: []Change{{From: 0, To: core.PhaseStaging, Reason: "begin"}},
	}, nil
}

// Step advances the machine by one tick.
func (m *Machine) Step(in Input) Result {
	if m.phase == 0 || m.phase.Terminal() {
		return Result{Phase: m.phase}
	}
	next, cmd, changes := Transition(m.phase, in, m.cfg)
	if next < m.phase {
		// never re-enter a phase once left
		next, changes = m.phase, nil
	}
	m.phase = next
	return Result{Phase: next, Command: cmd, Changes: changes}
}

// Abort moves to ABORTED from any non-terminal phase and cuts the throttle.
func (m *Machine) Abort(reason string) Result {
	cmd := core.ActuationCommand{}.WithThrottle(0)
	if m.phase.Terminal() {
		return Result{Phase: m.phase, Command: cmd}
	}
	from := m.phase
	m.phase = core.PhaseAborted
	return Result{
		Phase:   m.phase,
		Command: cmd,
		Changes: []Change{{From: from, To: core.PhaseAborted, Reason: reason}},
	}
}
