// Package actuation delivers actuation commands to the vehicle link.
package actuation

import (
	"context"
	"log/slog"
	"time"

	"github.com/descentctl/lander/internal/clock"
	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/pkg/core"
)

// DefaultSASSettleDelay is the pause between enabling attitude hold and setting its mode.
const DefaultSASSettleDelay = 300 * time.Millisecond

// Dependencies holds the collaborators of a Sink.
type Dependencies struct {
	Actuator vessel.Actuator
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Sink applies the set fields of each command, in a fixed order:
// stage, gimbal, autopilot, pointing, attitude hold, throttle.
type Sink struct {
	deps   Dependencies
	frame  core.Frame
	settle time.Duration

	sasOn bool
}

// NewSink returns a sink pointing the autopilot in frame.
func NewSink(deps Dependencies, frame core.Frame, settle time.Duration) *Sink {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if frame == "" {
		frame = core.FrameBody
	}
	return &Sink{deps: deps, frame: frame, settle: settle}
}

// Apply sends cmd to the vehicle. The first failure stops the remaining fields and is
// returned as a *core.ActuationError.
func (s *Sink) Apply(ctx context.Context, cmd core.ActuationCommand) error {
	if cmd.Empty() {
		return nil
	}
	act := s.deps.Actuator

	if cmd.Stage {
		if err := act.ActivateNextStage(); err != nil {
			return &core.ActuationError{Op: "activate stage", Err: err}
		}
		s.deps.Logger.Info("stage activated")
	}

	if cmd.GimbalLimit != nil {
		if err := act.SetGimbalLimit(*cmd.GimbalLimit); err != nil {
			return &core.ActuationError{Op: "set gimbal limit", Err: err}
		}
	}

	switch cmd.Autopilot {
	case core.AutopilotEngage:
		if err := act.EngageAutopilot(); err != nil {
			return &core.ActuationError{Op: "engage autopilot", Err: err}
		}
	case core.AutopilotDisengage:
		if err := act.DisengageAutopilot(); err != nil {
			return &core.ActuationError{Op: "disengage autopilot", Err: err}
		}
	}

	if cmd.Pointing != nil {
		if err := act.SetAutopilotTarget(s.frame, *cmd.Pointing); err != nil {
			return &core.ActuationError{Op: "set autopilot target", Err: err}
		}
	}

	// throttle goes out before the attitude hold, whose settle delay would hold it back
	if cmd.Throttle != nil {
		if err := act.SetThrottle(*cmd.Throttle); err != nil {
			return &core.ActuationError{Op: "set throttle", Err: err}
		}
	}

	return s.applyAttitudeHold(ctx, cmd.SASMode)
}

func (s *Sink) applyAttitudeHold(ctx context.Context, mode core.SASMode) error {
	act := s.deps.Actuator

	switch mode {
	case core.SASUnset:
		return nil
	case core.SASOff:
		if err := act.EnableAttitudeHold(false); err != nil {
			return &core.ActuationError{Op: "disable attitude hold", Err: err}
		}
		s.sasOn = false
		return nil
	}

	if !s.sasOn {
		if err := act.EnableAttitudeHold(true); err != nil {
			return &core.ActuationError{Op: "enable attitude hold", Err: err}
		}
		s.sasOn = true
		// the hold rejects a mode change until it is running
		if err := s.deps.Clock.Sleep(ctx, s.settle); err != nil {
			return err
		}
	}
	if err := act.SetAttitudeHold(mode); err != nil {
		return &core.ActuationError{Op: "set attitude hold " + mode.String(), Err: err}
	}
	s.deps.Logger.Info("attitude hold set", "mode", mode.String())
	return nil
}

// CutThrottle sets the throttle to zero, ignoring everything else.
func (s *Sink) CutThrottle() error {
	if err := s.deps.Actuator.SetThrottle(0); err != nil {
		return &core.ActuationError{Op: "cut throttle", Err: err}
	}
	return nil
}
