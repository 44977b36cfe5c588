// Package guidance runs the closed descent loop: sample, steer and estimate braking,
// step the phase machine, actuate, then publish the tick to the side channel.
package guidance

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/descentctl/lander/internal/actuation"
	"github.com/descentctl/lander/internal/braking"
	"github.com/descentctl/lander/internal/clock"
	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/internal/geo"
	"github.com/descentctl/lander/internal/phase"
	"github.com/descentctl/lander/internal/sampler"
	"github.com/descentctl/lander/internal/steering"
	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Vehicle is the part of a link the loop drives.
type Vehicle interface {
	vessel.Telemetry
	vessel.Actuator
}

// Publisher receives side-channel events. It must not block.
type Publisher interface {
	Publish(dispatcher.Event) error
}

// Dependencies holds all dependencies of the runner.
type Dependencies struct {
	Vehicle   Vehicle
	Clock     clock.Clock
	Logger    *slog.Logger
	Publisher Publisher
}

// Status is a snapshot of the loop for monitors and log context.
type Status struct {
	DescentID       uint       `json:"descentId"`
	Phase           core.Phase `json:"phase"`
	Tick            uint64     `json:"tick"`
	Altitude        float64    `json:"altitude"`
	VerticalSpeed   float64    `json:"verticalSpeed"`
	Speed           float64    `json:"speed"`
	Throttle        float64    `json:"throttle"`
	BrakingAltitude float64    `json:"brakingAltitude"`
	Updated         time.Time  `json:"updated"`
}

// Runner owns the link for the duration of one descent.
type Runner struct {
	deps    Dependencies
	cfg     Config
	law     steering.Law
	machine *phase.Machine
	sampler *sampler.Sampler
	sink    *actuation.Sink

	ticks uint64
	last  *sampler.Tick

	mu     sync.RWMutex
	status Status
}

// NewRunner wires a runner from its dependencies.
func NewRunner(deps Dependencies, cfg Config) *Runner {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Runner{
		deps:    deps,
		cfg:     cfg,
		law:     steering.New(cfg.LeadCoefficient),
		machine: phase.NewMachine(cfg.Phase),
		sampler: sampler.New(deps.Vehicle, sampler.Config{
			Frame:       cfg.Frame,
			StaleTicks:  cfg.StaleTicks,
			ImpactSpeed: cfg.ImpactSpeed,
		}),
		sink: actuation.NewSink(actuation.Dependencies{
			Actuator: deps.Vehicle,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		}, cfg.Frame, cfg.SASSettleDelay),
	}
}

// Status returns the latest loop snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LogAttrs exposes the live phase and tick as log attributes.
func (r *Runner) LogAttrs() []slog.Attr {
	st := r.Status()
	if st.Phase == 0 {
		return nil
	}
	return []slog.Attr{
		slog.String("phase", st.Phase.String()),
		slog.Uint64("tick", st.Tick),
	}
}

// Run flies one descent to a terminal phase. On a fatal error the throttle is cut, the
// phase becomes ABORTED and the error is returned wrapped alongside the report.
// Cancelling ctx aborts the descent.
func (r *Runner) Run(ctx context.Context, descent *core.Descent) (*core.LandingReport, error) {
	start := r.deps.Clock.Now()
	r.publish(dispatcher.Event{Kind: dispatcher.KindDescentStart, Timestamp: start, Descent: descent})
	r.setStatus(func(s *Status) { s.DescentID = descent.ID })

	res, err := r.machine.Begin()
	if err != nil {
		return nil, err
	}
	if err := r.sink.Apply(ctx, res.Command); err != nil {
		return r.abort(descent, start, err)
	}
	r.recordChanges(descent, res.Changes, 0)

	if err := r.deps.Clock.Sleep(ctx, r.cfg.IgnitionDelay); err != nil {
		return r.abort(descent, start, err)
	}

	entered := r.deps.Clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return r.abort(descent, start, err)
		}

		before := r.machine.Phase()
		if err := r.step(ctx, descent); err != nil {
			return r.abort(descent, start, err)
		}

		current := r.machine.Phase()
		if current.Terminal() {
			break
		}

		now := r.deps.Clock.Now()
		if current != before {
			entered = now
		} else if limit := r.cfg.timeout(current); limit > 0 && now.Sub(entered) > limit {
			return r.abort(descent, start, &core.TelemetryTimeoutError{Phase: current, Waited: now.Sub(entered)})
		}

		interval := r.cfg.TickInterval
		if current.Waiting() {
			interval = r.cfg.PollInterval
		}
		if err := r.deps.Clock.Sleep(ctx, interval); err != nil {
			return r.abort(descent, start, err)
		}
	}

	if err := r.sink.CutThrottle(); err != nil {
		r.deps.Logger.Warn("throttle cut after touchdown failed", "error", err)
	}

	report := r.report(descent, start, r.machine.Phase(), nil)
	r.deps.Logger.Info("descent complete",
		"outcome", report.Outcome.String(),
		"duration", report.Duration,
		"touchdownSpeed", report.TouchdownSpeed,
		"missDistance", report.MissDistance,
	)
	r.publish(dispatcher.Event{Kind: dispatcher.KindDescentEnd, Timestamp: report.EndTime, Report: report})
	return report, nil
}

func (r *Runner) step(ctx context.Context, descent *core.Descent) error {
	tick, err := r.sampler.Sample()
	if err != nil {
		return err
	}
	r.ticks++
	r.last = &tick

	current := r.machine.Phase()
	in := phase.Input{Vehicle: tick.Vehicle, GroundContact: tick.GroundContact()}

	var (
		st  steering.Result
		est braking.Estimate
	)
	// Only powered descent points along the steering direction; the later powered phases
	// hold attitude and keep the braking throttle without a target.
	if current.Powered() {
		if current == core.PhasePoweredDescent && tick.Target == nil {
			return fmt.Errorf("steering in %s: %w", current, core.ErrNoTargetSelected)
		}
		st, est = r.evaluate(tick)
		in.Steering, in.Braking = st, est
	}

	res := r.machine.Step(in)
	if err := r.sink.Apply(ctx, res.Command); err != nil {
		return err
	}
	r.recordChanges(descent, res.Changes, tick.Vehicle.SurfaceAltitude)

	rec := &core.TickRecord{
		DescentID:     descent.ID,
		Tick:          r.ticks,
		Time:          r.deps.Clock.Now(),
		Phase:         res.Phase,
		Vehicle:       tick.Vehicle,
		Target:        tick.Target,
		Environment:   tick.Env,
		Command:       res.Command,
		GroundContact: in.GroundContact,
	}
	if current.Powered() {
		rec.VelocityDir = st.VelocityDir
		rec.LineOfSightDir = st.LineOfSightDir
		if st.Valid {
			dir := st.Direction
			rec.SteeringDir = &dir
		}
		rec.SteeringFallback = string(st.Fallback)
		rec.BrakingAltitude = finiteOr(est.MinAltitude, -1)
		rec.StoppingEnergy = est.Energy
		if st.Fallback != steering.FallbackNone {
			r.deps.Logger.Debug("steering fallback", "fallback", string(st.Fallback))
		}
	}
	r.publish(dispatcher.Event{Kind: dispatcher.KindTick, Timestamp: rec.Time, Tick: rec})

	r.setStatus(func(s *Status) {
		s.Phase = res.Phase
		s.Tick = r.ticks
		s.Altitude = tick.Vehicle.SurfaceAltitude
		s.VerticalSpeed = tick.Vehicle.VerticalSpeed
		s.Speed = tick.Vehicle.Speed
		s.BrakingAltitude = rec.BrakingAltitude
		if res.Command.Throttle != nil {
			s.Throttle = *res.Command.Throttle
		}
		s.Updated = rec.Time
	})
	return nil
}

// evaluate runs the steering law and the braking estimator side by side. Steering is
// skipped when there is no target.
func (r *Runner) evaluate(tick sampler.Tick) (steering.Result, braking.Estimate) {
	var (
		g   errgroup.Group
		st  steering.Result
		est braking.Estimate
	)
	if tick.Target != nil {
		g.Go(func() error {
			los := steering.LineOfSight(tick.Vehicle.Position, tick.Target.Position)
			st = r.law.Steer(tick.Vehicle.Velocity, los)
			return nil
		})
	}
	g.Go(func() error {
		est = braking.Compute(braking.Input{
			Mass:        tick.Vehicle.Mass,
			Altitude:    tick.Vehicle.SurfaceAltitude,
			Speed:       tick.Vehicle.Speed,
			Gravity:     tick.Env.SurfaceGravity,
			MaxThrust:   tick.Env.MaxThrust,
			ImpactSpeed: tick.Env.TargetImpactSpeed,
		})
		return nil
	})
	_ = g.Wait()
	return st, est
}

func (r *Runner) abort(descent *core.Descent, start time.Time, cause error) (*core.LandingReport, error) {
	from := r.machine.Phase()
	res := r.machine.Abort(cause.Error())
	if err := r.sink.CutThrottle(); err != nil {
		r.deps.Logger.Error("throttle cut on abort failed", "error", err)
	}
	altitude := 0.0
	if r.last != nil {
		altitude = r.last.Vehicle.SurfaceAltitude
	}
	r.recordChanges(descent, res.Changes, altitude)
	r.setStatus(func(s *Status) {
		s.Phase = res.Phase
		s.Throttle = 0
	})

	report := r.report(descent, start, res.Phase, cause)
	r.deps.Logger.Error("descent aborted", "from", from.String(), "error", cause)
	r.publish(dispatcher.Event{Kind: dispatcher.KindDescentEnd, Timestamp: report.EndTime, Report: report})
	return report, fmt.Errorf("descent aborted in %s: %w", from, cause)
}

func (r *Runner) recordChanges(descent *core.Descent, changes []phase.Change, altitude float64) {
	for _, c := range changes {
		r.deps.Logger.Info("phase change",
			"from", c.From.String(),
			"to", c.To.String(),
			"reason", c.Reason,
			"altitude", altitude,
		)
		r.publish(dispatcher.Event{
			Kind: dispatcher.KindPhaseChange,
			Change: &core.PhaseChange{
				DescentID: descent.ID,
				Tick:      r.ticks,
				Time:      r.deps.Clock.Now(),
				From:      c.From,
				To:        c.To,
				Altitude:  altitude,
				Reason:    c.Reason,
			},
		})
	}
	if len(changes) > 0 {
		r.setStatus(func(s *Status) { s.Phase = changes[len(changes)-1].To })
	}
}

func (r *Runner) report(descent *core.Descent, start time.Time, outcome core.Phase, cause error) *core.LandingReport {
	end := r.deps.Clock.Now()
	rep := &core.LandingReport{
		DescentID: descent.ID,
		EndTime:   end,
		Outcome:   outcome,
		Duration:  end.Sub(start),
		Ticks:     r.ticks,
	}
	if cause != nil {
		rep.Error = cause.Error()
	}
	if r.last == nil {
		return rep
	}

	v := r.last.Vehicle
	rep.TouchdownSpeed = v.Speed
	rep.TouchdownVerticalSpeed = v.VerticalSpeed
	rep.Latitude, rep.Longitude = v.Latitude, v.Longitude
	if t := r.last.Target; t != nil {
		rep.MissDistance = v.Position.Sub(t.Position).Len()
		if d, err := geo.SurfaceDistance(
			geo.LatLon{Lat: v.Latitude, Lon: v.Longitude},
			geo.LatLon{Lat: t.Latitude, Lon: t.Longitude},
			r.last.Env.BodyRadius,
		); err == nil {
			rep.SurfaceMissDistance = d
		}
	}
	return rep
}

func (r *Runner) publish(e dispatcher.Event) {
	if r.deps.Publisher == nil {
		return
	}
	if err := r.deps.Publisher.Publish(e); err != nil {
		r.deps.Logger.Debug("side channel", "kind", string(e.Kind), "error", err)
	}
}

func (r *Runner) setStatus(update func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.status)
}

func finiteOr(v, fallback float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fallback
	}
	return v
}
