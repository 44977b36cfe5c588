package v1

import (
	"math"

	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
)

// Columns names the fields of each tick row, in order.
var Columns = []string{
	"tick", "offset", "phase",
	"x", "y", "z", "vx", "vy", "vz",
	"mass", "altitude", "verticalSpeed", "speed", "thrust",
	"throttle", "brakingAltitude", "groundContact",
}

// FlightData is everything recorded for one descent.
type FlightData struct {
	Descent      core.Descent
	Ticks        []core.TickRecord
	PhaseChanges []core.PhaseChange
	Report       *core.LandingReport
}

// Build creates an Export from the recorded flight.
func Build(data *FlightData) Export {
	d := data.Descent
	export := Export{
		FormatVersion: FormatVersion,
		Descent: Descent{
			ID:         d.ID,
			StartTime:  d.StartTime,
			VesselName: d.VesselName,
			TargetName: d.TargetName,
			BodyName:   d.BodyName,
			LinkType:   d.LinkType,
			Tuning:     d.Tuning,
		},
		Columns:      Columns,
		Ticks:        make([][]float64, 0, len(data.Ticks)),
		Steering:     make([]Steering, 0),
		PhaseChanges: make([]PhaseChange, 0, len(data.PhaseChanges)),
		Report:       data.Report,
	}

	for i := range data.Ticks {
		rec := &data.Ticks[i]
		export.Ticks = append(export.Ticks, tickRow(d, rec))
		if s, ok := steeringOf(rec); ok {
			export.Steering = append(export.Steering, s)
		}
	}

	for _, c := range data.PhaseChanges {
		export.PhaseChanges = append(export.PhaseChanges, PhaseChange{
			Tick:     c.Tick,
			Offset:   offset(d, c.Time.Sub(d.StartTime).Seconds()),
			From:     c.From.String(),
			To:       c.To.String(),
			Altitude: round(c.Altitude, 2),
			Reason:   c.Reason,
		})
	}
	return export
}

func tickRow(d core.Descent, rec *core.TickRecord) []float64 {
	v := rec.Vehicle
	throttle := -1.0
	if rec.Command.Throttle != nil {
		throttle = *rec.Command.Throttle
	}
	contact := 0.0
	if rec.GroundContact {
		contact = 1
	}
	return []float64{
		float64(rec.Tick),
		offset(d, rec.Time.Sub(d.StartTime).Seconds()),
		float64(rec.Phase),
		round(v.Position.X, 3), round(v.Position.Y, 3), round(v.Position.Z, 3),
		round(v.Velocity.X, 3), round(v.Velocity.Y, 3), round(v.Velocity.Z, 3),
		round(v.Mass, 1),
		round(v.SurfaceAltitude, 2),
		round(v.VerticalSpeed, 3),
		round(v.Speed, 3),
		round(v.Thrust, 1),
		round(throttle, 4),
		round(rec.BrakingAltitude, 2),
		contact,
	}
}

func steeringOf(rec *core.TickRecord) (Steering, bool) {
	if rec.VelocityDir == nil && rec.LineOfSightDir == nil && rec.SteeringDir == nil {
		return Steering{}, false
	}
	return Steering{
		Tick:        rec.Tick,
		Velocity:    triple(rec.VelocityDir),
		LineOfSight: triple(rec.LineOfSightDir),
		Direction:   triple(rec.SteeringDir),
		Fallback:    rec.SteeringFallback,
	}, true
}

func triple(v *vecmath.Vector3) []float64 {
	if v == nil {
		return nil
	}
	return []float64{round(v.X, 5), round(v.Y, 5), round(v.Z, 5)}
}

// offset drops negative offsets from records taken before the descent header time.
func offset(d core.Descent, seconds float64) float64 {
	if d.StartTime.IsZero() || seconds < 0 {
		return 0
	}
	return round(seconds, 3)
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
