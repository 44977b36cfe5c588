// Package convert maps flight records between pkg/core and the gorm tables.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/descentctl/lander/internal/geo"
	"github.com/descentctl/lander/internal/model"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
	"gorm.io/datatypes"
)

// steeringColumn is the JSON layout of TickState.Steering.
type steeringColumn struct {
	VelocityDir    *vecmath.Vector3 `json:"velocityDir,omitempty"`
	LineOfSightDir *vecmath.Vector3 `json:"lineOfSightDir,omitempty"`
	SteeringDir    *vecmath.Vector3 `json:"steeringDir,omitempty"`
	Fallback       string           `json:"fallback,omitempty"`
}

func vector(v vecmath.Vector3) model.Vector {
	return model.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToDescent converts a descent header. The ID is carried over so a backend can
// update an existing row.
func CoreToDescent(d *core.Descent) model.Descent {
	tuning := datatypes.JSON("{}")
	if len(d.Tuning) > 0 {
		tuning = toJSON(d.Tuning)
	}
	return model.Descent{
		ID:         d.ID,
		StartTime:  d.StartTime,
		VesselName: d.VesselName,
		TargetName: d.TargetName,
		BodyName:   d.BodyName,
		LinkType:   d.LinkType,
		Tuning:     tuning,
	}
}

// DescentToCore is the inverse of CoreToDescent.
func DescentToCore(m model.Descent) (core.Descent, error) {
	d := core.Descent{
		ID:         m.ID,
		StartTime:  m.StartTime,
		VesselName: m.VesselName,
		TargetName: m.TargetName,
		BodyName:   m.BodyName,
		LinkType:   m.LinkType,
	}
	if len(m.Tuning) > 0 {
		if err := json.Unmarshal(m.Tuning, &d.Tuning); err != nil {
			return d, fmt.Errorf("descent %d tuning: %w", m.ID, err)
		}
	}
	return d, nil
}

// CoreToTickState flattens a tick record into one row.
func CoreToTickState(r *core.TickRecord) model.TickState {
	v := r.Vehicle
	row := model.TickState{
		DescentID:       r.DescentID,
		Tick:            r.Tick,
		Time:            r.Time,
		Phase:           r.Phase.String(),
		Position:        vector(v.Position),
		Velocity:        vector(v.Velocity),
		Mass:            v.Mass,
		Altitude:        v.SurfaceAltitude,
		VerticalSpeed:   v.VerticalSpeed,
		Speed:           v.Speed,
		Thrust:          v.Thrust,
		Latitude:        v.Latitude,
		Longitude:       v.Longitude,
		Throttle:        r.Command.Throttle,
		BrakingAltitude: r.BrakingAltitude,
		StoppingEnergy:  r.StoppingEnergy,
		Command:         toJSON(r.Command),
		GroundContact:   r.GroundContact,
	}
	if r.VelocityDir != nil || r.LineOfSightDir != nil || r.SteeringDir != nil || r.SteeringFallback != "" {
		row.Steering = toJSON(steeringColumn{
			VelocityDir:    r.VelocityDir,
			LineOfSightDir: r.LineOfSightDir,
			SteeringDir:    r.SteeringDir,
			Fallback:       r.SteeringFallback,
		})
	}
	return row
}

// CoreToPhaseChange converts a transition record.
func CoreToPhaseChange(c *core.PhaseChange) model.PhaseChange {
	return model.PhaseChange{
		DescentID: c.DescentID,
		Tick:      c.Tick,
		Time:      c.Time,
		From:      c.From.String(),
		To:        c.To.String(),
		Altitude:  c.Altitude,
		Reason:    c.Reason,
	}
}

// CoreToReport converts a landing report. The touchdown site is taken from the report's
// latitude/longitude at the given altitude; track is the sampled ground track.
func CoreToReport(r *core.LandingReport, altitude float64, track []geo.LatLon) model.LandingReport {
	row := model.LandingReport{
		DescentID:              r.DescentID,
		EndTime:                r.EndTime,
		Outcome:                r.Outcome.String(),
		DurationMs:             r.Duration.Milliseconds(),
		Ticks:                  r.Ticks,
		TouchdownSpeed:         r.TouchdownSpeed,
		TouchdownVerticalSpeed: r.TouchdownVerticalSpeed,
		MissDistance:           r.MissDistance,
		SurfaceMissDistance:    r.SurfaceMissDistance,
		Error:                  r.Error,
	}
	if r.Ticks > 0 {
		if pt, err := geo.SitePoint(geo.LatLon{Lat: r.Latitude, Lon: r.Longitude}, altitude); err == nil {
			row.Touchdown = model.NewGeometry(pt.AsGeometry())
		}
	}
	if ls, err := geo.GroundTrack(track); err == nil && !ls.IsEmpty() {
		row.GroundTrack = model.NewGeometry(ls.AsGeometry())
	}
	return row
}

// ReportToCore is the inverse of CoreToReport.
func ReportToCore(m model.LandingReport) (core.LandingReport, error) {
	outcome, err := core.ParsePhase(m.Outcome)
	if err != nil {
		return core.LandingReport{}, fmt.Errorf("report for descent %d: %w", m.DescentID, err)
	}
	r := core.LandingReport{
		DescentID:              m.DescentID,
		EndTime:                m.EndTime,
		Outcome:                outcome,
		Duration:               time.Duration(m.DurationMs) * time.Millisecond,
		Ticks:                  m.Ticks,
		TouchdownSpeed:         m.TouchdownSpeed,
		TouchdownVerticalSpeed: m.TouchdownVerticalSpeed,
		MissDistance:           m.MissDistance,
		SurfaceMissDistance:    m.SurfaceMissDistance,
		Error:                  m.Error,
	}
	if pt, ok := m.Touchdown.AsPoint(); ok && !pt.IsEmpty() {
		site, _, err := geo.SiteFromPoint(pt)
		if err == nil {
			r.Latitude, r.Longitude = site.Lat, site.Lon
		}
	}
	return r, nil
}
