package v1

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBuild_Empty(t *testing.T) {
	export := Build(&FlightData{Descent: core.Descent{ID: 1, VesselName: "hopper"}})

	assert.Equal(t, FormatVersion, export.FormatVersion)
	assert.Equal(t, "hopper", export.Descent.VesselName)
	assert.NotNil(t, export.Ticks)
	assert.NotNil(t, export.Steering)
	assert.NotNil(t, export.PhaseChanges)
	assert.Nil(t, export.Report)
}

func TestBuild_TickRows(t *testing.T) {
	dir := vecmath.New(0, 0.6, 0.8)
	data := &FlightData{
		Descent: core.Descent{ID: 1, StartTime: start},
		Ticks: []core.TickRecord{
			{
				Tick:  1,
				Time:  start.Add(1500 * time.Millisecond),
				Phase: core.PhaseAscentWait,
				Vehicle: core.KinematicSample{
					Position:        vecmath.New(1.23456, 0, 100),
					SurfaceAltitude: 100,
				},
			},
			{
				Tick:            2,
				Time:            start.Add(2 * time.Second),
				Phase:           core.PhasePoweredDescent,
				SteeringDir:     &dir,
				BrakingAltitude: 981.2649,
				Command:         core.ActuationCommand{}.WithThrottle(0.07),
			},
		},
	}

	export := Build(data)
	require.Len(t, export.Ticks, 2)
	require.Len(t, export.Ticks[0], len(Columns))

	first := export.Ticks[0]
	assert.Equal(t, 1.0, first[0])
	assert.Equal(t, 1.5, first[1])
	assert.Equal(t, float64(core.PhaseAscentWait), first[2])
	assert.Equal(t, 1.235, first[3])
	assert.Equal(t, -1.0, first[14], "no throttle command")

	second := export.Ticks[1]
	assert.Equal(t, 0.07, second[14])
	assert.Equal(t, 981.26, second[15])

	require.Len(t, export.Steering, 1)
	assert.Equal(t, uint64(2), export.Steering[0].Tick)
	assert.Equal(t, []float64{0, 0.6, 0.8}, export.Steering[0].Direction)
	assert.Nil(t, export.Steering[0].Velocity)
}

func TestBuild_PhaseChangesAndReport(t *testing.T) {
	report := &core.LandingReport{DescentID: 1, Outcome: core.PhaseTouchdown}
	export := Build(&FlightData{
		Descent: core.Descent{ID: 1, StartTime: start},
		PhaseChanges: []core.PhaseChange{
			{Tick: 0, Time: start, From: 0, To: core.PhaseStaging, Reason: "begin"},
			{Tick: 700, Time: start.Add(14 * time.Second), From: core.PhaseFreefallWait, To: core.PhasePoweredDescent, Altitude: 4321.987},
		},
		Report: report,
	})

	require.Len(t, export.PhaseChanges, 2)
	assert.Equal(t, "STAGING", export.PhaseChanges[0].To)
	assert.Equal(t, 14.0, export.PhaseChanges[1].Offset)
	assert.Equal(t, 4321.99, export.PhaseChanges[1].Altitude)
	assert.Same(t, report, export.Report)

	raw, err := json.Marshal(export)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"outcome":"TOUCHDOWN"`)
}

func TestRound_NonFinite(t *testing.T) {
	assert.Equal(t, -1.0, round(math.Inf(1), 2))
	assert.Equal(t, -1.0, round(math.NaN(), 2))
}
