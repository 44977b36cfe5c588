package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/pkg/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_Tick(t *testing.T) {
	e := New()
	rec := &core.TickRecord{
		Phase:           core.PhasePoweredDescent,
		Vehicle:         core.KinematicSample{SurfaceAltitude: 1500, VerticalSpeed: -40, Speed: 41, Mass: 2900},
		BrakingAltitude: 900,
		Command:         core.ActuationCommand{}.WithThrottle(1),
	}
	require.NoError(t, e.Handle(dispatcher.Event{Kind: dispatcher.KindTick, Tick: rec}))
	require.NoError(t, e.Handle(dispatcher.Event{Kind: dispatcher.KindTick, Tick: rec}))

	assert.Equal(t, 1500.0, testutil.ToFloat64(e.altitude))
	assert.Equal(t, -40.0, testutil.ToFloat64(e.verticalSpeed))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.throttle))
	assert.Equal(t, 900.0, testutil.ToFloat64(e.brakingAltitude))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.phase.WithLabelValues("POWERED_DESCENT")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.phase.WithLabelValues("STAGING")))
}

func TestHandle_PhaseChangeAndEnd(t *testing.T) {
	e := New()
	require.NoError(t, e.Handle(dispatcher.Event{Kind: dispatcher.KindPhaseChange, Change: &core.PhaseChange{
		From: core.PhaseTerminalUpright, To: core.PhaseTouchdown,
	}}))
	require.NoError(t, e.Handle(dispatcher.Event{Kind: dispatcher.KindDescentEnd, Report: &core.LandingReport{
		Outcome: core.PhaseTouchdown, TouchdownSpeed: 7.7,
	}}))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.transitions.WithLabelValues("TERMINAL_UPRIGHT", "TOUCHDOWN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.outcomes.WithLabelValues("TOUCHDOWN")))
	assert.Equal(t, 7.7, testutil.ToFloat64(e.touchdownSpeed))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.phase.WithLabelValues("TOUCHDOWN")))
}

func TestHandler_Exposition(t *testing.T) {
	e := New()
	require.NoError(t, e.Handle(dispatcher.Event{Kind: dispatcher.KindTick, Tick: &core.TickRecord{
		Phase:   core.PhaseAscentWait,
		Vehicle: core.KinematicSample{SurfaceAltitude: 8000},
	}}))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "lander_altitude_meters 8000")
	assert.Contains(t, string(body), `lander_phase{phase="ASCENT_WAIT"} 1`)
}
