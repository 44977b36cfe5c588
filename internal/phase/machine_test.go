package phase

import (
	"math"
	"math/rand"
	"testing"

	"github.com/descentctl/lander/internal/braking"
	"github.com/descentctl/lander/internal/steering"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poweredInput(h, vz float64, minAlt float64) Input {
	dir := vecmath.New(0, 0, 1)
	return Input{
		Vehicle: core.KinematicSample{
			SurfaceAltitude: h,
			VerticalSpeed:   vz,
			Speed:           math.Abs(vz),
			Mass:            1000,
			Thrust:          10000,
		},
		Steering: steering.Result{Direction: dir, Valid: true},
		Braking:  braking.Estimate{MinAltitude: minAlt},
	}
}

func throttleOf(t *testing.T, cmd core.ActuationCommand) float64 {
	t.Helper()
	require.NotNil(t, cmd.Throttle, "command carries no throttle")
	return *cmd.Throttle
}

func TestBegin(t *testing.T) {
	m := NewMachine(DefaultConfig())
	assert.Equal(t, core.Phase(0), m.Phase())

	res, err := m.Begin()
	require.NoError(t, err)
	assert.Equal(t, core.PhaseStaging, res.Phase)
	assert.True(t, res.Command.Stage)

	_, err = m.Begin()
	assert.Error(t, err)
}

func TestStepBeforeBeginIsNoop(t *testing.T) {
	m := NewMachine(DefaultConfig())
	res := m.Step(poweredInput(100, -10, 0))
	assert.True(t, res.Command.Empty())
	assert.Equal(t, core.Phase(0), m.Phase())
}

func TestWaitPhases(t *testing.T) {
	m := NewMachine(DefaultConfig())
	_, err := m.Begin()
	require.NoError(t, err)

	// ignition not yet reported
	res := m.Step(Input{Vehicle: core.KinematicSample{Thrust: 0}})
	assert.Equal(t, core.PhaseStaging, res.Phase)
	assert.True(t, res.Command.Empty())

	res = m.Step(Input{Vehicle: core.KinematicSample{Thrust: 90000}})
	assert.Equal(t, core.PhaseAscentWait, res.Phase)
	assert.False(t, res.Command.Stage)

	res = m.Step(Input{Vehicle: core.KinematicSample{Thrust: 50000}})
	assert.Equal(t, core.PhaseAscentWait, res.Phase)

	res = m.Step(Input{Vehicle: core.KinematicSample{Thrust: 0, VerticalSpeed: 40}})
	assert.Equal(t, core.PhaseFreefallWait, res.Phase)
	assert.True(t, res.Command.Stage)

	res = m.Step(Input{Vehicle: core.KinematicSample{VerticalSpeed: -0.5}})
	assert.Equal(t, core.PhaseFreefallWait, res.Phase)
	assert.True(t, res.Command.Empty())

	res = m.Step(Input{Vehicle: core.KinematicSample{VerticalSpeed: -1.5, SurfaceAltitude: 4000}})
	assert.Equal(t, core.PhasePoweredDescent, res.Phase)
	assert.True(t, res.Command.Stage)
	assert.Equal(t, core.AutopilotEngage, res.Command.Autopilot)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, core.PhaseFreefallWait, res.Changes[0].From)
}

func TestThrottlePolicy(t *testing.T) {
	cfg := DefaultConfig()

	// far above the braking altitude
	assert.Equal(t, 0.07, Throttle(2000, braking.Estimate{MinAltitude: 1041.26}, -50, cfg))
	// below it and falling
	assert.Equal(t, 1.0, Throttle(900, braking.Estimate{MinAltitude: 980.5}, -5, cfg))
	// below it but climbing
	assert.Equal(t, 0.0, Throttle(900, braking.Estimate{MinAltitude: 980.5}, 0.5, cfg))
}

func TestPoweredDescentPointsAlongSteering(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhasePoweredDescent}

	res := m.Step(poweredInput(3000, -80, 1200))
	assert.Equal(t, core.PhasePoweredDescent, res.Phase)
	require.NotNil(t, res.Command.Pointing)
	assert.Equal(t, vecmath.New(0, 0, 1), *res.Command.Pointing)
	assert.Equal(t, 0.07, throttleOf(t, res.Command))
	assert.Nil(t, res.Command.GimbalLimit)
	assert.Equal(t, core.SASUnset, res.Command.SASMode)

	in := poweredInput(3000, -80, 1200)
	in.Steering.Valid = false
	res = m.Step(in)
	assert.Nil(t, res.Command.Pointing)
}

func TestGimbalEntryIsOneShot(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhasePoweredDescent}

	res := m.Step(poweredInput(1430, -60, 0))
	assert.Equal(t, core.PhasePoweredDescent, res.Phase)
	assert.Nil(t, res.Command.GimbalLimit)

	res = m.Step(poweredInput(1420, -60, 0))
	assert.Equal(t, core.PhaseGimbalLimited, res.Phase)
	require.NotNil(t, res.Command.GimbalLimit)
	assert.Equal(t, 0.2, *res.Command.GimbalLimit)
	assert.Equal(t, core.AutopilotDisengage, res.Command.Autopilot)
	assert.Equal(t, core.SASRetrograde, res.Command.SASMode)
	assert.Nil(t, res.Command.Pointing)

	// climbing back over the threshold changes nothing
	res = m.Step(poweredInput(1430, 2, 0))
	assert.Equal(t, core.PhaseGimbalLimited, res.Phase)
	assert.Nil(t, res.Command.GimbalLimit)
	assert.Equal(t, core.AutopilotUnchanged, res.Command.Autopilot)
	assert.Equal(t, core.SASUnset, res.Command.SASMode)
	assert.Empty(t, res.Changes)

	res = m.Step(poweredInput(1000, -30, 0))
	assert.Equal(t, core.PhaseGimbalLimited, res.Phase)
	assert.Nil(t, res.Command.GimbalLimit)
}

func TestTerminalUpright(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhaseGimbalLimited}

	res := m.Step(poweredInput(39, -3, 60))
	assert.Equal(t, core.PhaseTerminalUpright, res.Phase)
	assert.Equal(t, core.SASRadialOut, res.Command.SASMode)
	assert.Equal(t, 1.0, throttleOf(t, res.Command))

	res = m.Step(poweredInput(20, -2, 30))
	assert.Equal(t, core.PhaseTerminalUpright, res.Phase)
	assert.Equal(t, core.SASUnset, res.Command.SASMode)
}

func TestThresholdsCascadeWithinOneTick(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhasePoweredDescent}

	res := m.Step(poweredInput(30, -20, 100))
	assert.Equal(t, core.PhaseTerminalUpright, res.Phase)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, core.PhaseGimbalLimited, res.Changes[0].To)
	assert.Equal(t, core.PhaseTerminalUpright, res.Changes[1].To)

	// both entry actions were issued; upright attitude wins
	require.NotNil(t, res.Command.GimbalLimit)
	assert.Equal(t, core.AutopilotDisengage, res.Command.Autopilot)
	assert.Equal(t, core.SASRadialOut, res.Command.SASMode)
}

func TestGroundContactEndsDescentOnce(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhaseTerminalUpright}

	in := poweredInput(3, -1, 10)
	in.GroundContact = true
	res := m.Step(in)
	assert.Equal(t, core.PhaseTouchdown, res.Phase)
	assert.Equal(t, 0.0, throttleOf(t, res.Command))
	assert.False(t, res.Command.Stage)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "ground contact", res.Changes[0].Reason)

	res = m.Step(in)
	assert.Equal(t, core.PhaseTouchdown, res.Phase)
	assert.True(t, res.Command.Empty())
	assert.Empty(t, res.Changes)
}

func TestLowAltitudeEndsDescentFromAnyPoweredPhase(t *testing.T) {
	for _, p := range []core.Phase{core.PhasePoweredDescent, core.PhaseGimbalLimited, core.PhaseTerminalUpright} {
		m := &Machine{cfg: DefaultConfig(), phase: p}
		res := m.Step(poweredInput(0.8, -0.4, 5))
		assert.Equal(t, core.PhaseTouchdown, res.Phase, "from %s", p)
		assert.Equal(t, 0.0, throttleOf(t, res.Command))
	}
}

func TestAbort(t *testing.T) {
	m := &Machine{cfg: DefaultConfig(), phase: core.PhaseGimbalLimited}

	res := m.Abort("telemetry lost")
	assert.Equal(t, core.PhaseAborted, res.Phase)
	assert.Equal(t, 0.0, throttleOf(t, res.Command))
	require.Len(t, res.Changes, 1)
	assert.Equal(t, core.PhaseGimbalLimited, res.Changes[0].From)

	res = m.Step(poweredInput(500, -20, 100))
	assert.Equal(t, core.PhaseAborted, res.Phase)
	assert.True(t, res.Command.Empty())

	done := &Machine{cfg: DefaultConfig(), phase: core.PhaseTouchdown}
	res = done.Abort("late")
	assert.Equal(t, core.PhaseTouchdown, res.Phase)
	assert.Empty(t, res.Changes)
}

func TestPhaseNeverDecreases(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		m := NewMachine(DefaultConfig())
		_, err := m.Begin()
		require.NoError(t, err)

		prev := m.Phase()
		for i := 0; i < 200; i++ {
			in := Input{
				Vehicle: core.KinematicSample{
					SurfaceAltitude: rng.Float64() * 3000,
					VerticalSpeed:   rng.Float64()*100 - 60,
					Thrust:          float64(rng.Intn(2)) * 50000,
				},
				GroundContact: rng.Intn(40) == 0,
				Braking:       braking.Estimate{MinAltitude: rng.Float64() * 2000},
			}
			res := m.Step(in)
			assert.GreaterOrEqual(t, int(res.Phase), int(prev))
			prev = res.Phase
		}
	}
}
