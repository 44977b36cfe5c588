package sim

import (
	"context"
	"testing"
	"time"

	"github.com/descentctl/lander/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepAdvancesVirtualTime(t *testing.T) {
	s := New(DefaultConfig())
	start := s.Now()

	require.NoError(t, s.Sleep(context.Background(), 1500*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, s.Now().Sub(start))

	v, err := s.SampleVehicle(core.FrameBody)
	require.NoError(t, err)
	assert.InDelta(t, DefaultConfig().StartUT+1.5, v.Time, 1e-9)
}

func TestSitsOnPadUntilStaged(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Sleep(context.Background(), 5*time.Second))

	v, err := s.SampleVehicle(core.FrameBody)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.SurfaceAltitude)
	assert.Equal(t, 0.0, v.Thrust)
}

func TestBoosterFlight(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg)
	ctx := context.Background()

	require.NoError(t, s.ActivateNextStage())
	require.NoError(t, s.Sleep(ctx, time.Second))

	v, err := s.SampleVehicle(core.FrameBody)
	require.NoError(t, err)
	assert.Equal(t, cfg.BoosterThrust, v.Thrust)
	assert.Greater(t, v.VerticalSpeed, 0.0)

	// burnout
	require.NoError(t, s.Sleep(ctx, 15*time.Second))
	v, err = s.SampleVehicle(core.FrameBody)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Thrust)
	assert.Greater(t, v.SurfaceAltitude, 1700.0)
	assert.Less(t, v.SurfaceAltitude, 2000.0)

	require.NoError(t, s.ActivateNextStage())
	v, _ = s.SampleVehicle(core.FrameBody)
	assert.Equal(t, cfg.LaunchMass-cfg.BoosterMass, v.Mass)

	// coast to the apex
	apex := 0.0
	for i := 0; i < 400; i++ {
		require.NoError(t, s.Sleep(ctx, 100*time.Millisecond))
		v, _ = s.SampleVehicle(core.FrameBody)
		if v.SurfaceAltitude > apex {
			apex = v.SurfaceAltitude
		}
	}
	assert.InDelta(t, 4360, apex, 60)
	assert.Equal(t, 2, s.Stages())
}

func TestDescentEngineFollowsThrottle(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.ActivateNextStage())
	}

	env, err := s.Environment()
	require.NoError(t, err)
	assert.Equal(t, cfg.EngineThrust, env.MaxThrust)

	require.NoError(t, s.SetThrottle(0.25))
	v, _ := s.SampleVehicle(core.FrameBody)
	assert.InDelta(t, cfg.EngineThrust*0.25, v.Thrust, 1e-9)

	require.NoError(t, s.SetThrottle(3))
	assert.Equal(t, 1.0, s.Throttle())
}

func TestGroundContactAfterLanding(t *testing.T) {
	s := New(DefaultConfig())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.ActivateNextStage())
	}
	require.NoError(t, s.SetThrottle(0))
	require.NoError(t, s.Sleep(context.Background(), time.Second))

	contact, err := s.GroundContact()
	require.NoError(t, err)
	assert.Len(t, contact, 4)
	assert.True(t, contact[0])
}

func TestTargetSelection(t *testing.T) {
	s := New(DefaultConfig())

	target, err := s.SampleTarget(core.FrameBody)
	require.NoError(t, err)
	require.NotNil(t, target)
	assert.Equal(t, DefaultConfig().Target, target.Position)
	assert.Greater(t, target.Longitude, 0.0)

	s.ClearTarget()
	target, err = s.SampleTarget(core.FrameBody)
	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestClosedLinkFails(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Close())

	_, err := s.SampleVehicle(core.FrameBody)
	assert.ErrorIs(t, err, errClosed)
	assert.ErrorIs(t, s.SetThrottle(0), errClosed)
}

func TestSleepHonoursContext(t *testing.T) {
	s := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Sleep(ctx, time.Second), context.Canceled)
	assert.Equal(t, DefaultConfig().Epoch, s.Now())
}
