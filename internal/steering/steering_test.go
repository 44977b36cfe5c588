package steering

import (
	"math"
	"testing"

	"github.com/descentctl/lander/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteer_ParallelVelocityAndLineOfSight(t *testing.T) {
	law := New(0)
	require.Equal(t, DefaultLeadCoefficient, law.LeadCoefficient)

	dir := vecmath.New(0, 0, -1)
	res := law.Steer(dir.Scale(50), dir.Scale(2000))

	require.True(t, res.Valid)
	assert.Equal(t, FallbackNone, res.Fallback)

	// raw = negated line of sight scaled by (1 - 1.3)
	want := dir.Neg().Scale(1 - DefaultLeadCoefficient)
	assert.True(t, res.Raw.ApproxEqual(want, 1e-12), "raw %v want %v", res.Raw, want)

	// command is the normalization of the negated raw vector: straight up
	assert.True(t, res.Direction.ApproxEqual(vecmath.New(0, 0, 1), 1e-12), "direction %v", res.Direction)
}

func TestSteer_DirectionIsUnit(t *testing.T) {
	law := New(DefaultLeadCoefficient)
	cases := []struct {
		velocity, los vecmath.Vector3
	}{
		{vecmath.New(10, 0, -40), vecmath.New(300, 50, -1500)},
		{vecmath.New(-3, 2, -1), vecmath.New(1, 1, 1)},
		{vecmath.New(0, 100, 0), vecmath.New(0, 0, -10)},
	}
	for _, c := range cases {
		res := law.Steer(c.velocity, c.los)
		require.True(t, res.Valid)
		assert.InDelta(t, 1.0, res.Direction.Len(), 1e-12)
		assert.Equal(t, FallbackNone, res.Fallback)
	}
}

func TestSteer_NullsLateralVelocity(t *testing.T) {
	// falling straight down with the target off to +X: thrust should lean toward +X
	res := New(0).Steer(vecmath.New(0, 0, -50), vecmath.New(100, 0, -1000))
	require.True(t, res.Valid)
	assert.Greater(t, res.Direction.X, 0.0)
	assert.Greater(t, res.Direction.Z, 0.0)
}

func TestSteer_ZeroVelocityFallsBackToTarget(t *testing.T) {
	res := New(0).Steer(vecmath.Vector3{}, vecmath.New(0, 3, 4))
	require.True(t, res.Valid)
	assert.Equal(t, FallbackTargetSeeking, res.Fallback)
	assert.Nil(t, res.VelocityDir)
	assert.True(t, res.Direction.ApproxEqual(vecmath.New(0, 0.6, 0.8), 1e-12))
}

func TestSteer_CoincidentPositionsFallsBackToRetrograde(t *testing.T) {
	res := New(0).Steer(vecmath.New(0, 0, -5), vecmath.Vector3{})
	require.True(t, res.Valid)
	assert.Equal(t, FallbackRetrograde, res.Fallback)
	assert.True(t, res.Direction.ApproxEqual(vecmath.New(0, 0, 1), 1e-12))
}

func TestSteer_BothDegenerateHolds(t *testing.T) {
	res := New(0).Steer(vecmath.Vector3{}, vecmath.New(math.NaN(), 0, 0))
	assert.False(t, res.Valid)
	assert.Equal(t, FallbackHold, res.Fallback)
}

func TestLineOfSight(t *testing.T) {
	assert.Equal(t, vecmath.New(5, -5, -100), LineOfSight(vecmath.New(0, 10, 100), vecmath.New(5, 5, 0)))
}
