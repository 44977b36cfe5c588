package core

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/descentctl/lander/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseOrdering(t *testing.T) {
	order := []Phase{
		PhaseStaging, PhaseAscentWait, PhaseFreefallWait, PhasePoweredDescent,
		PhaseGimbalLimited, PhaseTerminalUpright, PhaseTouchdown,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i])
	}

	assert.True(t, PhaseStaging.Waiting())
	assert.True(t, PhaseFreefallWait.Waiting())
	assert.False(t, PhasePoweredDescent.Waiting())

	assert.True(t, PhasePoweredDescent.Powered())
	assert.True(t, PhaseTerminalUpright.Powered())
	assert.False(t, PhaseTouchdown.Powered())

	assert.True(t, PhaseTouchdown.Terminal())
	assert.True(t, PhaseAborted.Terminal())
	assert.False(t, PhaseGimbalLimited.Terminal())
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase(" gimbal_limited ")
	require.NoError(t, err)
	assert.Equal(t, PhaseGimbalLimited, p)

	_, err = ParsePhase("HOVER")
	assert.Error(t, err)

	assert.Equal(t, "Phase(42)", Phase(42).String())
}

func TestPhaseJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		P Phase `json:"p"`
	}{PhaseTerminalUpright})
	require.NoError(t, err)
	assert.JSONEq(t, `{"p":"TERMINAL_UPRIGHT"}`, string(data))

	var out struct {
		P Phase `json:"p"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"p":"ABORTED"}`), &out))
	assert.Equal(t, PhaseAborted, out.P)

	assert.Error(t, json.Unmarshal([]byte(`{"p":"LANDED"}`), &out))
	assert.Error(t, json.Unmarshal([]byte(`{"p":3}`), &out))
}

func TestActuationCommand(t *testing.T) {
	assert.True(t, ActuationCommand{}.Empty())

	c := ActuationCommand{}.WithThrottle(1.7)
	require.NotNil(t, c.Throttle)
	assert.Equal(t, 1.0, *c.Throttle)
	assert.Equal(t, 0.0, *ActuationCommand{}.WithThrottle(-0.2).Throttle)

	c = c.WithPointing(vecmath.New(0, 0, 1)).WithGimbalLimit(0.2)
	assert.False(t, c.Empty())
	assert.Equal(t, vecmath.New(0, 0, 1), *c.Pointing)
	assert.Equal(t, 0.2, *c.GimbalLimit)
	assert.Equal(t, 1.0, *c.Throttle, "builders keep earlier fields")
}

func TestErrors(t *testing.T) {
	err := &TelemetryUnavailableError{Op: "sample vehicle", Err: io.EOF}
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "sample vehicle")

	act := &ActuationError{Op: "set throttle", Err: io.ErrClosedPipe}
	assert.True(t, errors.Is(act, io.ErrClosedPipe))

	timeout := &TelemetryTimeoutError{Phase: PhaseAscentWait, Waited: 5 * time.Minute}
	assert.Equal(t, "timed out in ASCENT_WAIT after 5m0s", timeout.Error())
}
