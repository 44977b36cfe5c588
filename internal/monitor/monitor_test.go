package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/descentctl/lander/internal/guidance"
	"github.com/descentctl/lander/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	status guidance.Status
}

func (f *fakeSource) Status() guidance.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) set(s guidance.Status) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

func readSnapshot(t *testing.T, path string) Snapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	src := &fakeSource{status: guidance.Status{DescentID: 2, Phase: core.PhaseGimbalLimited, Tick: 1800, Altitude: 900}}
	s := NewService(Dependencies{
		Source:  src,
		Path:    path,
		Pending: func() int { return 12 },
		Dropped: func() uint64 { return 3 },
	})

	require.NoError(t, s.WriteStatus())
	snap := readSnapshot(t, path)
	assert.Equal(t, uint(2), snap.Descent.DescentID)
	assert.Equal(t, core.PhaseGimbalLimited, snap.Descent.Phase)
	assert.Equal(t, 12, snap.PendingRows)
	assert.Equal(t, uint64(3), snap.OverlayDropped)
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	src := &fakeSource{}
	s := NewService(Dependencies{Source: src, Path: path, Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	// nothing is written before a descent has an ID
	time.Sleep(20 * time.Millisecond)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	src.set(guidance.Status{DescentID: 1, Phase: core.PhaseAscentWait})
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	src.set(guidance.Status{DescentID: 1, Phase: core.PhaseTouchdown})
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, core.PhaseTouchdown, readSnapshot(t, path).Descent.Phase)
}

func TestStart_NoSource(t *testing.T) {
	assert.Error(t, NewService(Dependencies{}).Start())
}
