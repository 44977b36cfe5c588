package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 10, 19, 7, 5, 9, 0, time.UTC)

	assert.Equal(t,
		filepath.Join("landerlogs", "lander.20261019_070509.log"),
		LogFilePath("landerlogs", "lander", start))

	// one file per session, distinguishable by start time
	later := LogFilePath("landerlogs", "lander", start.Add(time.Second))
	assert.NotEqual(t, LogFilePath("landerlogs", "lander", start), later)

	abs := LogFilePath(filepath.Join("/var", "log", "lander"), "lander-sim", start)
	assert.Equal(t, "lander-sim.20261019_070509.log", filepath.Base(abs))
	assert.True(t, filepath.IsAbs(abs))
}
