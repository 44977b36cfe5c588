package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/descentctl/lander/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSQLite(filepath.Join(t.TempDir(), "flights.db")))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestSetup_MigratesTables(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Setup())

	for _, table := range model.DatabaseModels {
		assert.True(t, m.DB.Migrator().HasTable(table), "missing table for %T", table)
	}
}

func TestSetup_NotConnected(t *testing.T) {
	assert.Error(t, NewManager(zerolog.Nop()).Setup())
}

func TestDumpToDisk(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Setup())
	require.NoError(t, m.DB.Create(&model.Descent{VesselName: "hopper"}).Error)

	dump := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, m.DumpToDisk(dump))
	// a second dump replaces the first
	require.NoError(t, m.DumpToDisk(dump))

	info, err := os.Stat(dump)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	copyDB, err := OpenSQLite(dump)
	require.NoError(t, err)
	var n int64
	require.NoError(t, copyDB.Model(&model.Descent{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestDumpToDisk_NoPath(t *testing.T) {
	m := newManager(t)
	assert.ErrorIs(t, m.DumpToDisk(""), ErrNoDumpPath)
}
