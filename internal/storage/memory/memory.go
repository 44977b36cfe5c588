// Package memory keeps a descent in memory and exports it as a JSON flight log at the end.
package memory

import (
	"errors"
	"sync"

	"github.com/descentctl/lander/internal/config"
	v1 "github.com/descentctl/lander/internal/storage/memory/export/v1"
	"github.com/descentctl/lander/pkg/core"
)

// ErrNoDescent is returned when records arrive outside StartDescent/EndDescent.
var ErrNoDescent = errors.New("no descent in progress")

// Backend stores one descent at a time.
type Backend struct {
	cfg    config.MemoryConfig
	flight *v1.FlightData

	idCounter      uint
	lastExportPath string
	lastMeta       core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close drops any unfinished descent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flight = nil
	return nil
}

// StartDescent begins recording and assigns d.ID.
func (b *Backend) StartDescent(d *core.Descent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	d.ID = b.idCounter
	b.flight = &v1.FlightData{Descent: *d}
	return nil
}

// RecordTick appends a tick.
func (b *Backend) RecordTick(r *core.TickRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight == nil {
		return ErrNoDescent
	}
	b.flight.Ticks = append(b.flight.Ticks, *r)
	return nil
}

// RecordPhaseChange appends a transition.
func (b *Backend) RecordPhaseChange(c *core.PhaseChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight == nil {
		return ErrNoDescent
	}
	b.flight.PhaseChanges = append(b.flight.PhaseChanges, *c)
	return nil
}

// EndDescent attaches the report and writes the flight log.
func (b *Backend) EndDescent(r *core.LandingReport) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flight == nil {
		return ErrNoDescent
	}
	b.flight.Report = r

	if err := b.exportJSON(); err != nil {
		return err
	}
	b.lastMeta = core.UploadMetadata{
		VesselName: b.flight.Descent.VesselName,
		BodyName:   b.flight.Descent.BodyName,
		Outcome:    r.Outcome.String(),
		Duration:   r.Duration.Seconds(),
		Tag:        b.flight.Descent.LinkType,
	}
	b.flight = nil
	return nil
}

// TickCount returns the number of ticks recorded for the current descent.
func (b *Backend) TickCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.flight == nil {
		return 0
	}
	return len(b.flight.Ticks)
}

// GetExportedFilePath returns the path of the last written flight log.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last written flight log.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastMeta
}
