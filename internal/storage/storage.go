// Package storage defines the flight log backends and feeds them from the side channel.
package storage

import (
	"fmt"

	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// StartDescent registers a descent and assigns d.ID.
	StartDescent(d *core.Descent) error
	EndDescent(r *core.LandingReport) error

	RecordTick(r *core.TickRecord) error
	RecordPhaseChange(c *core.PhaseChange) error
}

// Reader is implemented by backends that can load finished descents.
type Reader interface {
	LandingReports(ids ...uint) ([]core.LandingReport, error)
	Descent(id uint) (core.Descent, error)
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a report server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// RecorderOptions subscribes the recorder to the kinds it persists. Only the end of a
// descent waits for queue space: it is published after the control loop has returned,
// while ticks and phase changes are dropped and counted when the backend falls behind.
func RecorderOptions(buffer int) []dispatcher.Option {
	return []dispatcher.Option{
		dispatcher.Kinds(dispatcher.KindTick, dispatcher.KindPhaseChange, dispatcher.KindDescentEnd),
		dispatcher.Buffered(buffer),
		dispatcher.BlockOn(dispatcher.KindDescentEnd),
	}
}

// Recorder returns a side-channel handler writing ticks, phase changes and the end of
// a descent into b. The descent itself is started on b before the loop runs so that
// every record already carries its ID.
func Recorder(b Backend) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) error {
		switch e.Kind {
		case dispatcher.KindTick:
			return b.RecordTick(e.Tick)
		case dispatcher.KindPhaseChange:
			return b.RecordPhaseChange(e.Change)
		case dispatcher.KindDescentEnd:
			if err := b.EndDescent(e.Report); err != nil {
				return fmt.Errorf("end descent %d: %w", e.Report.DescentID, err)
			}
		}
		return nil
	}
}
