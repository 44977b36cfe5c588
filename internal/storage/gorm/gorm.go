// Package gormstorage records descents into any gorm database. Tick rows are queued and
// written in batches; headers, phase changes and reports are written immediately.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/descentctl/lander/internal/database"
	"github.com/descentctl/lander/internal/geo"
	"github.com/descentctl/lander/internal/model"
	"github.com/descentctl/lander/internal/model/convert"
	"github.com/descentctl/lander/internal/queue"
	"github.com/descentctl/lander/pkg/core"
	"gorm.io/gorm"
)

const (
	defaultQueueLimit = 200000
	flushBatchSize    = 1000
)

// ErrNoDatabase is returned by writes when the backend has no DB handle.
var ErrNoDatabase = errors.New("database not available")

// Dependencies holds all dependencies of the gorm backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// Backend implements storage.Backend on gorm.
type Backend struct {
	deps  Dependencies
	ticks *queue.Queue[model.TickState]

	mu       sync.Mutex
	track    []geo.LatLon
	altitude float64

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a backend; Init must be called before use.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	limit := deps.QueueLimit
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return &Backend{
		deps:  deps,
		ticks: queue.NewBounded[model.TickState](limit),
	}
}

// DB exposes the handle, e.g. for dumps.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the periodic tick flush.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	if b.deps.FlushInterval > 0 {
		go b.flushLoop()
	} else {
		close(b.done)
	}
	return nil
}

// Close stops the flush loop and writes what is still queued.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	if b.deps.DB == nil {
		return nil
	}
	return b.Flush()
}

// StartDescent inserts the header and assigns d.ID.
func (b *Backend) StartDescent(d *core.Descent) error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	row := convert.CoreToDescent(d)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert descent: %w", err)
	}
	d.ID = row.ID

	b.mu.Lock()
	b.track = b.track[:0]
	b.altitude = 0
	b.mu.Unlock()
	return nil
}

// RecordTick queues a tick row for the next flush.
func (b *Backend) RecordTick(r *core.TickRecord) error {
	b.ticks.Push(convert.CoreToTickState(r))

	b.mu.Lock()
	b.track = append(b.track, geo.LatLon{Lat: r.Vehicle.Latitude, Lon: r.Vehicle.Longitude})
	b.altitude = r.Vehicle.SurfaceAltitude
	b.mu.Unlock()
	return nil
}

// RecordPhaseChange inserts a transition.
func (b *Backend) RecordPhaseChange(c *core.PhaseChange) error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	row := convert.CoreToPhaseChange(c)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert phase change: %w", err)
	}
	return nil
}

// EndDescent flushes the remaining ticks and inserts the report with the ground track.
func (b *Backend) EndDescent(r *core.LandingReport) error {
	if b.deps.DB == nil {
		return ErrNoDatabase
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.mu.Lock()
	row := convert.CoreToReport(r, b.altitude, b.track)
	b.track = nil
	b.mu.Unlock()

	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert landing report: %w", err)
	}
	b.deps.Logger.Info("descent stored", "descentId", r.DescentID, "outcome", r.Outcome.String(), "ticks", r.Ticks)
	return nil
}

// Flush writes every queued tick row. Rows of a failed batch are put back.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for b.ticks.Len() > 0 {
		batch := b.ticks.Drain(flushBatchSize)
		if err := b.deps.DB.CreateInBatches(&batch, len(batch)).Error; err != nil {
			b.ticks.Requeue(batch)
			return fmt.Errorf("failed to write %d tick rows: %w", len(batch), err)
		}
	}
	if dropped := b.ticks.Dropped(); dropped > 0 {
		b.deps.Logger.Warn("tick rows dropped by queue limit", "dropped", dropped)
	}
	return nil
}

// Pending returns the number of queued tick rows.
func (b *Backend) Pending() int {
	return b.ticks.Len()
}

func (b *Backend) flushLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			n := b.ticks.Len()
			if n == 0 {
				continue
			}
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("tick flush failed", "error", err)
				continue
			}
			b.deps.Logger.Debug("tick rows flushed", "rows", n, "duration", time.Since(start))
		}
	}
}

// LandingReports loads the reports of the given descents, or of all descents when ids is empty.
func (b *Backend) LandingReports(ids ...uint) ([]core.LandingReport, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDatabase
	}
	var rows []model.LandingReport
	q := b.deps.DB.Order("descent_id")
	if len(ids) > 0 {
		q = q.Where("descent_id IN ?", ids)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load landing reports: %w", err)
	}

	reports := make([]core.LandingReport, 0, len(rows))
	for _, row := range rows {
		r, err := convert.ReportToCore(row)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// Descent loads a descent header.
func (b *Backend) Descent(id uint) (core.Descent, error) {
	if b.deps.DB == nil {
		return core.Descent{}, ErrNoDatabase
	}
	var row model.Descent
	if err := b.deps.DB.First(&row, id).Error; err != nil {
		return core.Descent{}, fmt.Errorf("descent %d: %w", id, err)
	}
	return convert.DescentToCore(row)
}
