// Package influx exports descent telemetry as InfluxDB points. When the server cannot be
// reached, points are appended as gzipped line protocol to a backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementTick        = "descent_tick"
	MeasurementPhaseChange = "phase_change"
	MeasurementReport      = "landing_report"
)

// retention of the telemetry bucket
const retentionSeconds = 60 * 60 * 24 * 90

// ErrNotConnected is returned by writes before Connect.
var ErrNotConnected = errors.New("influxDB client not initialized and backup writer not available")

// Config holds the connection settings.
type Config struct {
	URL        string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg    Config
	Logger zerolog.Logger

	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool

	mu         sync.Mutex
	backupFile *os.File
	backup     *gzip.Writer
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, cfg Config) *Manager {
	return &Manager{cfg: cfg, Logger: log}
}

// Connect pings the server and prepares the org, bucket and writer. An unreachable
// server is not an error: the backup file is used instead.
func (m *Manager) Connect(ctx context.Context) error {
	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL,
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Str("backupPath", m.cfg.BackupPath).
			Msg("InfluxDB not reachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.cfg.BackupPath), 0o755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(m.cfg.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.Writer.Errors())
}

// WritePoint sends a point to InfluxDB or appends it to the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return ErrNotConnected
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and closes the client or backup file.
func (m *Manager) Close() error {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backup == nil {
		return nil
	}
	err := errors.Join(m.backup.Close(), m.backupFile.Close())
	m.backup, m.backupFile = nil, nil
	return err
}

// Handle is the side-channel subscriber.
func (m *Manager) Handle(e dispatcher.Event) error {
	switch e.Kind {
	case dispatcher.KindTick:
		return m.WritePoint(TickPoint(e.Tick))
	case dispatcher.KindPhaseChange:
		return m.WritePoint(PhaseChangePoint(e.Change))
	case dispatcher.KindDescentEnd:
		return m.WritePoint(ReportPoint(e.Report))
	}
	return nil
}

func descentTag(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// TickPoint converts a tick record.
func TickPoint(r *core.TickRecord) *influxdb2_write.Point {
	v := r.Vehicle
	p := influxdb2.NewPointWithMeasurement(MeasurementTick).
		AddTag("descent", descentTag(r.DescentID)).
		AddTag("phase", r.Phase.String()).
		AddField("tick", r.Tick).
		AddField("altitude", v.SurfaceAltitude).
		AddField("vertical_speed", v.VerticalSpeed).
		AddField("speed", v.Speed).
		AddField("mass", v.Mass).
		AddField("thrust", v.Thrust).
		AddField("ground_contact", r.GroundContact).
		SetTime(r.Time)
	if r.Command.Throttle != nil {
		p.AddField("throttle", *r.Command.Throttle)
	}
	if r.Phase.Powered() {
		p.AddField("braking_altitude", r.BrakingAltitude)
		p.AddField("stopping_energy", r.StoppingEnergy)
	}
	if r.SteeringFallback != "" {
		p.AddTag("steering_fallback", r.SteeringFallback)
	}
	return p
}

// PhaseChangePoint converts a transition.
func PhaseChangePoint(c *core.PhaseChange) *influxdb2_write.Point {
	return influxdb2.NewPointWithMeasurement(MeasurementPhaseChange).
		AddTag("descent", descentTag(c.DescentID)).
		AddTag("to", c.To.String()).
		AddField("from", c.From.String()).
		AddField("tick", c.Tick).
		AddField("altitude", c.Altitude).
		AddField("reason", c.Reason).
		SetTime(c.Time)
}

// ReportPoint converts a landing report.
func ReportPoint(r *core.LandingReport) *influxdb2_write.Point {
	p := influxdb2.NewPointWithMeasurement(MeasurementReport).
		AddTag("descent", descentTag(r.DescentID)).
		AddTag("outcome", r.Outcome.String()).
		AddField("duration_s", r.Duration.Seconds()).
		AddField("ticks", r.Ticks).
		AddField("touchdown_speed", r.TouchdownSpeed).
		AddField("touchdown_vertical_speed", r.TouchdownVerticalSpeed).
		AddField("miss_distance", r.MissDistance).
		AddField("surface_miss_distance", r.SurfaceMissDistance).
		SetTime(r.EndTime)
	if r.Error != "" {
		p.AddField("error", r.Error)
	}
	return p
}
