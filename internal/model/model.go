// Package model holds the gorm tables of the flight log.
package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DatabaseModels lists every table, in migration order.
var DatabaseModels = []interface{}{
	&Descent{},
	&TickState{},
	&PhaseChange{},
	&LandingReport{},
}

// Geometry stores a simplefeatures geometry as WKB.
// It is a blob on SQLite and bytea on Postgres, so no PostGIS extension is needed.
type Geometry struct {
	geom.Geometry
}

// NewGeometry wraps g.
func NewGeometry(g geom.Geometry) Geometry {
	return Geometry{Geometry: g}
}

// GormDataType keeps gorm from treating the struct as a relation.
func (Geometry) GormDataType() string {
	return "bytes"
}

// GormDBDataType picks the column type per dialect.
func (Geometry) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "bytea"
	}
	return "blob"
}

// Value writes WKB. The empty geometry is stored as NULL.
func (g Geometry) Value() (driver.Value, error) {
	if g.IsEmpty() {
		return nil, nil
	}
	return g.AsBinary(), nil
}

// Scan reads WKB.
func (g *Geometry) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		g.Geometry = geom.Geometry{}
		return nil
	case []byte:
		parsed, err := geom.UnmarshalWKB(v)
		if err != nil {
			return fmt.Errorf("scan geometry: %w", err)
		}
		g.Geometry = parsed
		return nil
	default:
		return fmt.Errorf("scan geometry: unsupported source %T", src)
	}
}

// Vector is an embedded X/Y/Z column triple.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Descent is one guided descent.
type Descent struct {
	ID         uint           `json:"id" gorm:"primarykey"`
	CreatedAt  time.Time      `json:"createdAt"`
	StartTime  time.Time      `json:"startTime" gorm:"index:idx_descent_start"`
	VesselName string         `json:"vesselName" gorm:"size:127"`
	TargetName string         `json:"targetName" gorm:"size:127"`
	BodyName   string         `json:"bodyName" gorm:"size:64"`
	LinkType   string         `json:"linkType" gorm:"size:16"`
	Tuning     datatypes.JSON `json:"tuning"`

	Ticks        []TickState    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	PhaseChanges []PhaseChange  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Report       *LandingReport `json:"report,omitempty" gorm:"constraint:OnDelete:CASCADE;"`
}

func (*Descent) TableName() string {
	return "descents"
}

// TickState is one control loop iteration.
type TickState struct {
	ID              uint           `json:"-" gorm:"primarykey"`
	DescentID       uint           `json:"descentId" gorm:"index:idx_tick_descent"`
	Tick            uint64         `json:"tick"`
	Time            time.Time      `json:"time"`
	Phase           string         `json:"phase" gorm:"size:32"`
	Position        Vector         `json:"position" gorm:"embedded;embeddedPrefix:position_"`
	Velocity        Vector         `json:"velocity" gorm:"embedded;embeddedPrefix:velocity_"`
	Mass            float64        `json:"mass"`
	Altitude        float64        `json:"altitude"`
	VerticalSpeed   float64        `json:"verticalSpeed"`
	Speed           float64        `json:"speed"`
	Thrust          float64        `json:"thrust"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
	Throttle        *float64       `json:"throttle"`
	BrakingAltitude float64        `json:"brakingAltitude"`
	StoppingEnergy  float64        `json:"stoppingEnergy"`
	Steering        datatypes.JSON `json:"steering"`
	Command         datatypes.JSON `json:"command"`
	GroundContact   bool           `json:"groundContact"`
}

func (*TickState) TableName() string {
	return "tick_states"
}

// PhaseChange is one transition of the phase machine.
type PhaseChange struct {
	ID        uint      `json:"-" gorm:"primarykey"`
	DescentID uint      `json:"descentId" gorm:"index:idx_phase_change_descent"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	From      string    `json:"from" gorm:"size:32"`
	To        string    `json:"to" gorm:"size:32"`
	Altitude  float64   `json:"altitude"`
	Reason    string    `json:"reason" gorm:"size:255"`
}

func (*PhaseChange) TableName() string {
	return "phase_changes"
}

// LandingReport summarizes a finished descent.
type LandingReport struct {
	ID                     uint      `json:"-" gorm:"primarykey"`
	DescentID              uint      `json:"descentId" gorm:"uniqueIndex"`
	EndTime                time.Time `json:"endTime"`
	Outcome                string    `json:"outcome" gorm:"size:32"`
	DurationMs             int64     `json:"durationMs"`
	Ticks                  uint64    `json:"ticks"`
	TouchdownSpeed         float64   `json:"touchdownSpeed"`
	TouchdownVerticalSpeed float64   `json:"touchdownVerticalSpeed"`
	MissDistance           float64   `json:"missDistance"`
	SurfaceMissDistance    float64   `json:"surfaceMissDistance"`
	Touchdown              Geometry  `json:"-"` // point lon/lat/alt
	GroundTrack            Geometry  `json:"-"` // linestring of sampled lon/lat
	Error                  string    `json:"error" gorm:"size:1000"`
}

func (*LandingReport) TableName() string {
	return "landing_reports"
}
