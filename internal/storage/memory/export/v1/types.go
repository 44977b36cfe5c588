// Package v1 contains the v1 flight log export format.
// Ticks are written as compact rows so a full descent stays small after gzip.
package v1

import (
	"time"

	"github.com/descentctl/lander/pkg/core"
)

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure of a flight log.
type Export struct {
	FormatVersion int                 `json:"formatVersion"`
	Descent       Descent             `json:"descent"`
	Columns       []string            `json:"columns"`
	Ticks         [][]float64         `json:"ticks"`
	Steering      []Steering          `json:"steering"`
	PhaseChanges  []PhaseChange       `json:"phaseChanges"`
	Report        *core.LandingReport `json:"report,omitempty"`
}

// Descent is the header of the log.
type Descent struct {
	ID         uint           `json:"id"`
	StartTime  time.Time      `json:"startTime"`
	VesselName string         `json:"vesselName"`
	TargetName string         `json:"targetName"`
	BodyName   string         `json:"bodyName"`
	LinkType   string         `json:"linkType"`
	Tuning     map[string]any `json:"tuning,omitempty"`
}

// Steering holds the debug directions of one powered tick.
type Steering struct {
	Tick        uint64    `json:"tick"`
	Velocity    []float64 `json:"velocity,omitempty"`
	LineOfSight []float64 `json:"lineOfSight,omitempty"`
	Direction   []float64 `json:"direction,omitempty"`
	Fallback    string    `json:"fallback,omitempty"`
}

// PhaseChange is one transition, phases by name.
type PhaseChange struct {
	Tick     uint64  `json:"tick"`
	Offset   float64 `json:"offset"` // seconds since descent start
	From     string  `json:"from"`
	To       string  `json:"to"`
	Altitude float64 `json:"altitude"`
	Reason   string  `json:"reason"`
}
