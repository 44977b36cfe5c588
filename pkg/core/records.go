package core

import (
	"time"

	"github.com/descentctl/lander/pkg/vecmath"
)

// Descent describes one guided descent from first staging to the terminal phase.
type Descent struct {
	ID         uint      `json:"id"`
	StartTime  time.Time `json:"startTime"`
	VesselName string    `json:"vesselName"`
	TargetName string    `json:"targetName"`
	BodyName   string    `json:"bodyName"`
	LinkType   string    `json:"linkType"`
	// Tuning holds the guidance parameters in effect, for later comparison between runs.
	Tuning map[string]any `json:"tuning"`
}

// TickRecord is the per-tick observation handed to the side channel after actuation.
type TickRecord struct {
	DescentID        uint                 `json:"descentId"`
	Tick             uint64               `json:"tick"`
	Time             time.Time            `json:"time"`
	Phase            Phase                `json:"phase"`
	Vehicle          KinematicSample      `json:"vehicle"`
	Target           *KinematicSample     `json:"target,omitempty"`
	Environment      EnvironmentConstants `json:"environment"`
	VelocityDir      *vecmath.Vector3     `json:"velocityDir,omitempty"`
	LineOfSightDir   *vecmath.Vector3     `json:"lineOfSightDir,omitempty"`
	SteeringDir      *vecmath.Vector3     `json:"steeringDir,omitempty"`
	SteeringFallback string               `json:"steeringFallback,omitempty"`
	BrakingAltitude  float64              `json:"brakingAltitude"`
	StoppingEnergy   float64              `json:"stoppingEnergy"`
	Command          ActuationCommand     `json:"command"`
	GroundContact    bool                 `json:"groundContact"`
}

// PhaseChange marks a transition of the phase state machine.
type PhaseChange struct {
	DescentID uint      `json:"descentId"`
	Tick      uint64    `json:"tick"`
	Time      time.Time `json:"time"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Altitude  float64   `json:"altitude"`
	Reason    string    `json:"reason"`
}

// LandingReport summarizes the end of a descent.
type LandingReport struct {
	DescentID              uint          `json:"descentId"`
	EndTime                time.Time     `json:"endTime"`
	Outcome                Phase         `json:"outcome"`
	Duration               time.Duration `json:"duration"`
	Ticks                  uint64        `json:"ticks"`
	TouchdownSpeed         float64       `json:"touchdownSpeed"`
	TouchdownVerticalSpeed float64       `json:"touchdownVerticalSpeed"`
	MissDistance           float64       `json:"missDistance"`
	SurfaceMissDistance    float64       `json:"surfaceMissDistance"`
	Latitude               float64       `json:"latitude"`
	Longitude              float64       `json:"longitude"`
	Error                  string        `json:"error,omitempty"`
}

// UploadMetadata accompanies an exported flight log sent to a report server.
type UploadMetadata struct {
	VesselName string  `json:"vesselName"`
	BodyName   string  `json:"bodyName"`
	Outcome    string  `json:"outcome"`
	Duration   float64 `json:"duration"` // seconds
	Tag        string  `json:"tag"`
}
