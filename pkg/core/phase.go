package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is the discrete state of the descent controller.
// Phases are ordered; a descent only ever moves to a higher value.
type Phase int

const (
	PhaseStaging Phase = iota + 1
	PhaseAscentWait
	PhaseFreefallWait
	PhasePoweredDescent
	PhaseGimbalLimited
	PhaseTerminalUpright
	PhaseTouchdown
	PhaseAborted
)

var phaseNames = map[Phase]string{
	PhaseStaging:         "STAGING",
	PhaseAscentWait:      "ASCENT_WAIT",
	PhaseFreefallWait:    "FREEFALL_WAIT",
	PhasePoweredDescent:  "POWERED_DESCENT",
	PhaseGimbalLimited:   "GIMBAL_LIMITED",
	PhaseTerminalUpright: "TERMINAL_UPRIGHT",
	PhaseTouchdown:       "TOUCHDOWN",
	PhaseAborted:         "ABORTED",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Terminal reports whether the control loop exits in this phase.
func (p Phase) Terminal() bool {
	return p == PhaseTouchdown || p == PhaseAborted
}

// Powered reports whether the descent engine is under guidance in this phase.
func (p Phase) Powered() bool {
	return p >= PhasePoweredDescent && p <= PhaseTerminalUpright
}

// Waiting reports whether the phase is a threshold wait before powered descent.
func (p Phase) Waiting() bool {
	return p >= PhaseStaging && p <= PhaseFreefallWait
}

// ParsePhase converts a phase name into a Phase.
func ParsePhase(value string) (Phase, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for p, name := range phaseNames {
		if name == normalized {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", value)
}

// MarshalJSON writes the phase name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON reads a phase name.
func (p *Phase) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParsePhase(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
