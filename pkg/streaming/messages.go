// Package streaming defines the overlay wire protocol: JSON envelopes over a websocket,
// acknowledged for the start and end of a descent.
package streaming

import (
	"encoding/json"

	"github.com/descentctl/lander/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartDescent = "start_descent"
	TypeEndDescent   = "end_descent"
	TypeDraw         = "draw"
	TypePhaseChange  = "phase_change"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartDescentPayload announces a descent.
type StartDescentPayload struct {
	Descent *core.Descent `json:"descent"`
}

// EndDescentPayload closes a descent.
type EndDescentPayload struct {
	Report *core.LandingReport `json:"report"`
}

// Arrow is one debug vector anchored at the vehicle.
type Arrow struct {
	Name   string     `json:"name"`
	Dir    [3]float64 `json:"dir"`
	Length float64    `json:"length"`
	Color  string     `json:"color"`
}

// DrawPayload replaces everything drawn for the previous tick.
type DrawPayload struct {
	Tick   uint64     `json:"tick"`
	Phase  string     `json:"phase"`
	Origin [3]float64 `json:"origin"`
	Clear  bool       `json:"clear"`
	Arrows []Arrow    `json:"arrows"`
}

// PhaseChangePayload marks a transition on the viewer timeline.
type PhaseChangePayload struct {
	Tick     uint64  `json:"tick"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Altitude float64 `json:"altitude"`
	Reason   string  `json:"reason"`
}
