// Package overlay streams debug vectors and phase events of a descent to a websocket
// viewer. Drawing is best effort; only the start and end of a descent are acknowledged.
package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/pkg/core"
	"github.com/descentctl/lander/pkg/streaming"
	"github.com/descentctl/lander/pkg/vecmath"
)

// Arrow colours, matching the in-game debug lines.
const (
	ColorVelocity    = "red"
	ColorLineOfSight = "blue"
	ColorSteering    = "green"
)

// Config holds overlay settings. Scales are the drawn arrow lengths in metres.
type Config struct {
	URL              string
	Secret           string
	VelocityScale    float64
	LineOfSightScale float64
	SteeringScale    float64
}

// Overlay draws up to three arrows per tick: velocity, line of sight and steering.
type Overlay struct {
	conn *connection
	cfg  Config
}

// New creates an overlay client; Init connects it.
func New(cfg Config, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the viewer.
func (o *Overlay) Init() error {
	return o.conn.dial(o.cfg.URL, o.cfg.Secret)
}

// Close disconnects from the viewer.
func (o *Overlay) Close() error {
	return o.conn.close()
}

// Dropped returns how many frames were discarded because the viewer fell behind.
func (o *Overlay) Dropped() uint64 {
	return o.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (o *Overlay) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	o.conn.send(data)
	return nil
}

// StartDescent announces a descent and waits for the viewer's ack.
func (o *Overlay) StartDescent(d *core.Descent) error {
	data, err := marshalEnvelope(streaming.TypeStartDescent, streaming.StartDescentPayload{Descent: d})
	if err != nil {
		return err
	}

	o.conn.setReplay(data)
	return o.conn.sendAndWait(data, streaming.TypeStartDescent, ackTimeout)
}

// EndDescent sends the landing report and waits for the viewer's ack.
func (o *Overlay) EndDescent(r *core.LandingReport) error {
	data, err := marshalEnvelope(streaming.TypeEndDescent, streaming.EndDescentPayload{Report: r})
	if err != nil {
		return err
	}
	err = o.conn.sendAndWait(data, streaming.TypeEndDescent, ackTimeout)

	o.conn.setReplay(nil)
	return err
}

// Draw clears the previous frame and draws the arrows of rec. Waiting-phase ticks,
// which carry no directions, clear the view.
func (o *Overlay) Draw(rec *core.TickRecord) error {
	return o.sendEnvelope(streaming.TypeDraw, o.Frame(rec))
}

// Frame builds the draw payload of one tick.
func (o *Overlay) Frame(rec *core.TickRecord) streaming.DrawPayload {
	p := rec.Vehicle.Position
	frame := streaming.DrawPayload{
		Tick:   rec.Tick,
		Phase:  rec.Phase.String(),
		Origin: [3]float64{p.X, p.Y, p.Z},
		Clear:  true,
		Arrows: make([]streaming.Arrow, 0, 3),
	}
	add := func(name string, dir *vecmath.Vector3, length float64, color string) {
		if dir == nil || length <= 0 {
			return
		}
		frame.Arrows = append(frame.Arrows, streaming.Arrow{
			Name:   name,
			Dir:    [3]float64{dir.X, dir.Y, dir.Z},
			Length: length,
			Color:  color,
		})
	}
	add("velocity", rec.VelocityDir, o.cfg.VelocityScale, ColorVelocity)
	add("lineOfSight", rec.LineOfSightDir, o.cfg.LineOfSightScale, ColorLineOfSight)
	add("steering", rec.SteeringDir, o.cfg.SteeringScale, ColorSteering)
	return frame
}

// PhaseChange puts a transition on the viewer timeline.
func (o *Overlay) PhaseChange(c *core.PhaseChange) error {
	return o.sendEnvelope(streaming.TypePhaseChange, streaming.PhaseChangePayload{
		Tick:     c.Tick,
		From:     c.From.String(),
		To:       c.To.String(),
		Altitude: c.Altitude,
		Reason:   c.Reason,
	})
}

// Handle is the side-channel subscriber.
func (o *Overlay) Handle(e dispatcher.Event) error {
	switch e.Kind {
	case dispatcher.KindDescentStart:
		return o.StartDescent(e.Descent)
	case dispatcher.KindTick:
		return o.Draw(e.Tick)
	case dispatcher.KindPhaseChange:
		return o.PhaseChange(e.Change)
	case dispatcher.KindDescentEnd:
		return o.EndDescent(e.Report)
	}
	return nil
}
