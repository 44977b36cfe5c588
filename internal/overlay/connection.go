package overlay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/descentctl/lander/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	outboxSize    = 512
	redialLimit   = 5
	firstBackoff  = 500 * time.Millisecond
	maxBackoff    = 8 * time.Second
	writeWait     = 2 * time.Second
	pingPeriod    = 15 * time.Second
	ackTimeout    = 5 * time.Second
	handshakeWait = 5 * time.Second

	secretHeader = "X-Overlay-Secret"
)

var errStopped = errors.New("overlay connection stopped")

// connection keeps one viewer socket alive. The pump goroutine owns the socket for
// writing; a reader per socket routes acks to whoever waits for them.
type connection struct {
	target *url.URL
	header http.Header
	logger *slog.Logger

	outbox  chan []byte
	dropped atomic.Uint64

	mu      sync.Mutex
	waiters map[string][]chan struct{}
	replay  []byte // start_descent of the descent in progress

	pumping atomic.Bool

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		logger:  logger,
		outbox:  make(chan []byte, outboxSize),
		waiters: make(map[string][]chan struct{}),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// dial connects once synchronously, so a wrong URL or secret fails Init, then hands
// the socket to the pump.
func (c *connection) dial(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid overlay URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid overlay URL scheme %q", u.Scheme)
	}
	c.target = u
	c.header = http.Header{}
	if secret != "" {
		c.header.Set(secretHeader, secret)
	}

	conn, err := c.open()
	if err != nil {
		return err
	}
	c.pumping.Store(true)
	go c.pump(conn)
	return nil
}

func (c *connection) open() (*ws.Conn, error) {
	dialer := ws.Dialer{HandshakeTimeout: handshakeWait}
	conn, resp, err := dialer.Dial(c.target.String(), c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("overlay dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("overlay dial failed: %w", err)
	}
	return conn, nil
}

// pump serves sockets until stopped or until redialing gives up. Afterwards the
// outbox fills and further frames are counted as dropped.
func (c *connection) pump(conn *ws.Conn) {
	defer close(c.stopped)
	for conn != nil {
		err := c.serve(conn)
		if errors.Is(err, errStopped) {
			return
		}
		c.logger.Warn("Overlay connection lost", "error", err)
		conn = c.redial()
	}
}

// serve writes queued frames and keepalive pings to conn until it fails.
func (c *connection) serve(conn *ws.Conn) error {
	defer conn.Close()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readAcks(conn) }()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.stop:
			_ = conn.WriteControl(ws.CloseMessage,
				ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return errStopped
		case err := <-readErr:
			return err
		case <-ping.C:
			if err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case data := <-c.outbox:
			if err := write(conn, data); err != nil {
				return err
			}
		}
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *connection) readAcks(conn *ws.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring viewer message", "raw", string(message))
			continue
		}
		c.acknowledge(ack.For)
	}
}

// redial retries with doubling backoff and replays the start of the descent in
// progress so the viewer can resume drawing. It returns nil when giving up.
func (c *connection) redial() *ws.Conn {
	backoff := firstBackoff
	for attempt := 1; attempt <= redialLimit; attempt++ {
		select {
		case <-c.stop:
			return nil
		case <-time.After(backoff):
		}

		conn, err := c.open()
		if err == nil {
			c.mu.Lock()
			replay := c.replay
			c.mu.Unlock()
			if replay == nil {
				c.logger.Info("Overlay reconnected", "attempt", attempt)
				return conn
			}
			if err = write(conn, replay); err == nil {
				c.logger.Info("Overlay reconnected", "attempt", attempt, "replayed", streaming.TypeStartDescent)
				return conn
			}
			_ = conn.Close()
		}

		c.logger.Warn("Overlay redial failed", "attempt", attempt, "backoff", backoff, "error", err)
		backoff = min(backoff*2, maxBackoff)
	}
	c.logger.Error("Overlay unreachable, giving up", "attempts", redialLimit)
	return nil
}

func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

// expect registers interest in the next ack of msgType. Register before sending so a
// fast ack cannot be missed.
func (c *connection) expect(msgType string) <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	c.waiters[msgType] = append(c.waiters[msgType], ch)
	c.mu.Unlock()
	return ch
}

func (c *connection) acknowledge(msgType string) {
	c.mu.Lock()
	queue := c.waiters[msgType]
	if len(queue) == 0 {
		c.mu.Unlock()
		return
	}
	ch := queue[0]
	c.waiters[msgType] = queue[1:]
	c.mu.Unlock()
	ch <- struct{}{}
}

func (c *connection) forget(msgType string, ch <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[msgType]
	for i, w := range queue {
		if w == ch {
			c.waiters[msgType] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

// send queues data without blocking. Frames that do not fit are dropped and counted.
func (c *connection) send(data []byte) {
	select {
	case c.outbox <- data:
	default:
		if n := c.dropped.Add(1); n%100 == 1 {
			c.logger.Warn("Overlay outbox full, dropping frames", "dropped", n)
		}
	}
}

// sendAndWait queues data and blocks until the viewer acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	select {
	case <-c.stop:
		return fmt.Errorf("%w before %s", errStopped, ackFor)
	default:
	}

	acked := c.expect(ackFor)
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-acked:
		return nil
	case <-timer.C:
		c.forget(ackFor, acked)
		return fmt.Errorf("timeout waiting for ack of %q", ackFor)
	case <-c.stop:
		c.forget(ackFor, acked)
		return fmt.Errorf("%w while waiting for ack of %q", errStopped, ackFor)
	}
}

// close sends a close frame and waits for the pump to exit.
func (c *connection) close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if !c.pumping.Load() {
		return nil
	}
	select {
	case <-c.stopped:
	case <-time.After(writeWait + time.Second):
		return errors.New("overlay connection did not stop in time")
	}
	return nil
}
