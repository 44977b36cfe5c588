package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/descentctl/lander/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Kind identifies what an Event carries.
type Kind string

const (
	KindDescentStart Kind = "descent_start"
	KindTick         Kind = "tick"
	KindPhaseChange  Kind = "phase_change"
	KindDescentEnd   Kind = "descent_end"
)

// Event is one observation published by the control loop.
// Exactly one of the payload pointers is set, matching Kind.
type Event struct {
	Kind      Kind
	Timestamp time.Time

	Descent *core.Descent
	Tick    *core.TickRecord
	Change  *core.PhaseChange
	Report  *core.LandingReport
}

// HandlerFunc consumes an event.
type HandlerFunc func(Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures subscriber registration.
type Option func(*config)

type config struct {
	bufferSize int
	blockOn    map[Kind]bool
	kinds      map[Kind]bool
	logged     bool
}

// Buffered makes the subscriber async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// BlockOn makes the listed kinds wait for queue space instead of being dropped.
// Use it for events a consumer cannot lose, such as the start and end of a descent.
func BlockOn(kinds ...Kind) Option {
	return func(c *config) {
		for _, k := range kinds {
			c.blockOn[k] = true
		}
	}
}

// Kinds restricts the subscriber to the listed kinds. Without it every kind is delivered.
func Kinds(kinds ...Kind) Option {
	return func(c *config) {
		for _, k := range kinds {
			c.kinds[k] = true
		}
	}
}

// Logged adds debug logging to the subscriber.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type subscriber struct {
	name    string
	kinds   map[Kind]bool
	deliver func(Event) error
}

// Dispatcher fans control-loop events out to subscribers.
// Publishing never waits on a slow subscriber unless it asked for BlockOn.
type Dispatcher struct {
	subscribers []*subscriber
	logger      Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool
	wg      sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		buffers: make(map[string]chan Event),
		logger:  logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"sidechannel.queue.size",
		metric.WithDescription("Current number of events waiting per subscriber"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for name, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("subscriber", name)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"sidechannel.events.processed",
		metric.WithDescription("Total events handled by subscribers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"sidechannel.events.dropped",
		metric.WithDescription("Total events dropped due to a full subscriber queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"sidechannel.events.failed",
		metric.WithDescription("Total events a subscriber returned an error for"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Subscribe adds a named consumer. Subscribe before the first Publish.
func (d *Dispatcher) Subscribe(name string, h HandlerFunc, opts ...Option) {
	cfg := &config{blockOn: map[Kind]bool{}, kinds: map[Kind]bool{}}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.logged {
		handler = d.withLogging(name, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(name, cfg.bufferSize, cfg.blockOn, handler)
	}

	d.subscribers = append(d.subscribers, &subscriber{name: name, kinds: cfg.kinds, deliver: handler})
}

// HasSubscriber returns true if a subscriber with the given name exists.
func (d *Dispatcher) HasSubscriber(name string) bool {
	for _, s := range d.subscribers {
		if s.name == name {
			return true
		}
	}
	return false
}

// Publish hands e to every interested subscriber. The returned error joins the
// per-subscriber failures (drops included); it is informational only.
func (d *Dispatcher) Publish(e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.New("dispatcher closed")
	}

	var errs []error
	for _, s := range d.subscribers {
		if len(s.kinds) > 0 && !s.kinds[e.Kind] {
			continue
		}
		if err := s.deliver(e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and waits until every buffered subscriber has drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) withBuffer(name string, size int, blockOn map[Kind]bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[name] = buffer
	d.mu.Unlock()

	nameAttr := attribute.String("subscriber", name)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if err := h(e); err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(nameAttr))
				d.logger.Error("subscriber failed", "subscriber", name, "kind", string(e.Kind), "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(nameAttr))
		}
	}()

	return func(e Event) error {
		if blockOn[e.Kind] {
			buffer <- e
			return nil
		}
		select {
		case buffer <- e:
			return nil
		default:
			d.dropped.Add(context.Background(), 1,
				metric.WithAttributes(nameAttr, attribute.String("kind", string(e.Kind))))
			return fmt.Errorf("queue full, dropped %s", e.Kind)
		}
	}
}

func (d *Dispatcher) withLogging(name string, h HandlerFunc) HandlerFunc {
	return func(e Event) error {
		start := time.Now()
		d.logger.Debug("handling event", "subscriber", name, "kind", string(e.Kind))

		err := h(e)

		if err != nil {
			d.logger.Error("event failed", "subscriber", name, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "subscriber", name, "duration", time.Since(start))
		}

		return err
	}
}
