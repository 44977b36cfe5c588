package dispatcher

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/descentctl/lander/pkg/core"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func tickEvent(n uint64) Event {
	return Event{Kind: KindTick, Tick: &core.TickRecord{Tick: n}}
}

func TestDispatcher_SyncSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got []uint64
	d.Subscribe("sync", func(e Event) error {
		got = append(got, e.Tick.Tick)
		return nil
	})

	if err := d.Publish(tickEvent(1)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("expected tick 1 delivered, got %v", got)
	}
}

func TestDispatcher_FansOutToAllSubscribers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var a, b atomic.Int32
	d.Subscribe("a", func(e Event) error { a.Add(1); return nil })
	d.Subscribe("b", func(e Event) error { b.Add(1); return nil })

	d.Publish(tickEvent(1))
	d.Publish(tickEvent(2))

	if a.Load() != 2 || b.Load() != 2 {
		t.Errorf("expected both subscribers to see 2 events, got %d and %d", a.Load(), b.Load())
	}
}

func TestDispatcher_KindsFilter(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var kinds []Kind
	d.Subscribe("ends", func(e Event) error {
		kinds = append(kinds, e.Kind)
		return nil
	}, Kinds(KindDescentStart, KindDescentEnd))

	d.Publish(Event{Kind: KindDescentStart, Descent: &core.Descent{ID: 1}})
	d.Publish(tickEvent(1))
	d.Publish(Event{Kind: KindPhaseChange, Change: &core.PhaseChange{}})
	d.Publish(Event{Kind: KindDescentEnd, Report: &core.LandingReport{}})

	if len(kinds) != 2 || kinds[0] != KindDescentStart || kinds[1] != KindDescentEnd {
		t.Errorf("expected only start and end, got %v", kinds)
	}
}

func TestDispatcher_PublishStampsTime(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var stamp time.Time
	d.Subscribe("stamp", func(e Event) error {
		stamp = e.Timestamp
		return nil
	})
	d.Publish(tickEvent(1))

	if stamp.IsZero() {
		t.Error("expected publish to set a timestamp")
	}
}

func TestDispatcher_BufferedSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Subscribe("buffered", func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Publish(tickEvent(uint64(i))); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Subscribe("full", func(e Event) error {
		<-block
		return nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Publish(tickEvent(1))
	d.Publish(tickEvent(2))
	d.Publish(tickEvent(3))

	// This should be dropped
	err := d.Publish(tickEvent(4))

	if err == nil {
		t.Error("expected error when queue is full")
	} else if !strings.Contains(err.Error(), "full") {
		t.Errorf("expected the error to name the subscriber and the drop, got %v", err)
	}

	close(block)
	d.Close()
}

func TestDispatcher_BlockOnWaitsForSpace(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	d.Subscribe("recorder", func(e Event) error {
		once.Do(func() { close(started) })
		<-block
		return nil
	}, Buffered(1), BlockOn(KindDescentEnd))

	// First event starts processing
	d.Publish(tickEvent(1))
	<-started
	// Second event fills the queue
	d.Publish(tickEvent(2))

	// ticks are still dropped
	if err := d.Publish(tickEvent(3)); err == nil {
		t.Error("expected tick to be dropped")
	}

	// the end of the descent waits (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Publish(Event{Kind: KindDescentEnd, Report: &core.LandingReport{}})
		close(done)
	}()

	select {
	case <-done:
		t.Error("publish should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - publish is blocking
	}

	close(block)
	<-done
	d.Close()
}

func TestDispatcher_CloseDrains(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Subscribe("slow", func(e Event) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		d.Publish(tickEvent(uint64(i)))
	}
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected all 5 events drained on close, got %d", processed.Load())
	}
	if err := d.Publish(tickEvent(6)); err == nil {
		t.Error("expected publish after close to fail")
	}

	// second close is a no-op
	d.Close()
}

func TestDispatcher_LoggedSubscriber(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("logged", func(e Event) error {
		return nil
	}, Logged())

	d.Publish(tickEvent(1))

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_BufferedSubscriberErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Subscribe("failing", func(e Event) error {
		return fmt.Errorf("test error")
	}, Buffered(4))

	d.Publish(tickEvent(1))
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if strings.HasPrefix(msg, "ERROR") {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasSubscriber(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Subscribe("exists", func(e Event) error { return nil })

	if !d.HasSubscriber("exists") {
		t.Error("expected subscriber to exist")
	}

	if d.HasSubscriber("missing") {
		t.Error("expected subscriber to not exist")
	}
}
