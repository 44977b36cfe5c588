// Package monitor periodically writes the live descent status to a file.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/descentctl/lander/internal/guidance"
)

// StatusSource is implemented by guidance.Runner.
type StatusSource interface {
	Status() guidance.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source   StatusSource
	Logger   *slog.Logger
	Path     string
	Interval time.Duration
	// Pending reports rows still waiting in a storage queue. Optional.
	Pending func() int
	// Dropped reports overlay messages lost to a full send buffer. Optional.
	Dropped func() uint64
}

// Snapshot is what gets written to the status file.
type Snapshot struct {
	Time           time.Time       `json:"time"`
	Descent        guidance.Status `json:"descent"`
	PendingRows    int             `json:"pendingRows"`
	OverlayDropped uint64          `json:"overlayDropped"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current status.
func (s *Service) Snapshot() Snapshot {
	snap := Snapshot{
		Time:    time.Now(),
		Descent: s.deps.Source.Status(),
	}
	if s.deps.Pending != nil {
		snap.PendingRows = s.deps.Pending()
	}
	if s.deps.Dropped != nil {
		snap.OverlayDropped = s.deps.Dropped()
	}
	return snap
}

// WriteStatus replaces the status file contents with the current snapshot.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := s.deps.Path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return os.Rename(tmp, s.deps.Path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if s.deps.Source == nil {
		return fmt.Errorf("monitor: no status source")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopChan, s.done)
	return nil
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := s.deps.Logger
	logger.Debug("Starting status monitor", "path", s.deps.Path, "interval", s.deps.Interval)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
			return
		case <-ticker.C:
			if s.deps.Source.Status().DescentID == 0 {
				continue
			}
			if err := s.WriteStatus(); err != nil {
				logger.Error("Error writing status file", "error", err)
			}
		}
	}
}

// Stop stops the status monitor and writes a final snapshot.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
