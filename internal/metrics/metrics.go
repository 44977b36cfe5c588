// Package metrics exposes the live descent as Prometheus gauges.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Path is where the scrape handler is mounted.
const Path = "/metrics"

// Exporter owns a registry with the descent gauges.
type Exporter struct {
	registry *prometheus.Registry

	altitude        prometheus.Gauge
	verticalSpeed   prometheus.Gauge
	speed           prometheus.Gauge
	mass            prometheus.Gauge
	throttle        prometheus.Gauge
	brakingAltitude prometheus.Gauge
	phase           *prometheus.GaugeVec
	ticks           prometheus.Counter
	transitions     *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	touchdownSpeed  prometheus.Gauge
}

// New registers the descent collectors on a fresh registry.
func New() *Exporter {
	e := &Exporter{
		registry:        prometheus.NewRegistry(),
		altitude:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_altitude_meters", Help: "Height above the surface."}),
		verticalSpeed:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_vertical_speed_mps", Help: "Surface-relative vertical speed."}),
		speed:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_speed_mps", Help: "Surface-relative speed."}),
		mass:            prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_mass_kg"}),
		throttle:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_throttle_ratio", Help: "Last commanded throttle."}),
		brakingAltitude: prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_braking_altitude_meters", Help: "Minimum altitude needed to stop at full thrust."}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lander_phase",
			Help: "1 for the current phase, 0 otherwise.",
		}, []string{"phase"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{Name: "lander_ticks_total"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lander_phase_transitions_total",
		}, []string{"from", "to"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lander_descents_total",
			Help: "Finished descents by outcome.",
		}, []string{"outcome"}),
		touchdownSpeed: prometheus.NewGauge(prometheus.GaugeOpts{Name: "lander_touchdown_speed_mps"}),
	}

	e.registry.MustRegister(
		e.altitude, e.verticalSpeed, e.speed, e.mass, e.throttle, e.brakingAltitude,
		e.phase, e.ticks, e.transitions, e.outcomes, e.touchdownSpeed,
	)
	return e
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the text exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Handle is the side-channel subscriber.
func (e *Exporter) Handle(ev dispatcher.Event) error {
	switch ev.Kind {
	case dispatcher.KindTick:
		e.observeTick(ev.Tick)
	case dispatcher.KindPhaseChange:
		e.transitions.WithLabelValues(ev.Change.From.String(), ev.Change.To.String()).Inc()
		e.setPhase(ev.Change.To)
	case dispatcher.KindDescentEnd:
		e.outcomes.WithLabelValues(ev.Report.Outcome.String()).Inc()
		e.touchdownSpeed.Set(ev.Report.TouchdownSpeed)
		e.setPhase(ev.Report.Outcome)
	}
	return nil
}

func (e *Exporter) observeTick(r *core.TickRecord) {
	e.ticks.Inc()
	e.altitude.Set(r.Vehicle.SurfaceAltitude)
	e.verticalSpeed.Set(r.Vehicle.VerticalSpeed)
	e.speed.Set(r.Vehicle.Speed)
	e.mass.Set(r.Vehicle.Mass)
	if r.Command.Throttle != nil {
		e.throttle.Set(*r.Command.Throttle)
	}
	if r.Phase.Powered() {
		e.brakingAltitude.Set(r.BrakingAltitude)
	}
	e.setPhase(r.Phase)
}

func (e *Exporter) setPhase(current core.Phase) {
	for p := core.PhaseStaging; p <= core.PhaseAborted; p++ {
		v := 0.0
		if p == current {
			v = 1
		}
		e.phase.WithLabelValues(p.String()).Set(v)
	}
}

// Serve runs the scrape endpoint until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(Path, e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", "address", addr, "path", Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
