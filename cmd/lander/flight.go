package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/descentctl/lander/internal/clock"
	"github.com/descentctl/lander/internal/config"
	"github.com/descentctl/lander/internal/guidance"
	"github.com/descentctl/lander/internal/monitor"
	"github.com/descentctl/lander/internal/phase"
	"github.com/descentctl/lander/internal/vessel"
	"github.com/descentctl/lander/internal/vessel/krpc"
	"github.com/descentctl/lander/internal/vessel/sim"
	"github.com/descentctl/lander/pkg/core"
	"github.com/spf13/viper"
)

const (
	linkKRPC = "krpc"
	linkSim  = "sim"
)

// guidanceConfig maps the config file onto the loop tuning.
func guidanceConfig(gc config.GuidanceConfig) guidance.Config {
	return guidance.Config{
		Frame:           core.FrameBody,
		LeadCoefficient: gc.LeadCoefficient,
		ImpactSpeed:     gc.ImpactSpeed,
		Phase: phase.Config{
			LowThrottle:           gc.LowThrottle,
			BrakingThrottle:       gc.BrakingThrottle,
			FreefallVerticalSpeed: gc.FreefallVerticalSpeed,
			GimbalAltitude:        gc.GimbalAltitude,
			GimbalLimit:           gc.GimbalLimit,
			UprightAltitude:       gc.UprightAltitude,
			TouchdownAltitude:     gc.TouchdownAltitude,
		},
		IgnitionDelay:   gc.IgnitionDelay,
		PollInterval:    gc.PollInterval,
		TickInterval:    gc.TickInterval,
		SASSettleDelay:  gc.SASSettleDelay,
		StaleTicks:      gc.StaleTicks,
		IgnitionTimeout: gc.IgnitionTimeout,
		AscentTimeout:   gc.AscentTimeout,
		FreefallTimeout: gc.FreefallTimeout,
	}
}

// openLink returns the vehicle link and the clock the loop runs on. The simulated
// vehicle is its own clock so a descent completes without wall-clock waits.
func openLink(ctx context.Context, linkType string, lc config.LinkConfig) (vessel.Link, clock.Clock, error) {
	switch linkType {
	case linkSim:
		s := sim.New(sim.DefaultConfig())
		return s, s, nil
	case linkKRPC:
		l, err := krpc.Dial(ctx, krpc.Config{Host: lc.KRPCHost})
		if err != nil {
			return nil, nil, err
		}
		return l, clock.Real{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown link type: %s", linkType)
	}
}

func runFlight(ctx context.Context, configDir, linkType, tag string) error {
	s := startSession(ctx, configDir)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.close(flushCtx)
	}()
	logger := s.logger

	link, clk, err := openLink(ctx, linkType, config.GetLinkConfig())
	if err != nil {
		logger.Error("Failed to open vehicle link", "link", linkType, "error", err)
		return err
	}
	defer func() {
		if err := link.Close(); err != nil {
			logger.Warn("Failed to close vehicle link", "error", err)
		}
	}()

	diag := vessel.Diagnostics{LinkType: linkType}
	if d, ok := link.(vessel.Describer); ok {
		if diag, err = d.Describe(); err != nil {
			logger.Warn("Failed to read link diagnostics", "error", err)
			diag.LinkType = linkType
		}
	}
	logger.Info("Vehicle link ready",
		"link", diag.LinkType,
		"serverVersion", diag.ServerVersion,
		"vessel", diag.VesselName,
		"body", diag.BodyName,
		"latitude", diag.Latitude,
		"longitude", diag.Longitude,
	)

	if ss, ok := link.(vessel.SurfaceSpeedSetter); ok {
		if err := ss.SetSpeedModeSurface(); err != nil {
			logger.Warn("Failed to switch speed display to surface", "error", err)
		}
	}

	gc := config.GetGuidanceConfig()
	cfg := guidanceConfig(gc)

	logger.Info("Waiting for a target", "timeout", gc.TargetTimeout)
	if _, err := vessel.WaitForTarget(ctx, link, clk, cfg.Frame, cfg.PollInterval, gc.TargetTimeout); err != nil {
		logger.Error("No target selected", "error", err)
		return err
	}

	backend, err := initStorage(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()

	sc, err := newSideChannel(ctx, s, backend)
	if err != nil {
		return err
	}

	descent := &core.Descent{
		StartTime:  clk.Now(),
		VesselName: diag.VesselName,
		TargetName: diag.TargetName,
		BodyName:   diag.BodyName,
		LinkType:   diag.LinkType,
		Tuning:     cfg.Tuning(),
	}
	if err := backend.StartDescent(descent); err != nil {
		sc.close()
		return fmt.Errorf("start descent: %w", err)
	}

	runner := guidance.NewRunner(guidance.Dependencies{
		Vehicle:   link,
		Clock:     clk,
		Logger:    s.logs.Component("guidance"),
		Publisher: sc.dispatcher,
	}, cfg)
	s.runner.Store(runner)

	var status *monitor.Service
	if viper.GetBool("status.enabled") {
		status = monitor.NewService(monitor.Dependencies{
			Source:   runner,
			Logger:   s.logs.Component("monitor"),
			Path:     viper.GetString("status.file"),
			Interval: viper.GetDuration("status.interval"),
			Pending:  pendingRows(backend),
			Dropped:  sc.overlayDropped,
		})
		if err := status.Start(); err != nil {
			logger.Warn("Failed to start status monitor", "error", err)
			status = nil
		}
	}

	logger.Info("Descent started", "descentId", descent.ID, "vessel", descent.VesselName, "target", descent.TargetName)
	report, runErr := runner.Run(ctx, descent)

	// drain the recorder so the flight log is complete before upload
	sc.close()
	if status != nil {
		status.Stop()
	}

	if report != nil {
		logger.Info("Landing report",
			"descentId", report.DescentID,
			"outcome", report.Outcome.String(),
			"duration", report.Duration,
			"ticks", report.Ticks,
			"touchdownSpeed", report.TouchdownSpeed,
			"missDistance", report.MissDistance,
		)
	}

	if viper.GetBool("api.uploadOnEnd") {
		if err := uploadFlightLog(ctx, backend, tag, logger); err != nil {
			logger.Error("Failed to upload flight log", "error", err)
		}
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		logger.Warn("Descent cancelled")
	}
	return runErr
}
