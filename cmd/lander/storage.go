package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/descentctl/lander/internal/api"
	"github.com/descentctl/lander/internal/config"
	"github.com/descentctl/lander/internal/dispatcher"
	"github.com/descentctl/lander/internal/influx"
	"github.com/descentctl/lander/internal/logging"
	"github.com/descentctl/lander/internal/metrics"
	"github.com/descentctl/lander/internal/overlay"
	"github.com/descentctl/lander/internal/storage"
	"github.com/spf13/viper"
)

const (
	recorderBuffer = 8192
	sinkBuffer     = 1024
)

func initStorage(logger *slog.Logger) (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, config.GetDBConfig(), logger.With("component", "storage"))
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

// pendingRows reports the queued tick rows of backends that batch their writes.
func pendingRows(b storage.Backend) func() int {
	if p, ok := b.(interface{ Pending() int }); ok {
		return p.Pending
	}
	return nil
}

// sideChannel owns the dispatcher and every optional subscriber.
type sideChannel struct {
	dispatcher *dispatcher.Dispatcher
	influx     *influx.Manager
	overlay    *overlay.Overlay
	cancel     context.CancelFunc
	logger     *slog.Logger
}

func newSideChannel(ctx context.Context, s *session, backend storage.Backend) (*sideChannel, error) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(s.zlog.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	sc := &sideChannel{dispatcher: d, cancel: cancel, logger: s.logger}

	d.Subscribe("recorder", storage.Recorder(backend), storage.RecorderOptions(recorderBuffer)...)

	if ic := config.GetInfluxConfig(); ic.Enabled {
		m := influx.NewManager(s.zlog.With().Str("component", "influx").Logger(), influx.Config{
			URL:        ic.URL(),
			Token:      ic.Token,
			Org:        ic.Org,
			Bucket:     ic.Bucket,
			BackupPath: ic.BackupPath,
		})
		if err := m.Connect(ctx); err != nil {
			s.logger.Error("Failed to set up InfluxDB", "error", err)
		} else {
			sc.influx = m
			d.Subscribe("influx", m.Handle,
				dispatcher.Kinds(dispatcher.KindTick, dispatcher.KindPhaseChange, dispatcher.KindDescentEnd),
				dispatcher.Buffered(sinkBuffer),
				dispatcher.BlockOn(dispatcher.KindDescentEnd),
			)
		}
	}

	if oc := config.GetOverlayConfig(); oc.Enabled {
		o := overlay.New(overlay.Config{
			URL:              oc.URL,
			Secret:           oc.Secret,
			VelocityScale:    oc.VelocityScale,
			LineOfSightScale: oc.LineOfSightScale,
			SteeringScale:    oc.SteeringScale,
		}, s.logs.Component("overlay"))
		if err := o.Init(); err != nil {
			s.logger.Error("Failed to connect overlay", "url", oc.URL, "error", err)
		} else {
			sc.overlay = o
			d.Subscribe("overlay", o.Handle,
				dispatcher.Buffered(sinkBuffer),
				dispatcher.BlockOn(dispatcher.KindDescentStart, dispatcher.KindDescentEnd),
				dispatcher.Logged(),
			)
		}
	}

	if viper.GetBool("metrics.enabled") {
		e := metrics.New()
		d.Subscribe("metrics", e.Handle, dispatcher.Buffered(sinkBuffer))
		addr := viper.GetString("metrics.listenAddress")
		go func() {
			if err := e.Serve(ctx, addr, s.logs.Component("metrics")); err != nil {
				s.logger.Error("Metrics server failed", "address", addr, "error", err)
			}
		}()
	}

	return sc, nil
}

func (sc *sideChannel) overlayDropped() uint64 {
	if sc.overlay == nil {
		return 0
	}
	return sc.overlay.Dropped()
}

// close drains every subscriber, then releases the sinks.
func (sc *sideChannel) close() {
	sc.dispatcher.Close()
	if sc.influx != nil {
		if err := sc.influx.Close(); err != nil {
			sc.logger.Error("Failed to close InfluxDB writer", "error", err)
		}
	}
	if sc.overlay != nil {
		if err := sc.overlay.Close(); err != nil {
			sc.logger.Warn("Failed to close overlay", "error", err)
		}
	}
	sc.cancel()
}

func uploadFlightLog(ctx context.Context, backend storage.Backend, tag string, logger *slog.Logger) error {
	up, ok := backend.(storage.Uploadable)
	if !ok {
		return errors.New("storage backend does not produce uploadable files")
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return errors.New("no flight log was exported")
	}
	meta := up.GetExportMetadata()
	if tag != "" {
		meta.Tag = tag
	}

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(ctx); err != nil {
		return err
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		return err
	}
	logger.Info("Flight log uploaded", "path", path, "outcome", meta.Outcome)
	return nil
}
