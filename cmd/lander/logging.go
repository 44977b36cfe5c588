package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/descentctl/lander/internal/config"
	"github.com/descentctl/lander/internal/guidance"
	"github.com/descentctl/lander/internal/logging"
	intOtel "github.com/descentctl/lander/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// session holds the process-wide logging state of one command.
type session struct {
	logs    *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	graylog io.Closer

	// runner is set once the descent loop exists; it feeds phase and tick into log records.
	runner atomic.Pointer[guidance.Runner]
}

// startSession loads the config and wires file, Graylog and OTel logging.
func startSession(ctx context.Context, configDir string) *session {
	s := &session{logs: logging.NewSlogManager()}
	s.logs.Setup(nil, "info", nil)
	s.logger = s.logs.Logger()

	if err := config.Load(configDir); err != nil {
		s.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		s.logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		s.logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	logPath := logging.LogFilePath(logsDir, appName, SessionStartTime)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	file, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		s.logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		s.logFile = file
	}

	level := viper.GetString("logLevel")
	zerologOut := io.Writer(os.Stdout)
	if s.logFile != nil {
		zerologOut = s.logFile
	}
	s.zlog = logging.NewZerolog(zerologOut, level, appName)

	var provider *sdklog.LoggerProvider
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var logWriter io.Writer
		if s.logFile != nil {
			logWriter = s.logFile
		}
		s.otel, err = intOtel.New(ctx, intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logWriter,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			s.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			provider = s.otel.LoggerProvider()
		}
	}

	opts := logging.Options{
		Level:    level,
		Provider: provider,
		Context:  s.logAttrs,
	}
	if s.logFile != nil {
		opts.File = s.logFile
	}
	if viper.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			s.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			opts.Graylog = gw
			s.graylog = gw
		}
	}

	s.logs.SetupWith(opts)
	s.logger = s.logs.Logger()
	s.logger.Info("Starting", "app", appName, "version", Version, "build", BuildDate, "log", logPath)
	return s
}

func (s *session) logAttrs() []slog.Attr {
	if r := s.runner.Load(); r != nil {
		return r.LogAttrs()
	}
	return nil
}

// close flushes OTel and closes the log sinks.
func (s *session) close(ctx context.Context) {
	if err := s.logs.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown otel: %v\n", err)
		}
	}
	if s.graylog != nil {
		_ = s.graylog.Close()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}
