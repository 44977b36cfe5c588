package storage

import (
	"fmt"
	"log/slog"

	"github.com/descentctl/lander/internal/config"
	"github.com/descentctl/lander/internal/database"
	gormstorage "github.com/descentctl/lander/internal/storage/gorm"
	"github.com/descentctl/lander/internal/storage/memory"
	sqlitestorage "github.com/descentctl/lander/internal/storage/sqlite"
)

// Compile-time interface checks
var (
	_ Backend    = (*memory.Backend)(nil)
	_ Uploadable = (*memory.Backend)(nil)
	_ Backend    = (*gormstorage.Backend)(nil)
	_ Reader     = (*gormstorage.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Reader     = (*sqlitestorage.Backend)(nil)
)

// NewBackend creates a storage backend based on configuration. Init is left to the caller.
func NewBackend(cfg config.StorageConfig, db config.DBConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval:  cfg.SQLite.DumpInterval,
			DumpPath:      cfg.SQLite.DumpPath,
			FlushInterval: cfg.FlushInterval,
		}, logger)
	case "postgres":
		conn, err := database.OpenPostgres(db.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:            conn,
			Logger:        logger,
			FlushInterval: cfg.FlushInterval,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
