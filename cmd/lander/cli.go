package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/descentctl/lander/internal/config"
	"github.com/descentctl/lander/internal/database"
	gormstorage "github.com/descentctl/lander/internal/storage/gorm"
	"github.com/descentctl/lander/pkg/core"
)

// reportEntry pairs a descent header with its landing report.
type reportEntry struct {
	Descent core.Descent       `json:"descent"`
	Report  core.LandingReport `json:"report"`
}

// runReport prints the landing reports of the given descents, or of all of them.
// A non-empty snapshot path also receives a copy of the database.
func runReport(ctx context.Context, configDir string, args []string, snapshot string, out io.Writer) error {
	s := startSession(ctx, configDir)
	defer s.close(ctx)

	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid descent ID %q: %w", arg, err)
		}
		ids = append(ids, uint(id))
	}

	db := database.NewManager(s.zlog.With().Str("component", "database").Logger())
	defer db.Close()

	storageCfg := config.GetStorageConfig()
	switch storageCfg.Type {
	case "postgres":
		if err := db.ConnectPostgres(config.GetDBConfig().DSN()); err != nil {
			return err
		}
	case "sqlite":
		if err := db.ConnectSQLite(storageCfg.SQLite.DumpPath); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage type %q keeps no queryable flight log", storageCfg.Type)
	}
	if err := db.Setup(); err != nil {
		return err
	}

	entries, err := loadReports(gormstorage.New(gormstorage.Dependencies{DB: db.DB, Logger: s.logger}), ids)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}
	if snapshot != "" {
		if storageCfg.Type != "sqlite" {
			return fmt.Errorf("snapshot needs sqlite storage, have %q", storageCfg.Type)
		}
		return db.DumpToDisk(snapshot)
	}
	return nil
}

func loadReports(b *gormstorage.Backend, ids []uint) ([]reportEntry, error) {
	reports, err := b.LandingReports(ids...)
	if err != nil {
		return nil, err
	}
	entries := make([]reportEntry, 0, len(reports))
	for _, r := range reports {
		d, err := b.Descent(r.DescentID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, reportEntry{Descent: d, Report: r})
	}
	return entries, nil
}
