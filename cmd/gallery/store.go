package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/gallery/internal/api"
	"github.com/kalambet/gallery/internal/config"
	"github.com/kalambet/gallery/internal/profile"
	"github.com/kalambet/gallery/internal/storage"
	"github.com/kalambet/gallery/internal/storage/postgres"
	"github.com/kalambet/gallery/internal/worker"
)

// backingStore is what the server needs from either storage driver.
type backingStore interface {
	profile.Repository
	worker.JobStore
	api.MuseumLister
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ backingStore = (*storage.Store)(nil)
	_ backingStore = (*postgres.Store)(nil)
)

// openStore opens the configured driver. Postgres schema changes are applied
// first so a fresh database is usable without a separate migrate step.
func openStore(ctx context.Context, cfg config.Config) (backingStore, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		m, err := postgres.NewMigrator(cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		if err := m.Up(); err != nil {
			return nil, fmt.Errorf("migrating postgres: %w", err)
		}
		return postgres.Open(ctx, cfg.Storage.DSN)
	default:
		s, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		return s, nil
	}
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}
