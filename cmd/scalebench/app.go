package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/basekick-labs/scalebench/internal/config"
	"github.com/basekick-labs/scalebench/internal/database"
	"github.com/basekick-labs/scalebench/internal/dataset"
	"github.com/basekick-labs/scalebench/internal/logger"
	"github.com/basekick-labs/scalebench/internal/shutdown"
	"github.com/basekick-labs/scalebench/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// app holds what every engine-backed command needs
type app struct {
	cfg      *config.Config
	db       *database.DuckDB
	storage  *storage.Config
	shutdown *shutdown.Coordinator
	logger   zerolog.Logger
}

func newApp(cfg *config.Config) (*app, error) {
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log := logger.Get("main")

	coordinator := shutdown.New(shutdownTimeout, logger.Get("shutdown"))

	db, err := database.New(&database.Config{
		MaxConnections: cfg.Database.MaxConnections,
		MemoryLimit:    cfg.Database.MemoryLimit,
		TempDirectory:  cfg.Database.TempDirectory,
	}, logger.Get("database"))
	if err != nil {
		return nil, err
	}
	coordinator.Register("database", db, shutdown.PriorityDatabase)

	return &app{
		cfg:      cfg,
		db:       db,
		storage:  storageConfig(cfg.Storage),
		shutdown: coordinator,
		logger:   log,
	}, nil
}

func (a *app) load(ctx context.Context, uri string) (*dataset.Table, error) {
	loader := dataset.NewLoader(a.db, a.storage, a.cfg.Storage.StagingDir, logger.Get("dataset"))
	return loader.Load(ctx, uri)
}

// close releases everything registered with the coordinator
func (a *app) close() {
	if err := a.shutdown.Shutdown(); err != nil {
		a.logger.Error().Err(err).Msg("Shutdown completed with errors")
	}
}
