// Package bootstrap wires the shared runtime used by every CLI command:
// configuration, database engine, schema, and the demo-mode manager.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"tickettracker/internal/application/demo"
	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/database"
	"tickettracker/internal/infrastructure/persistence/migrations"
)

const (
	// defaultSnapshotRoot holds demo-mode snapshots and state, relative to
	// the working directory unless overridden by the environment.
	defaultSnapshotRoot = "instance/demo_snapshot"
	// defaultDatasetDir is where the bundled sample dataset ships.
	defaultDatasetDir = "demo_data"

	// EnvSnapshotRoot overrides the demo snapshot directory.
	EnvSnapshotRoot = "TICKETTRACKER_DEMO_SNAPSHOT_DIR"
	// EnvDatasetDir overrides the demo dataset directory.
	EnvDatasetDir = "TICKETTRACKER_DEMO_DATA_DIR"
)

// App bundles the long-lived services a command operates on.
type App struct {
	Store  *config.Store
	Engine *database.Engine
	Demo   *demo.Manager
}

// Open loads configuration, connects the database, ensures the schema and
// uploads directory exist, and restores any persisted demo-mode state.
func Open(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store := config.NewStore(cfg)

	engine := database.NewEngine(cfg.DatabaseURI)
	if err := engine.CreateSchema(); err != nil {
		return nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}

	if err := os.MkdirAll(cfg.UploadsDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	db, err := engine.Get()
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db, cfg.UploadsDirectory); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	manager, err := demo.NewManager(store, engine, snapshotRoot(), datasetDir())
	if err != nil {
		return nil, fmt.Errorf("failed to restore demo-mode state: %w", err)
	}

	return &App{Store: store, Engine: engine, Demo: manager}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.Engine.Dispose()
}

func snapshotRoot() string {
	if dir := os.Getenv(EnvSnapshotRoot); dir != "" {
		return dir
	}
	return filepath.FromSlash(defaultSnapshotRoot)
}

func datasetDir() string {
	if dir := os.Getenv(EnvDatasetDir); dir != "" {
		return dir
	}
	return defaultDatasetDir
}
