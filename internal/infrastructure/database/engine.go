// Package database manages the SQLite connection lifecycle. The engine opens
// lazily and can be disposed and reopened, which the demo-mode manager relies
// on when it swaps the database file underneath the application.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/shared/logger"
)

// Engine wraps a lazily-opened gorm connection to a SQLite database file.
type Engine struct {
	mu  sync.Mutex
	uri string
	db  *gorm.DB
}

// NewEngine creates an engine for the given database URI. The connection is
// not opened until first use.
func NewEngine(databaseURI string) *Engine {
	return &Engine{uri: databaseURI}
}

// URI returns the configured database URI.
func (e *Engine) URI() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uri
}

// Path returns the on-disk path of the SQLite database file.
func (e *Engine) Path() (string, error) {
	return config.SQLitePath(e.URI())
}

// Get returns the shared gorm handle, opening the connection if needed.
func (e *Engine) Get() (*gorm.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db != nil {
		return e.db, nil
	}

	path, err := config.SQLitePath(e.uri)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database pool: %w", err)
	}
	// SQLite serializes writers; a small pool avoids lock contention.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Debug("database opened", "path", path)
	e.db = db
	return e.db, nil
}

// Dispose closes the underlying connection pool so the database file can be
// replaced or deleted. The next Get reopens against the current URI.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.db == nil {
		return nil
	}
	sqlDB, err := e.db.DB()
	e.db = nil
	if err != nil {
		return fmt.Errorf("failed to access database pool: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateSchema creates all application tables that do not yet exist.
func (e *Engine) CreateSchema() error {
	db, err := e.Get()
	if err != nil {
		return err
	}
	if err := SetupSchema(db); err != nil {
		return err
	}
	return nil
}

// SetupSchema registers the join table model and creates any missing tables
// on the given handle.
func SetupSchema(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Ticket{}, "Tags", &models.TicketTag{}); err != nil {
		return fmt.Errorf("failed to set up join table: %w", err)
	}
	if err := db.SetupJoinTable(&models.Tag{}, "Tickets", &models.TicketTag{}); err != nil {
		return fmt.Errorf("failed to set up join table: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Ticket{},
		&models.Tag{},
		&models.TicketTag{},
		&models.TicketUpdate{},
		&models.Attachment{},
	); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
