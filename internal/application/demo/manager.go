package demo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/database"
	"tickettracker/internal/infrastructure/persistence/migrations"
	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/shared/logger"
)

// Manager coordinates the demo-mode lifecycle. It is not safe for concurrent
// transitions; at most one enable/disable/refresh is expected in flight at a
// time.
type Manager struct {
	engine       *database.Engine
	configStore  *config.Store
	snapshotRoot string
	datasetDir   string
	datasetPath  string
	state        *State
	lastLoaded   *time.Time
}

// NewManager builds a manager rooted at the given snapshot directory,
// restoring any persisted state from a previous run.
func NewManager(configStore *config.Store, engine *database.Engine, snapshotRoot, datasetDir string) (*Manager, error) {
	state, err := LoadState(snapshotRoot)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		engine:       engine,
		configStore:  configStore,
		snapshotRoot: snapshotRoot,
		datasetDir:   datasetDir,
		datasetPath:  filepath.Join(datasetDir, state.DatasetName),
		state:        state,
	}
	if state.LastLoadedAt != nil {
		if parsed, err := parseDatetime(*state.LastLoadedAt); err == nil {
			m.lastLoaded = parsed
		}
	}
	return m, nil
}

// IsActive reports whether demo mode is currently active.
func (m *Manager) IsActive() bool {
	return m.state.Active
}

// LastLoadedAt returns when the dataset was last loaded, if known.
func (m *Manager) LastLoadedAt() *time.Time {
	return m.lastLoaded
}

// Status summarizes the manager for presentation layers.
type Status struct {
	Active       bool
	Dataset      string
	SnapshotRoot string
	LastLoadedAt *time.Time
}

// Status returns runtime status metadata.
func (m *Manager) Status() Status {
	return Status{
		Active:       m.state.Active,
		Dataset:      m.datasetPath,
		SnapshotRoot: m.snapshotRoot,
		LastLoadedAt: m.lastLoaded,
	}
}

func (m *Manager) dataset() (string, error) {
	if _, err := os.Stat(m.datasetPath); err != nil {
		return "", apperrors.NewDemoModeErrorf("Demo dataset missing: %s", m.datasetPath)
	}
	return m.datasetPath, nil
}

func (m *Manager) uploadsPath() string {
	return m.configStore.Current().UploadsDirectory
}

// databasePath validates the configured URI and returns the live database
// file path. Demo mode snapshots by file copy, so only file-backed SQLite
// databases are supported.
func (m *Manager) databasePath() (string, error) {
	uri := m.configStore.Current().DatabaseURI
	if strings.HasSuffix(uri, "/:memory:") {
		return "", apperrors.NewDemoModeError("Demo mode does not support in-memory SQLite databases.")
	}
	if !strings.HasPrefix(uri, "sqlite:///") {
		return "", apperrors.NewDemoModeError("Demo mode currently supports only SQLite database URIs.")
	}
	return config.SQLitePath(uri)
}

// Enable activates demo mode, snapshotting live data on first activation.
// Any failure while replacing live state restores the snapshot before the
// error is returned.
func (m *Manager) Enable() error {
	datasetPath, err := m.dataset()
	if err != nil {
		return err
	}
	if err := m.ensureSnapshot(); err != nil {
		return err
	}

	if err := m.replaceLiveState(datasetPath); err != nil {
		if restoreErr := m.restoreSnapshot(); restoreErr != nil {
			logger.Error("failed to restore snapshot after enable failure", "error", restoreErr)
		}
		if apperrors.IsDemoModeError(err) {
			return err
		}
		return apperrors.NewDemoModeErrorf("Unexpected error enabling demo mode: %v", err)
	}

	m.state.Active = true
	m.state.DatasetName = filepath.Base(datasetPath)
	timestamp := time.Now().UTC()
	formatted := timestamp.Format(time.RFC3339Nano)
	m.state.LastLoadedAt = &formatted
	m.lastLoaded = &timestamp
	if err := m.state.Save(m.snapshotRoot); err != nil {
		return err
	}
	m.configStore.Replace(m.configStore.Current().WithDemoMode(true))
	logger.Info("demo mode enabled", "dataset", datasetPath)
	return nil
}

// replaceLiveState wipes the live database and uploads and loads the dataset.
func (m *Manager) replaceLiveState(datasetPath string) error {
	dbPath, err := m.databasePath()
	if err != nil {
		return err
	}
	uploadsPath := m.uploadsPath()

	if err := m.engine.Dispose(); err != nil {
		return err
	}
	if err := removeIfExists(dbPath); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	if err := m.createSchemaWithMigrations(uploadsPath); err != nil {
		return err
	}
	if err := clearDirectory(uploadsPath); err != nil {
		return err
	}

	db, err := m.engine.Get()
	if err != nil {
		return err
	}
	return LoadDataset(db, datasetPath, uploadsPath)
}

// Disable restores the pre-demo snapshot and deletes the snapshot artifacts.
// A no-op when demo mode is inactive.
func (m *Manager) Disable() error {
	if !m.state.Active {
		return nil
	}

	if err := m.restoreSnapshot(); err != nil {
		return err
	}

	m.state.Active = false
	m.state.LastLoadedAt = nil
	m.lastLoaded = nil
	if err := m.state.Save(m.snapshotRoot); err != nil {
		return err
	}
	m.configStore.Replace(m.configStore.Current().WithDemoMode(false))

	// Remove snapshot artifacts so a future enable captures a fresh snapshot.
	if err := removeIfExists(filepath.Join(m.snapshotRoot, snapshotDatabaseFilename)); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(m.snapshotRoot, snapshotUploadsDirname)); err != nil {
		return fmt.Errorf("failed to remove snapshot uploads: %w", err)
	}
	logger.Info("demo mode disabled")
	return nil
}

// Refresh reloads the demo dataset, discarding interim demo edits. Fails
// when demo mode is inactive.
func (m *Manager) Refresh() error {
	if !m.state.Active {
		return apperrors.NewDemoModeError("Demo mode is not currently active; enable it first.")
	}
	return m.Enable()
}

// ensureSnapshot captures the pre-demo database file and uploads tree. When
// demo mode is already active the snapshot was captured earlier and is kept.
func (m *Manager) ensureSnapshot() error {
	if m.state.Active {
		return nil
	}
	dbPath, err := m.databasePath()
	if err != nil {
		return err
	}
	uploadsPath := m.uploadsPath()
	snapshotDB := filepath.Join(m.snapshotRoot, snapshotDatabaseFilename)
	snapshotUploads := filepath.Join(m.snapshotRoot, snapshotUploadsDirname)

	if err := os.MkdirAll(m.snapshotRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := removeIfExists(snapshotDB); err != nil {
		return err
	}
	if err := os.RemoveAll(snapshotUploads); err != nil {
		return fmt.Errorf("failed to clear stale snapshot uploads: %w", err)
	}

	if err := m.engine.Dispose(); err != nil {
		return err
	}
	if err := copyFileIfExists(dbPath, snapshotDB); err != nil {
		return err
	}
	if dirExists(uploadsPath) {
		if err := copyTree(uploadsPath, snapshotUploads); err != nil {
			return err
		}
	} else if err := os.MkdirAll(snapshotUploads, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot uploads directory: %w", err)
	}

	cfg := m.configStore.Current()
	m.state.HadDatabase = fileExists(dbPath)
	m.state.HadUploads = dirExists(uploadsPath) && dirHasEntries(uploadsPath)
	databaseURI := cfg.DatabaseURI
	m.state.DatabaseURI = &databaseURI
	m.state.UploadsDirectory = &uploadsPath
	return nil
}

// restoreSnapshot puts the pre-demo database and uploads back in place. When
// nothing existed before the snapshot, an empty schema is recreated instead.
func (m *Manager) restoreSnapshot() error {
	dbPath, err := m.databasePath()
	if err != nil {
		return err
	}
	uploadsPath := m.uploadsPath()
	snapshotDB := filepath.Join(m.snapshotRoot, snapshotDatabaseFilename)
	snapshotUploads := filepath.Join(m.snapshotRoot, snapshotUploadsDirname)

	if err := m.engine.Dispose(); err != nil {
		return err
	}
	if err := removeIfExists(dbPath); err != nil {
		return err
	}
	if m.state.HadDatabase && fileExists(snapshotDB) {
		if err := copyFileIfExists(snapshotDB, dbPath); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		if err := m.createSchemaWithMigrations(uploadsPath); err != nil {
			return err
		}
	}

	if err := clearDirectory(uploadsPath); err != nil {
		return err
	}
	if m.state.HadUploads && dirExists(snapshotUploads) {
		if err := copyTree(snapshotUploads, uploadsPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) createSchemaWithMigrations(uploadsPath string) error {
	if err := m.engine.CreateSchema(); err != nil {
		return err
	}
	db, err := m.engine.Get()
	if err != nil {
		return err
	}
	return migrations.Run(db, uploadsPath)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func dirHasEntries(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}

// clearDirectory deletes a directory tree and recreates it empty.
func clearDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to clear directory %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to recreate directory %s: %w", path, err)
	}
	return nil
}

func copyFileIfExists(source, target string) error {
	in, err := os.Open(source)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", source, target, err)
	}
	return nil
}

// copyTree recursively copies a directory, creating the target if needed.
func copyTree(source, target string) error {
	return filepath.WalkDir(source, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(target, relative)
		if entry.IsDir() {
			return os.MkdirAll(targetPath, 0o755)
		}
		return copyFileIfExists(path, targetPath)
	})
}
