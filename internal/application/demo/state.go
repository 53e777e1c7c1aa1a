// Package demo orchestrates demo mode: snapshotting live data, loading the
// sample dataset, restoring on disable, and persisting curated datasets.
package demo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	apperrors "tickettracker/internal/shared/errors"
)

const (
	// DatasetFilename is the default demo dataset file name.
	DatasetFilename = "demo_tickets.json"

	stateFilename            = "state.json"
	snapshotDatabaseFilename = "database.sqlite"
	snapshotUploadsDirname   = "uploads"
)

// State is the persisted metadata tracking demo mode activity. It lives in
// the snapshot directory and survives process restarts.
type State struct {
	Active           bool    `json:"active"`
	DatasetName      string  `json:"dataset_name"`
	DatabaseURI      *string `json:"database_uri"`
	UploadsDirectory *string `json:"uploads_directory"`
	LastLoadedAt     *string `json:"last_loaded_at"`
	HadDatabase      bool    `json:"had_database"`
	HadUploads       bool    `json:"had_uploads"`
}

// LoadState reads the state file from the snapshot directory, returning a
// zero-value state when no file exists yet.
func LoadState(directory string) (*State, error) {
	statePath := filepath.Join(directory, stateFilename)
	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return &State{DatasetName: DatasetFilename}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read demo mode state: %w", err)
	}

	state := State{DatasetName: DatasetFilename}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.NewDemoModeErrorf("Invalid demo mode state metadata: %v", err)
	}
	if state.DatasetName == "" {
		state.DatasetName = DatasetFilename
	}
	return &state, nil
}

// Save writes the state file into the snapshot directory, creating it if
// needed.
func (s *State) Save(directory string) error {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize demo mode state: %w", err)
	}
	statePath := filepath.Join(directory, stateFilename)
	if err := atomic.WriteFile(statePath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write demo mode state: %w", err)
	}
	return nil
}
