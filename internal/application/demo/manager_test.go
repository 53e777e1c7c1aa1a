package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/database"
	"tickettracker/internal/infrastructure/persistence/models"
)

const shippedDataset = "../../../demo_data/demo_tickets.json"

type demoEnv struct {
	store        *config.Store
	engine       *database.Engine
	manager      *Manager
	uploadsDir   string
	dbPath       string
	datasetPath  string
	snapshotRoot string
}

func setupDemoEnv(t *testing.T, dataset []byte) *demoEnv {
	t.Helper()
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "app.db")
	uploadsDir := filepath.Join(tmp, "uploads")

	configPayload := fmt.Sprintf(
		`{"database": {"uri": "sqlite:///%s"}, "uploads": {"directory": "%s"}}`,
		dbPath, uploadsDir,
	)
	configPath := filepath.Join(tmp, "config.json")
	require.NoError(t, os.WriteFile(configPath, []byte(configPayload), 0o644))

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	store := config.NewStore(cfg)

	engine := database.NewEngine(cfg.DatabaseURI)
	require.NoError(t, engine.CreateSchema())

	datasetDir := filepath.Join(tmp, "demo_data")
	require.NoError(t, os.MkdirAll(datasetDir, 0o755))
	datasetPath := filepath.Join(datasetDir, DatasetFilename)
	if dataset != nil {
		require.NoError(t, os.WriteFile(datasetPath, dataset, 0o644))
	}

	snapshotRoot := filepath.Join(tmp, "demo_snapshot")
	manager, err := NewManager(store, engine, snapshotRoot, datasetDir)
	require.NoError(t, err)

	return &demoEnv{
		store:        store,
		engine:       engine,
		manager:      manager,
		uploadsDir:   uploadsDir,
		dbPath:       dbPath,
		datasetPath:  datasetPath,
		snapshotRoot: snapshotRoot,
	}
}

func readShippedDataset(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(shippedDataset)
	require.NoError(t, err)
	return data
}

func (e *demoEnv) ticketTitles(t *testing.T) []string {
	t.Helper()
	db, err := e.engine.Get()
	require.NoError(t, err)
	var tickets []models.Ticket
	require.NoError(t, db.Order("id ASC").Find(&tickets).Error)
	titles := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		titles = append(titles, ticket.Title)
	}
	return titles
}

func (e *demoEnv) seedTicket(t *testing.T, title string) {
	t.Helper()
	db, err := e.engine.Get()
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Ticket{
		Title:       title,
		Description: "This ticket should be restored after demo mode ends.",
		Priority:    "Medium",
		Status:      "Open",
	}).Error)
}

func TestEnableAndDisableRestoresSnapshot(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))

	require.NoError(t, os.MkdirAll(env.uploadsDir, 0o755))
	originalFile := filepath.Join(env.uploadsDir, "original.txt")
	require.NoError(t, os.WriteFile(originalFile, []byte("original data"), 0o644))
	env.seedTicket(t, "Original Ticket")

	assert.False(t, env.manager.IsActive())
	require.NoError(t, env.manager.Enable())
	assert.True(t, env.manager.IsActive())
	assert.True(t, env.store.Current().DemoMode)

	titles := env.ticketTitles(t)
	require.Len(t, titles, 5)
	assert.Contains(t, strings.Join(titles, "\n"), "Gateway outage")
	assert.FileExists(t, filepath.Join(env.uploadsDir, "demo", "failover-plan.txt"))
	assert.FileExists(t, filepath.Join(env.uploadsDir, "demo", "duplicate-report.csv"))

	require.NoError(t, env.manager.Disable())
	assert.False(t, env.manager.IsActive())
	assert.False(t, env.store.Current().DemoMode)

	restored := env.ticketTitles(t)
	require.Len(t, restored, 1)
	assert.Equal(t, "Original Ticket", restored[0])

	content, err := os.ReadFile(originalFile)
	require.NoError(t, err)
	assert.Equal(t, "original data", string(content))
	assert.NoDirExists(t, filepath.Join(env.uploadsDir, "demo"))

	// Snapshot artifacts are deleted once the restore completes.
	assert.NoFileExists(t, filepath.Join(env.snapshotRoot, "database.sqlite"))
	assert.NoDirExists(t, filepath.Join(env.snapshotRoot, "uploads"))
}

func TestDisableWithoutPriorDataLeavesEmptySchema(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))

	// Uploads directory never existed and the database had no rows; after the
	// round trip the schema exists but holds nothing.
	require.NoError(t, env.manager.Enable())
	require.Len(t, env.ticketTitles(t), 5)

	require.NoError(t, env.manager.Disable())
	assert.Empty(t, env.ticketTitles(t))
	assert.NoDirExists(t, filepath.Join(env.uploadsDir, "demo"))
}

func TestEnableFailsWhenDatasetMissing(t *testing.T) {
	env := setupDemoEnv(t, nil)
	env.seedTicket(t, "Original Ticket")

	err := env.manager.Enable()
	require.Error(t, err)
	assert.True(t, apperrors.IsDemoModeError(err))
	assert.False(t, env.manager.IsActive())
	assert.Equal(t, []string{"Original Ticket"}, env.ticketTitles(t))
}

func TestEnableRollsBackOnMalformedDataset(t *testing.T) {
	badDataset := []byte(`{
  "tags": [],
  "tickets": [
    {
      "title": "Broken",
      "description": "Has an unparseable timestamp.",
      "created_at": "not-a-datetime"
    }
  ]
}`)
	env := setupDemoEnv(t, badDataset)
	env.seedTicket(t, "Original Ticket")

	err := env.manager.Enable()
	require.Error(t, err)
	assert.True(t, apperrors.IsDemoModeError(err))
	assert.Contains(t, err.Error(), "Invalid datetime value in demo dataset")

	// A failed enable leaves the system exactly as it was.
	assert.False(t, env.manager.IsActive())
	assert.Equal(t, []string{"Original Ticket"}, env.ticketTitles(t))
}

func TestRefreshResetsInterimChanges(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))
	require.NoError(t, env.manager.Enable())

	db, err := env.engine.Get()
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Ticket{}).
		Where("title LIKE ?", "%Gateway outage%").
		Update("title", "Modified title").Error)

	require.NoError(t, env.manager.Refresh())
	assert.Contains(t, strings.Join(env.ticketTitles(t), "\n"), "Gateway outage affecting checkout")
	assert.FileExists(t, filepath.Join(env.uploadsDir, "demo", "failover-plan.txt"))
}

func TestRefreshRequiresActiveState(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))

	err := env.manager.Refresh()
	require.Error(t, err)
	assert.True(t, apperrors.IsDemoModeError(err))
}

func TestPersistDatasetRequiresActiveState(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))
	original, err := os.ReadFile(env.datasetPath)
	require.NoError(t, err)

	_, err = env.manager.PersistDataset()
	require.Error(t, err)
	assert.True(t, apperrors.IsDemoModeError(err))
	assert.Contains(t, err.Error(), "enable it before persisting")

	// The dataset file is untouched.
	after, err := os.ReadFile(env.datasetPath)
	require.NoError(t, err)
	assert.Equal(t, original, after)
}

func TestPersistDatasetWritesCuratedChanges(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))
	require.NoError(t, env.manager.Enable())

	var originalPayload struct {
		Metadata map[string]any `json:"metadata"`
	}
	originalBytes, err := os.ReadFile(env.datasetPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(originalBytes, &originalPayload))
	originalGeneratedAt := originalPayload.Metadata["generated_at"]

	env.seedTicket(t, "Persisted dataset ticket")

	written, err := env.manager.PersistDataset()
	require.NoError(t, err)
	assert.Equal(t, env.datasetPath, written)
	assert.True(t, env.manager.IsActive())

	var updated struct {
		Metadata map[string]any `json:"metadata"`
		Tickets  []struct {
			Title string `json:"title"`
		} `json:"tickets"`
	}
	updatedBytes, err := os.ReadFile(env.datasetPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(updatedBytes, &updated))

	titles := make([]string, 0, len(updated.Tickets))
	for _, ticket := range updated.Tickets {
		titles = append(titles, ticket.Title)
	}
	assert.Contains(t, titles, "Persisted dataset ticket")
	assert.NotEqual(t, originalGeneratedAt, updated.Metadata["generated_at"])

	// Other metadata keys survive the rewrite.
	assert.Equal(t, originalPayload.Metadata["description"], updated.Metadata["description"])
}

func TestPersistedDatasetRoundTripsThroughRefresh(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))
	require.NoError(t, env.manager.Enable())

	env.seedTicket(t, "Curated addition")
	_, err := env.manager.PersistDataset()
	require.NoError(t, err)

	require.NoError(t, env.manager.Refresh())
	assert.Contains(t, env.ticketTitles(t), "Curated addition")
}

func TestStateSurvivesManagerRestart(t *testing.T) {
	env := setupDemoEnv(t, readShippedDataset(t))
	require.NoError(t, env.manager.Enable())

	reloaded, err := NewManager(env.store, env.engine, env.snapshotRoot, filepath.Dir(env.datasetPath))
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive())
	require.NotNil(t, reloaded.LastLoadedAt())

	status := reloaded.Status()
	assert.True(t, status.Active)
	assert.Equal(t, env.datasetPath, status.Dataset)
}
