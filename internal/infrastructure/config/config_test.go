package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir string, payload map[string]any) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSecretKey, cfg.SecretKey)
	assert.Equal(t, DefaultPriorities, cfg.Priorities)
	assert.Equal(t, DefaultWorkflow, cfg.Workflow)
	assert.Equal(t, DefaultHoldReasons, cfg.HoldReasons)
	assert.Equal(t, DefaultSubmittedBy, cfg.DefaultSubmittedBy)
	assert.False(t, cfg.DemoMode)
	assert.Equal(t, path, cfg.SourcePath)

	// Relative defaults resolve against the config file's directory.
	assert.True(t, filepath.IsAbs(cfg.UploadsDirectory))
	assert.Equal(t, filepath.Join(filepath.Dir(path), DefaultUploadsDir), cfg.UploadsDirectory)
	assert.True(t, strings.HasPrefix(cfg.DatabaseURI, "sqlite:///"))

	require.NotNil(t, cfg.SLA.DefaultDueDays)
	assert.Equal(t, DefaultBacklogDueDays, *cfg.SLA.DefaultDueDays)
	assert.Equal(t, []int{28, 21, 14, 7}, cfg.SLA.DueThresholds())
}

func TestLoadMergesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{
		"secret_key": "from-file",
		"sla": map[string]any{
			"due_stage_days": []int{40, 30, 20, 10},
		},
		"colors": map[string]any{
			"gradient": map[string]any{"stage1": "#abcdef"},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.SecretKey)
	assert.Equal(t, []int{40, 30, 20, 10}, cfg.SLA.DueThresholds())

	// Untouched sibling keys keep their defaults.
	assert.Equal(t, "#abcdef", cfg.Colors.GradientColor("stage1"))
	assert.Equal(t, DefaultGradientColors["stage0"], cfg.Colors.GradientColor("stage0"))
	assert.Equal(t, DefaultGradientColors[GradientOverdueKey], cfg.Colors.GradientOverdueColor())
	assert.Equal(t, DefaultPriorities, cfg.Priorities)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{"secret_key": "from-file"})

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvSecretKey, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SecretKey)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestLoadPriorityStageDaysKeepCasing(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{
		"sla": map[string]any{
			"priority_stage_days": map[string]any{
				"Critical": []int{1, 2, 3, 4},
			},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.SLA.PriorityStageDays["Critical"])
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.SLA.PriorityThresholds("Critical"))
}

func TestLoadLegacyPriorityOpenDays(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, map[string]any{
		"sla": map[string]any{
			"priority_open_days": map[string]any{
				"High": 10,
				"Low":  1,
			},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 8, 10}, cfg.SLA.PriorityStageDays["High"])
	assert.Equal(t, []int{1, 1, 1, 1}, cfg.SLA.PriorityStageDays["Low"])
}

func TestToStageThresholds(t *testing.T) {
	tests := []struct {
		name     string
		input    []int
		expected []int
	}{
		{"strictly increasing kept", []int{7, 14, 21, 28}, []int{7, 14, 21, 28}},
		{"durations summed", []int{10, 5, 5, 5}, []int{10, 15, 20, 25}},
		{"unsorted summed", []int{30, 10, 20, 5}, []int{30, 40, 60, 65}},
		{"single value", []int{9}, []int{9}},
		{"empty", nil, nil},
		{"repeated summed", []int{5, 5}, []int{5, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, toStageThresholds(tt.input))
		})
	}
}

func TestLegacyStageThresholds(t *testing.T) {
	assert.Equal(t, []int{3, 5, 8, 10}, legacyStageThresholds(10))
	assert.Equal(t, []int{1, 1, 1, 1}, legacyStageThresholds(1))
	assert.Equal(t, []int{2, 4, 6, 7}, legacyStageThresholds(7))
	assert.Nil(t, legacyStageThresholds(0))
	assert.Nil(t, legacyStageThresholds(-3))
}

func TestNormalizeHexColor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"#AABBCC", "#aabbcc", true},
		{"  #abc ", "#aabbcc", true},
		{"#123", "#112233", true},
		{"#12345", "", false},
		{"123456", "", false},
		{"#gggggg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeHexColor(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.expected, got, tt.input)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := filepath.Join(dir, "config.json")
	cfg, err := Load(original)
	require.NoError(t, err)

	cfg = cfg.Clone()
	cfg.SecretKey = "persisted"
	cfg.Priorities = []string{"Low", "Urgent"}
	cfg.DemoMode = true
	cfg.SLA.PriorityStageDays["Urgent"] = []int{1, 2, 3, 4}

	written, err := Save(cfg, original)
	require.NoError(t, err)
	assert.Equal(t, original, written)

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Contains(t, string(data), "  \"secret_key\": \"persisted\"")

	reloaded, err := Load(original)
	require.NoError(t, err)
	assert.Equal(t, "persisted", reloaded.SecretKey)
	assert.Equal(t, []string{"Low", "Urgent"}, reloaded.Priorities)
	assert.True(t, reloaded.DemoMode)
	assert.Equal(t, []int{1, 2, 3, 4}, reloaded.SLA.PriorityStageDays["Urgent"])
}

func TestSQLitePath(t *testing.T) {
	t.Run("rejects in-memory", func(t *testing.T) {
		_, err := SQLitePath("sqlite:///:memory:")
		require.Error(t, err)
	})
	t.Run("rejects non-sqlite", func(t *testing.T) {
		_, err := SQLitePath("postgresql://localhost/tickets")
		require.Error(t, err)
	})
	t.Run("extracts path", func(t *testing.T) {
		path, err := SQLitePath("sqlite:////var/lib/tickets/app.db")
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/tickets/app.db", path)
	})
}

func TestStoreReplace(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	store := NewStore(cfg)
	assert.Same(t, cfg, store.Current())

	updated := cfg.WithDemoMode(true)
	store.Replace(updated)
	assert.Same(t, updated, store.Current())
	assert.False(t, cfg.DemoMode)
	assert.True(t, store.Current().DemoMode)
}

func TestCloneIsDeep(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Colors.Gradient["stage0"] = "#000000"
	clone.SLA.PriorityStageDays["Low"] = []int{1}
	clone.Priorities[0] = "changed"

	assert.NotEqual(t, "#000000", cfg.Colors.GradientColor("stage0"))
	assert.NotEqual(t, []int{1}, cfg.SLA.PriorityStageDays["Low"])
	assert.Equal(t, "Low", cfg.Priorities[0])
}
