package sla

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/persistence/models"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	return cfg
}

func dueTicket(now time.Time, daysOut float64) *models.Ticket {
	due := now.Add(time.Duration(daysOut * float64(24*time.Hour)))
	return &models.Ticket{
		Title:    "due ticket",
		Status:   "Open",
		Priority: "Medium",
		DueDate:  &due,
	}
}

func backlogTicket(now time.Time, ageDays int, priority string) *models.Ticket {
	reference := now.AddDate(0, 0, -ageDays)
	referenceDate := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, time.UTC)
	return &models.Ticket{
		Title:            "backlog ticket",
		Status:           "Open",
		Priority:         priority,
		AgeReferenceDate: &referenceDate,
		CreatedAt:        referenceDate,
	}
}

func TestColorStatusOverrideWins(t *testing.T) {
	cfg := testConfig(t)
	now := time.Now().UTC()

	ticket := dueTicket(now, -10) // long overdue
	ticket.Status = "On Hold"
	assert.Equal(t, "#9c88ff", Color(ticket, cfg, now))

	// Lookup is case-insensitive and tolerant of underscore form.
	ticket.Status = "on_hold"
	assert.Equal(t, "#9c88ff", Color(ticket, cfg, now))
}

func TestColorDueDateStages(t *testing.T) {
	cfg := testConfig(t)
	cfg.SLA.DueStageDays = []int{28, 21, 14, 7}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		daysOut  float64
		expected string
	}{
		{"far out", 35, cfg.Colors.GradientStageColor(0)},
		{"past first threshold", 24, cfg.Colors.GradientStageColor(1)},
		{"past second threshold", 19, cfg.Colors.GradientStageColor(2)},
		{"past third threshold", 12, cfg.Colors.GradientStageColor(3)},
		{"closest to due", 6, cfg.Colors.GradientStageColor(3)},
		{"due now", 0, cfg.Colors.GradientOverdueColor()},
		{"past due", -1, cfg.Colors.GradientOverdueColor()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Color(dueTicket(now, tt.daysOut), cfg, now))
		})
	}
}

func TestColorDueThresholdsNormalizedDescending(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	sorted := cfg.Clone()
	sorted.SLA.DueStageDays = []int{30, 20, 10, 5}
	unsorted := cfg.Clone()
	unsorted.SLA.DueStageDays = []int{30, 10, 20, 5}

	assert.Equal(t, []int{30, 20, 10, 5}, unsorted.SLA.DueThresholds())
	for _, daysOut := range []float64{35, 25, 15, 8, 3} {
		ticket := dueTicket(now, daysOut)
		assert.Equal(t, Color(ticket, sorted, now), Color(ticket, unsorted, now),
			"daysOut=%v", daysOut)
	}
}

func TestColorBacklogStages(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Medium thresholds are ascending [10, 15, 20, 25].
	tests := []struct {
		name     string
		ageDays  int
		expected string
	}{
		{"fresh", 2, cfg.Colors.GradientStageColor(0)},
		{"second stage", 12, cfg.Colors.GradientStageColor(1)},
		{"third stage", 18, cfg.Colors.GradientStageColor(2)},
		{"final stage", 24, cfg.Colors.GradientStageColor(3)},
		{"all thresholds exceeded", 40, cfg.Colors.GradientOverdueColor()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := backlogTicket(now, tt.ageDays, "Medium")
			assert.Equal(t, tt.expected, Color(ticket, cfg, now))
		})
	}
}

func TestColorBacklogUnknownPriorityUsesFallback(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Fallback thresholds are [7, 14, 21, 28].
	ticket := backlogTicket(now, 3, "Unheard Of")
	assert.Equal(t, cfg.Colors.GradientStageColor(0), Color(ticket, cfg, now))

	ticket = backlogTicket(now, 30, "Unheard Of")
	assert.Equal(t, cfg.Colors.GradientOverdueColor(), Color(ticket, cfg, now))
}

func TestComputeCountdown(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("due ticket ahead of schedule", func(t *testing.T) {
		countdown := ComputeCountdown(dueTicket(now, 2.5), cfg, now)
		require.NotNil(t, countdown)
		assert.Equal(t, "SLA : T-3 Day(s)", countdown.Text)
		assert.False(t, countdown.Overdue)
	})

	t.Run("due ticket past due", func(t *testing.T) {
		countdown := ComputeCountdown(dueTicket(now, -1.5), cfg, now)
		require.NotNil(t, countdown)
		assert.Equal(t, "SLA : T+2 Day(s)", countdown.Text)
		assert.True(t, countdown.Overdue)
	})

	t.Run("backlog ticket counts toward final threshold", func(t *testing.T) {
		// Medium limit is 25 days; half a day of clock time has passed since
		// midnight on the reference date.
		countdown := ComputeCountdown(backlogTicket(now, 20, "Medium"), cfg, now)
		require.NotNil(t, countdown)
		assert.Equal(t, "SLA : T-5 Day(s)", countdown.Text)
		assert.False(t, countdown.Overdue)
	})

	t.Run("backlog ticket overdue", func(t *testing.T) {
		countdown := ComputeCountdown(backlogTicket(now, 30, "Medium"), cfg, now)
		require.NotNil(t, countdown)
		assert.Equal(t, "SLA : T+6 Day(s)", countdown.Text)
		assert.True(t, countdown.Overdue)
	})
}

func TestTint(t *testing.T) {
	tests := []struct {
		name     string
		color    string
		expected string
	}{
		{"six digit hex", "#ef4444", "rgba(239, 68, 68, 0.25)"},
		{"three digit hex", "#abc", "rgba(170, 187, 204, 0.25)"},
		{"named color", "rebeccapurple", "color-mix(in srgb, rebeccapurple 25%, transparent)"},
		{"invalid hex falls back to color-mix", "#zzzzzz", "color-mix(in srgb, #zzzzzz 25%, transparent)"},
		{"empty", "", "rgba(56, 189, 248, 0.25)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DefaultTint(tt.color))
		})
	}
}
