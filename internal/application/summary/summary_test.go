package summary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/persistence/models"
)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func sampleTicket(now time.Time) *models.Ticket {
	requester := "Dana Whitfield"
	notes := "Escalated by the on-call rotation."
	links := "https://status.example.com/incidents/2291\nhttps://wiki.example.com/runbooks/payment-gateway"
	author := "Priya Nair"
	statusFrom := "Open"
	statusTo := "In Progress"
	due := now.Add(72 * time.Hour)

	ticket := &models.Ticket{
		Title:       "Gateway outage affecting checkout",
		Description: "Customers report intermittent 502 errors during checkout.",
		Priority:    "Critical",
		Status:      "In Progress",
		Requester:   &requester,
		Notes:       &notes,
		Links:       &links,
		DueDate:     &due,
		CreatedAt:   now.Add(-48 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
		Tags: []models.Tag{
			{Name: "infrastructure"},
			{Name: "payments"},
		},
		Updates: []models.TicketUpdate{
			{
				Body:      "Ticket created",
				CreatedAt: now.Add(-48 * time.Hour),
				IsSystem:  true,
			},
			{
				Body:       "Failover to the secondary region started.",
				Author:     &author,
				CreatedAt:  now.Add(-1 * time.Hour),
				StatusFrom: &statusFrom,
				StatusTo:   &statusTo,
			},
		},
	}
	ticket.SetWatchers([]string{"noc@example.com", "payments-oncall@example.com"})
	return ticket
}

func TestBuildRendersAllDefaultSections(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{})
	require.NoError(t, err)

	assert.Contains(t, result.HTML, "<h2>Gateway outage affecting checkout</h2>")
	assert.Contains(t, result.HTML, "<strong>Status:</strong> In Progress")
	assert.Contains(t, result.HTML, "<strong>Priority:</strong> Critical")
	assert.Contains(t, result.HTML, "SLA : T-3 Day(s)")
	assert.Contains(t, result.HTML, "Dana Whitfield")
	assert.Contains(t, result.HTML, `<a href="https://status.example.com/incidents/2291">`)
	assert.Contains(t, result.HTML, "<strong>Tags:</strong> infrastructure, payments")
	assert.Contains(t, result.HTML, "Failover to the secondary region started.")

	assert.Contains(t, result.Text, "Gateway outage affecting checkout")
	assert.Contains(t, result.Text, "Status: In Progress | Priority: Critical")
	assert.Contains(t, result.Text, "Requester: Dana Whitfield")
	assert.Contains(t, result.Text, "Watchers: noc@example.com, payments-oncall@example.com")
	assert.Contains(t, result.Text, "- https://status.example.com/incidents/2291")
	assert.Contains(t, result.Text, "Notes: Escalated by the on-call rotation.")
	assert.NotContains(t, result.Text, "<")
}

func TestBuildHonorsSectionOverrides(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{
		HTMLSections: []string{"Header", "header", "  TAGS  "},
		TextSections: []string{"description"},
	})
	require.NoError(t, err)

	assert.Contains(t, result.HTML, "<h2>")
	assert.Contains(t, result.HTML, "<strong>Tags:</strong>")
	assert.NotContains(t, result.HTML, "Status:")
	assert.Equal(t, 1, strings.Count(result.HTML, "<h2>"), "duplicate sections collapse")

	assert.Equal(t, "Customers report intermittent 502 errors during checkout.", result.Text)
}

func TestBuildUnknownSectionsRenderNothing(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{
		HTMLSections: []string{"bogus"},
		TextSections: []string{"bogus"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.HTML)
	assert.Empty(t, result.Text)
}

func TestBuildLimitsUpdates(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	cfg.ClipboardSummary.UpdatesLimit = 1
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{TextSections: []string{"updates"}})
	require.NoError(t, err)

	// Only the newest update survives the limit.
	assert.Contains(t, result.Text, "Failover to the secondary region started.")
	assert.NotContains(t, result.Text, "Ticket created")
	assert.Contains(t, result.Text, "[Open → In Progress]")
}

func TestBuildZeroUpdateLimitDropsSection(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	cfg.ClipboardSummary.UpdatesLimit = 0
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{TextSections: []string{"updates"}})
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestBuildEscapesHTML(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	ticket := sampleTicket(now)
	ticket.Title = `<script>alert("x")</script>`

	result, err := Build(ticket, cfg, now, Options{HTMLSections: []string{"header"}})
	require.NoError(t, err)
	assert.NotContains(t, result.HTML, "<script>")
	assert.Contains(t, result.HTML, "&lt;script&gt;")
}

func TestBuildInlineStylesAndDebugStatus(t *testing.T) {
	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t)
	cfg.ClipboardSummary.InlineStyles = true
	cfg.ClipboardSummary.DebugStatus = true
	ticket := sampleTicket(now)

	result, err := Build(ticket, cfg, now, Options{HTMLSections: []string{"header"}})
	require.NoError(t, err)
	assert.Contains(t, result.HTML, `style="color: `)
	assert.Contains(t, result.HTML, "[In Progress]")
}

func TestSectionDescriptionsCoverDefaults(t *testing.T) {
	for _, section := range config.DefaultClipboardSections {
		assert.Contains(t, SectionDescriptions, section)
	}
}
