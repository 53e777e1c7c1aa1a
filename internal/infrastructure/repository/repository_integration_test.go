package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/persistence/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.SetupJoinTable(&models.Ticket{}, "Tags", &models.TicketTag{}))
	require.NoError(t, db.SetupJoinTable(&models.Tag{}, "Tickets", &models.TicketTag{}))
	require.NoError(t, db.AutoMigrate(
		&models.Ticket{},
		&models.Tag{},
		&models.TicketTag{},
		&models.TicketUpdate{},
		&models.Attachment{},
	))
	return db
}

func seedTicket(t *testing.T, db *gorm.DB, title, priority, status string, due *time.Time) *models.Ticket {
	t.Helper()
	ticket := &models.Ticket{
		Title:       title,
		Description: "description for " + title,
		Priority:    priority,
		Status:      status,
		DueDate:     due,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(ticket).Error)
	return ticket
}

func ticketTitles(tickets []models.Ticket) []string {
	titles := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		titles = append(titles, ticket.Title)
	}
	return titles
}

func TestTicketRepositoryList(t *testing.T) {
	priorities := []string{"Low", "Medium", "High", "Critical"}
	repo := NewTicketRepository()

	t.Run("filters by status and priority", func(t *testing.T) {
		db := setupTestDB(t)
		seedTicket(t, db, "open high", "High", "Open", nil)
		seedTicket(t, db, "closed high", "High", "Closed", nil)
		seedTicket(t, db, "open low", "Low", "Open", nil)

		tickets, err := repo.List(db, TicketFilters{Status: "Open", Priority: "High"}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"open high"}, ticketTitles(tickets))
	})

	t.Run("priority sort follows configured order", func(t *testing.T) {
		db := setupTestDB(t)
		seedTicket(t, db, "medium", "Medium", "Open", nil)
		seedTicket(t, db, "critical", "Critical", "Open", nil)
		seedTicket(t, db, "unknown", "Whenever", "Open", nil)
		seedTicket(t, db, "low", "Low", "Open", nil)

		tickets, err := repo.List(db, TicketFilters{Sort: "priority"}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"low", "medium", "critical", "unknown"}, ticketTitles(tickets))

		tickets, err = repo.List(db, TicketFilters{Sort: "priority", Order: "desc"}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"unknown", "critical", "medium", "low"}, ticketTitles(tickets))
	})

	t.Run("due sort puts undated tickets last", func(t *testing.T) {
		db := setupTestDB(t)
		soon := time.Now().UTC().Add(24 * time.Hour)
		later := time.Now().UTC().Add(240 * time.Hour)
		seedTicket(t, db, "no due date", "Medium", "Open", nil)
		seedTicket(t, db, "due later", "Medium", "Open", &later)
		seedTicket(t, db, "due soon", "Medium", "Open", &soon)

		tickets, err := repo.List(db, TicketFilters{}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"due soon", "due later", "no due date"}, ticketTitles(tickets))
	})

	t.Run("search matches tags and text fields", func(t *testing.T) {
		db := setupTestDB(t)
		tagged := seedTicket(t, db, "tagged ticket", "Medium", "Open", nil)
		require.NoError(t, repo.SetTags(db, tagged, []string{"network"}))
		seedTicket(t, db, "network outage", "Medium", "Open", nil)
		seedTicket(t, db, "unrelated", "Medium", "Open", nil)

		tickets, err := repo.List(db, TicketFilters{Search: "network", Sort: "created", Order: "asc"}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"tagged ticket", "network outage"}, ticketTitles(tickets))
	})

	t.Run("tag mode all requires every tag", func(t *testing.T) {
		db := setupTestDB(t)
		both := seedTicket(t, db, "both tags", "Medium", "Open", nil)
		require.NoError(t, repo.SetTags(db, both, []string{"alpha", "beta"}))
		single := seedTicket(t, db, "one tag", "Medium", "Open", nil)
		require.NoError(t, repo.SetTags(db, single, []string{"alpha"}))

		tickets, err := repo.List(db, TicketFilters{Tags: []string{"alpha", "beta"}, TagMode: "all"}, priorities)
		require.NoError(t, err)
		assert.Equal(t, []string{"both tags"}, ticketTitles(tickets))

		tickets, err = repo.List(db, TicketFilters{Tags: []string{"alpha", "beta"}}, priorities)
		require.NoError(t, err)
		assert.Len(t, tickets, 2)
	})
}

func TestTicketRepositoryGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTicketRepository()

	ticket := seedTicket(t, db, "with timeline", "High", "Open", nil)
	require.NoError(t, repo.AddUpdate(db, ticket, &models.TicketUpdate{Body: "first", IsSystem: true}))
	require.NoError(t, repo.AddUpdate(db, ticket, &models.TicketUpdate{Body: "second"}))

	loaded, err := repo.GetByID(db, ticket.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Updates, 2)
	assert.Equal(t, "first", loaded.Updates[0].Body)
	assert.Equal(t, "second", loaded.Updates[1].Body)

	_, err = repo.GetByID(db, 9999)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestTicketRepositorySetTags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTicketRepository()
	ticket := seedTicket(t, db, "taggable", "Medium", "Open", nil)

	require.NoError(t, repo.SetTags(db, ticket, []string{"one", " two ", "", "one"}))
	loaded, err := repo.GetByID(db, ticket.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, loaded.TagNames())

	// Replacing with an empty set clears all associations.
	require.NoError(t, repo.SetTags(db, ticket, nil))
	loaded, err = repo.GetByID(db, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Tags)
}

func TestTagRepositoryEnsureNames(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTagRepository()

	first, err := repo.EnsureNames(db, []string{"infra", "billing"})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Re-ensuring returns the same rows instead of creating duplicates.
	second, err := repo.EnsureNames(db, []string{"billing", "infra"})
	require.NoError(t, err)
	require.Len(t, second, 2)

	var count int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
