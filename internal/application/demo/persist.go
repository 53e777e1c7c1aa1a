package demo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gorm.io/gorm"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/shared/logger"
)

const datasetTimeLayout = "2006-01-02T15:04:05.999999-07:00"

// PersistDataset re-serializes the entire current database into the active
// dataset file so curated demo changes survive a refresh. Requires demo mode
// to be active; returns the dataset path written.
func (m *Manager) PersistDataset() (string, error) {
	if !m.state.Active {
		return "", apperrors.NewDemoModeError("Demo mode is not currently active; enable it before persisting.")
	}

	datasetPath, err := m.dataset()
	if err != nil {
		return "", err
	}
	uploadsPath := m.uploadsPath()

	// Existing metadata keys are preserved; only generated_at is refreshed.
	metadata := map[string]any{}
	if existing, err := os.ReadFile(datasetPath); err == nil {
		var payload struct {
			Metadata map[string]any `json:"metadata"`
		}
		if json.Unmarshal(existing, &payload) == nil && payload.Metadata != nil {
			metadata = payload.Metadata
		}
	}
	timestamp := time.Now().UTC()
	metadata["generated_at"] = timestamp.Format(datasetTimeLayout)

	db, err := m.engine.Get()
	if err != nil {
		return "", err
	}

	var tickets []models.Ticket
	err = db.
		Preload("Tags").
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_updates.created_at ASC")
		}).
		Preload("Updates.Attachments").
		Preload("Attachments").
		Order("tickets.id ASC").
		Find(&tickets).Error
	if err != nil {
		return "", fmt.Errorf("failed to load tickets for dataset: %w", err)
	}

	var tags []models.Tag
	if err := db.Order("name ASC").Find(&tags).Error; err != nil {
		return "", fmt.Errorf("failed to load tags for dataset: %w", err)
	}

	payload := datasetFile{
		Metadata: metadata,
		Tags:     make([]datasetTag, 0, len(tags)),
		Tickets:  make([]datasetTicket, 0, len(tickets)),
	}
	for _, tag := range tags {
		entry := datasetTag{Name: tag.Name}
		if tag.Color != nil {
			entry.Color = *tag.Color
		}
		payload.Tags = append(payload.Tags, entry)
	}
	for i := range tickets {
		payload.Tickets = append(payload.Tickets, serializeTicket(&tickets[i], uploadsPath))
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize dataset: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(datasetPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create dataset directory: %w", err)
	}
	if err := atomic.WriteFile(datasetPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write dataset: %w", err)
	}

	m.lastLoaded = &timestamp
	formatted := timestamp.Format(time.RFC3339Nano)
	m.state.LastLoadedAt = &formatted
	if err := m.state.Save(m.snapshotRoot); err != nil {
		return "", err
	}
	logger.Info("demo dataset persisted", "path", datasetPath)
	return datasetPath, nil
}

func serializeTicket(ticket *models.Ticket, uploadsRoot string) datasetTicket {
	entry := datasetTicket{
		Title:        ticket.Title,
		Description:  ticket.Description,
		Priority:     ticket.Priority,
		Status:       ticket.Status,
		Requester:    stringValue(ticket.Requester),
		Notes:        stringValue(ticket.Notes),
		OnHoldReason: stringValue(ticket.OnHoldReason),
		DueDate:      formatDatasetTime(ticket.DueDate),
		CreatedAt:    formatDatasetTime(&ticket.CreatedAt),
		UpdatedAt:    formatDatasetTime(&ticket.UpdatedAt),
		Watchers:     ticket.Watchers(),
	}
	if ticket.Links != nil {
		entry.Links = splitLines(*ticket.Links)
	}
	if ticket.AgeReferenceDate != nil {
		entry.AgeReferenceDate = ticket.AgeReferenceDate.Format("2006-01-02")
	}

	tagNames := make([]string, 0, len(ticket.Tags))
	for _, tag := range ticket.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	sort.Strings(tagNames)
	entry.Tags = tagNames

	for i := range ticket.Updates {
		update := &ticket.Updates[i]
		updateEntry := datasetUpdate{
			Body:       update.Body,
			Author:     stringValue(update.Author),
			CreatedAt:  formatDatasetTime(&update.CreatedAt),
			StatusFrom: stringValue(update.StatusFrom),
			StatusTo:   stringValue(update.StatusTo),
			IsSystem:   update.IsSystem,
		}
		attachments := sortedAttachments(update.Attachments)
		for j := range attachments {
			updateEntry.Attachments = append(updateEntry.Attachments,
				serializeAttachment(&attachments[j], uploadsRoot))
		}
		entry.Updates = append(entry.Updates, updateEntry)
	}

	ticketAttachments := sortedAttachments(ticket.Attachments)
	for i := range ticketAttachments {
		if ticketAttachments[i].UpdateID != nil {
			continue
		}
		entry.Attachments = append(entry.Attachments,
			serializeAttachment(&ticketAttachments[i], uploadsRoot))
	}
	return entry
}

func serializeAttachment(attachment *models.Attachment, uploadsRoot string) datasetAttachment {
	entry := datasetAttachment{
		OriginalFilename: attachment.OriginalFilename,
		StoredFilename:   relativeStoredName(attachment.StoredFilename, uploadsRoot),
		Mimetype:         stringValue(attachment.Mimetype),
		Checksum:         stringValue(attachment.Checksum),
		FileUUID:         stringValue(attachment.FileUUID),
		UploadedAt:       formatDatasetTime(&attachment.UploadedAt),
	}
	if attachment.Size != nil {
		entry.Size = *attachment.Size
	}
	return entry
}

// relativeStoredName rewrites absolute stored paths relative to the uploads
// root so datasets stay portable across machines.
func relativeStoredName(stored, uploadsRoot string) string {
	if !filepath.IsAbs(stored) {
		return filepath.ToSlash(stored)
	}
	relative, err := filepath.Rel(uploadsRoot, stored)
	if err != nil || strings.HasPrefix(relative, "..") {
		return filepath.ToSlash(stored)
	}
	return filepath.ToSlash(relative)
}

func formatDatasetTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(datasetTimeLayout)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func sortedAttachments(attachments []models.Attachment) []models.Attachment {
	sorted := append([]models.Attachment(nil), attachments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted
}
