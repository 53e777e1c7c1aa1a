package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/persistence/models"
)

// datasetFile is the demo dataset document shape, used both for loading and
// for re-serializing the live database via PersistDataset.
type datasetFile struct {
	Metadata map[string]any      `json:"metadata"`
	Tags     []datasetTag        `json:"tags"`
	Tickets  []datasetTicket     `json:"tickets"`
}

type datasetTag struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type datasetTicket struct {
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Priority         string              `json:"priority"`
	Status           string              `json:"status"`
	Requester        string              `json:"requester,omitempty"`
	Watchers         watcherList         `json:"watchers,omitempty"`
	DueDate          string              `json:"due_date,omitempty"`
	Notes            string              `json:"notes,omitempty"`
	Links            linkLines           `json:"links,omitempty"`
	OnHoldReason     string              `json:"on_hold_reason,omitempty"`
	CreatedAt        string              `json:"created_at,omitempty"`
	UpdatedAt        string              `json:"updated_at,omitempty"`
	AgeReferenceDate string              `json:"age_reference_date,omitempty"`
	Tags             []string            `json:"tags,omitempty"`
	Updates          []datasetUpdate     `json:"updates,omitempty"`
	Attachments      []datasetAttachment `json:"attachments,omitempty"`
}

type datasetUpdate struct {
	Body        string              `json:"body"`
	Author      string              `json:"author,omitempty"`
	CreatedAt   string              `json:"created_at,omitempty"`
	StatusFrom  string              `json:"status_from,omitempty"`
	StatusTo    string              `json:"status_to,omitempty"`
	IsSystem    bool                `json:"is_system,omitempty"`
	Attachments []datasetAttachment `json:"attachments,omitempty"`
}

type datasetAttachment struct {
	OriginalFilename string `json:"original_filename,omitempty"`
	StoredFilename   string `json:"stored_filename"`
	Mimetype         string `json:"mimetype,omitempty"`
	Size             int64  `json:"size,omitempty"`
	Checksum         string `json:"checksum,omitempty"`
	FileUUID         string `json:"file_uuid,omitempty"`
	UploadedAt       string `json:"uploaded_at,omitempty"`
	Content          *string `json:"content,omitempty"`
}

// watcherList accepts either a JSON array of names or a single
// comma/semicolon separated string. Entries are trimmed and deduplicated.
type watcherList []string

func (w *watcherList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*w = normalizeNames(strings.Split(strings.ReplaceAll(single, ";", ","), ","))
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	raw := make([]string, 0, len(list))
	for _, entry := range list {
		if entry == nil {
			continue
		}
		raw = append(raw, fmt.Sprintf("%v", entry))
	}
	*w = normalizeNames(raw)
	return nil
}

func normalizeNames(raw []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, entry := range raw {
		text := strings.TrimSpace(entry)
		if text == "" || seen[text] {
			continue
		}
		out = append(out, text)
		seen[text] = true
	}
	return out
}

// linkLines accepts either a JSON array of link strings or a single
// newline-separated string; blank lines are dropped.
type linkLines []string

func (l *linkLines) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitLines(single)
		return nil
	}
	var list []any
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	var out linkLines
	for _, entry := range list {
		if entry == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprintf("%v", entry)); text != "" {
			out = append(out, text)
		}
	}
	*l = out
	return nil
}

func splitLines(value string) []string {
	var out []string
	for _, line := range strings.Split(value, "\n") {
		if text := strings.TrimSpace(line); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Joined returns the lines as the single newline-delimited column value.
func (l linkLines) Joined() string {
	return strings.Join(l, "\n")
}

var datetimeLayouts = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04-07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseDatetime parses an ISO-8601 datetime, tolerating a trailing "Z" and
// converting timezone-aware values to UTC. Empty values yield nil.
func parseDatetime(value string) (*time.Time, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil, nil
	}
	normalized := strings.ReplaceAll(text, "Z", "+00:00")
	for _, layout := range datetimeLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		utc := parsed.UTC()
		return &utc, nil
	}
	return nil, apperrors.NewDemoModeErrorf("Invalid datetime value in demo dataset: %q", value)
}

// parseDate parses a calendar date. Empty values yield nil.
func parseDate(value string) (*time.Time, error) {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", text)
	if err != nil {
		return nil, apperrors.NewDemoModeErrorf("Invalid date value in demo dataset: %q", value)
	}
	utc := parsed.UTC()
	return &utc, nil
}

// writeAttachmentFile materializes one dataset attachment under the uploads
// directory: inline content wins, otherwise a placeholder is written unless
// the file already exists.
func writeAttachmentFile(uploadsDir, storedFilename string, content *string) (string, error) {
	normalized := strings.TrimLeft(strings.ReplaceAll(storedFilename, "\\", "/"), "/")
	if normalized == "" {
		return "", apperrors.NewDemoModeError("Attachment stored filename cannot be empty")
	}
	targetPath := filepath.Join(uploadsDir, filepath.FromSlash(normalized))
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}
	if content != nil {
		if err := os.WriteFile(targetPath, []byte(*content), 0o644); err != nil {
			return "", fmt.Errorf("failed to write attachment content: %w", err)
		}
	} else if _, err := os.Stat(targetPath); os.IsNotExist(err) {
		if err := os.WriteFile(targetPath, []byte("Demo attachment placeholder"), 0o644); err != nil {
			return "", fmt.Errorf("failed to write attachment placeholder: %w", err)
		}
	}
	return targetPath, nil
}

// LoadDataset replaces all ticket data with the contents of the dataset
// file, writing attachment files under uploadsDir. The wipe and reload run
// inside one transaction so a malformed dataset leaves the database
// untouched.
func LoadDataset(db *gorm.DB, datasetPath, uploadsDir string) error {
	data, err := os.ReadFile(datasetPath)
	if os.IsNotExist(err) {
		return apperrors.NewDemoModeErrorf("Demo dataset not found: %s", datasetPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read demo dataset: %w", err)
	}

	var dataset datasetFile
	if err := json.Unmarshal(data, &dataset); err != nil {
		return apperrors.NewDemoModeErrorf("Invalid demo dataset: %v", err)
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		return populate(tx, &dataset, uploadsDir)
	})
}

func populate(tx *gorm.DB, dataset *datasetFile, uploadsDir string) error {
	// Child tables first so foreign keys never dangle mid-wipe.
	for _, table := range []string{"attachments", "ticket_updates", "ticket_tags", "tickets", "tags"} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	tagMap := make(map[string]models.Tag)
	for _, tagData := range dataset.Tags {
		name := strings.TrimSpace(tagData.Name)
		if name == "" {
			continue
		}
		tag := models.Tag{Name: name}
		if tagData.Color != "" {
			color := tagData.Color
			tag.Color = &color
		}
		if err := tx.Create(&tag).Error; err != nil {
			return fmt.Errorf("failed to create tag %q: %w", name, err)
		}
		tagMap[name] = tag
	}

	for _, ticketData := range dataset.Tickets {
		if err := populateTicket(tx, &ticketData, tagMap, uploadsDir); err != nil {
			return err
		}
	}
	return nil
}

func populateTicket(tx *gorm.DB, ticketData *datasetTicket, tagMap map[string]models.Tag, uploadsDir string) error {
	title := strings.TrimSpace(ticketData.Title)
	description := strings.TrimSpace(ticketData.Description)
	if title == "" || description == "" {
		return nil
	}

	dueDate, err := parseDatetime(ticketData.DueDate)
	if err != nil {
		return err
	}
	createdAt, err := parseDatetime(ticketData.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := parseDatetime(ticketData.UpdatedAt)
	if err != nil {
		return err
	}
	ageReference, err := parseDate(ticketData.AgeReferenceDate)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	ticket := models.Ticket{
		Title:            title,
		Description:      description,
		Priority:         orDefault(ticketData.Priority, "Medium"),
		Status:           orDefault(ticketData.Status, "Open"),
		DueDate:          dueDate,
		CreatedAt:        timeOr(createdAt, now),
		UpdatedAt:        timeOr(updatedAt, now),
		AgeReferenceDate: ageReference,
	}
	ticket.Requester = optionalString(ticketData.Requester)
	ticket.Notes = optionalString(ticketData.Notes)
	ticket.Links = optionalString(ticketData.Links.Joined())
	ticket.OnHoldReason = optionalString(ticketData.OnHoldReason)
	if len(ticketData.Watchers) > 0 {
		ticket.SetWatchers(ticketData.Watchers)
	}

	if err := tx.Create(&ticket).Error; err != nil {
		return fmt.Errorf("failed to create ticket %q: %w", title, err)
	}

	for _, tagName := range ticketData.Tags {
		tag, ok := tagMap[strings.TrimSpace(tagName)]
		if !ok {
			continue
		}
		link := models.TicketTag{TicketID: ticket.ID, TagID: tag.ID, CreatedAt: now}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("failed to tag ticket %q: %w", title, err)
		}
	}

	for _, updateData := range ticketData.Updates {
		updateCreatedAt, err := parseDatetime(updateData.CreatedAt)
		if err != nil {
			return err
		}
		update := models.TicketUpdate{
			TicketID:   ticket.ID,
			Body:       orDefault(strings.TrimSpace(updateData.Body), "Update"),
			Author:     optionalString(updateData.Author),
			CreatedAt:  timeOr(updateCreatedAt, now),
			StatusFrom: optionalString(updateData.StatusFrom),
			StatusTo:   optionalString(updateData.StatusTo),
			IsSystem:   updateData.IsSystem,
		}
		if err := tx.Create(&update).Error; err != nil {
			return fmt.Errorf("failed to create update for %q: %w", title, err)
		}
		updateID := update.ID
		for _, attachmentData := range updateData.Attachments {
			if err := populateAttachment(tx, &attachmentData, ticket.ID, &updateID, update.CreatedAt, uploadsDir); err != nil {
				return err
			}
		}
	}

	for _, attachmentData := range ticketData.Attachments {
		if err := populateAttachment(tx, &attachmentData, ticket.ID, nil, ticket.CreatedAt, uploadsDir); err != nil {
			return err
		}
	}
	return nil
}

func populateAttachment(
	tx *gorm.DB,
	attachmentData *datasetAttachment,
	ticketID uint,
	updateID *uint,
	fallbackTime time.Time,
	uploadsDir string,
) error {
	storedFilename := strings.TrimSpace(attachmentData.StoredFilename)
	if storedFilename == "" {
		return nil
	}

	filePath, err := writeAttachmentFile(uploadsDir, storedFilename, attachmentData.Content)
	if err != nil {
		return err
	}

	size := attachmentData.Size
	if size == 0 {
		info, statErr := os.Stat(filePath)
		if statErr != nil {
			return fmt.Errorf("failed to stat attachment file: %w", statErr)
		}
		size = info.Size()
	}

	uploadedAt, err := parseDatetime(attachmentData.UploadedAt)
	if err != nil {
		return err
	}

	originalFilename := attachmentData.OriginalFilename
	if originalFilename == "" {
		originalFilename = path.Base(strings.ReplaceAll(storedFilename, "\\", "/"))
	}

	attachment := models.Attachment{
		TicketID:         ticketID,
		UpdateID:         updateID,
		OriginalFilename: originalFilename,
		StoredFilename:   storedFilename,
		Mimetype:         optionalString(attachmentData.Mimetype),
		Checksum:         optionalString(attachmentData.Checksum),
		FileUUID:         optionalString(attachmentData.FileUUID),
		Size:             &size,
		UploadedAt:       timeOr(uploadedAt, fallbackTime),
	}
	if err := tx.Create(&attachment).Error; err != nil {
		return fmt.Errorf("failed to create attachment %q: %w", storedFilename, err)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func timeOr(value *time.Time, fallback time.Time) time.Time {
	if value != nil {
		return *value
	}
	return fallback
}
