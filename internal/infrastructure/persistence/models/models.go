// Package models defines the persistence layer records.
package models

import (
	"strings"
	"time"
)

// Ticket is the primary record representing a task or request.
type Ticket struct {
	ID               uint       `gorm:"primaryKey"`
	Title            string     `gorm:"size:255;not null"`
	Description      string     `gorm:"type:text;not null"`
	Requester        *string    `gorm:"size:120"`
	WatchersRaw      *string    `gorm:"column:watchers;type:text"`
	Priority         string     `gorm:"size:32;not null;default:Medium"`
	Status           string     `gorm:"size:32;not null;default:Open"`
	DueDate          *time.Time
	Notes            *string    `gorm:"type:text"`
	Links            *string    `gorm:"type:text"`
	OnHoldReason     *string    `gorm:"size:255"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null;autoUpdateTime"`
	AgeReferenceDate *time.Time `gorm:"type:date"`

	Updates     []TicketUpdate `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`
	Attachments []Attachment   `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE"`
	Tags        []Tag          `gorm:"many2many:ticket_tags;joinForeignKey:TicketID;joinReferences:TagID"`
}

// TableName overrides the table name for Ticket.
func (Ticket) TableName() string {
	return "tickets"
}

// Watchers returns the watcher list parsed from the comma-delimited column.
func (t *Ticket) Watchers() []string {
	if t.WatchersRaw == nil || strings.TrimSpace(*t.WatchersRaw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(*t.WatchersRaw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SetWatchers stores the watcher list into the comma-delimited column. An
// empty list clears the column.
func (t *Ticket) SetWatchers(watchers []string) {
	var parts []string
	for _, watcher := range watchers {
		if trimmed := strings.TrimSpace(watcher); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		t.WatchersRaw = nil
		return
	}
	joined := strings.Join(parts, ", ")
	t.WatchersRaw = &joined
}

// TagNames returns the names of the loaded tags in association order.
func (t *Ticket) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}

// TicketUpdate is a chronological entry on a ticket's timeline.
type TicketUpdate struct {
	ID         uint      `gorm:"primaryKey"`
	TicketID   uint      `gorm:"not null;index"`
	Body       string    `gorm:"type:text;not null"`
	Author     *string   `gorm:"size:120"`
	CreatedAt  time.Time `gorm:"not null"`
	StatusFrom *string   `gorm:"size:32"`
	StatusTo   *string   `gorm:"size:32"`
	IsSystem   bool      `gorm:"not null;default:false"`

	Attachments []Attachment `gorm:"foreignKey:UpdateID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name for TicketUpdate.
func (TicketUpdate) TableName() string {
	return "ticket_updates"
}

// Attachment is an uploaded file stored on disk and linked to a ticket, and
// optionally to the update it arrived with.
type Attachment struct {
	ID               uint      `gorm:"primaryKey"`
	TicketID         uint      `gorm:"not null;index"`
	UpdateID         *uint     `gorm:"index"`
	OriginalFilename string    `gorm:"size:255;not null"`
	StoredFilename   string    `gorm:"size:255;not null"`
	Mimetype         *string   `gorm:"size:128"`
	Size             *int64
	Checksum         *string   `gorm:"size:64;index"`
	FileUUID         *string   `gorm:"size:36"`
	UploadedAt       time.Time `gorm:"not null"`
}

// TableName overrides the table name for Attachment.
func (Attachment) TableName() string {
	return "attachments"
}

// DisplayName returns the user-facing filename.
func (a *Attachment) DisplayName() string {
	return a.OriginalFilename
}

// Tag is a reusable label applied to tickets.
type Tag struct {
	ID    uint    `gorm:"primaryKey"`
	Name  string  `gorm:"size:64;uniqueIndex;not null"`
	Color *string `gorm:"size:16"`

	Tickets []Ticket `gorm:"many2many:ticket_tags;joinForeignKey:TagID;joinReferences:TicketID"`
}

// TableName overrides the table name for Tag.
func (Tag) TableName() string {
	return "tags"
}

// TicketTag is the association table between tickets and tags.
type TicketTag struct {
	TicketID  uint      `gorm:"primaryKey"`
	TagID     uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name for TicketTag.
func (TicketTag) TableName() string {
	return "ticket_tags"
}
