// Package repository implements data access over the persistence models.
// Methods take the gorm handle per call so they participate in whatever
// transaction or connection the caller is working with; demo mode replaces
// the underlying connection at runtime.
package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tickettracker/internal/shared/errors"
	"tickettracker/internal/infrastructure/persistence/models"
)

// TicketFilters narrows and orders the ticket list.
type TicketFilters struct {
	Status   string
	Priority string
	Tags     []string
	TagMode  string // "any" or "all"
	Search   string
	Sort     string // "due", "priority", "updated", "created"
	Order    string // "asc" or "desc"
}

var defaultSortOrders = map[string]string{
	"due":      "asc",
	"priority": "asc",
	"updated":  "desc",
	"created":  "desc",
}

// Normalize coerces unknown sort and order values to their defaults.
func (f *TicketFilters) Normalize() {
	if _, ok := defaultSortOrders[f.Sort]; !ok {
		f.Sort = "due"
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = defaultSortOrders[f.Sort]
	}
	if f.TagMode != "all" {
		f.TagMode = "any"
	}
}

// HasActiveFilters reports whether any narrowing filter is set.
func (f *TicketFilters) HasActiveFilters() bool {
	return f.Status != "" || f.Priority != "" || len(f.Tags) > 0 || f.Search != "" || f.TagMode == "all"
}

// TicketRepository provides persistence operations for tickets.
type TicketRepository struct{}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{}
}

// List returns tickets matching the filters, ordered per the sort settings.
// The configured priority list drives the priority sort order.
func (r *TicketRepository) List(db *gorm.DB, filters TicketFilters, priorities []string) ([]models.Ticket, error) {
	filters.Normalize()

	query := db.Model(&models.Ticket{}).Preload("Tags")

	if filters.Status != "" {
		query = query.Where("tickets.status = ?", filters.Status)
	}
	if filters.Priority != "" {
		query = query.Where("tickets.priority = ?", filters.Priority)
	}

	if len(filters.Tags) > 0 {
		if filters.TagMode == "all" {
			for _, tagName := range filters.Tags {
				query = query.Where(
					"EXISTS (SELECT 1 FROM ticket_tags tt JOIN tags t ON t.id = tt.tag_id "+
						"WHERE tt.ticket_id = tickets.id AND t.name = ?)",
					tagName,
				)
			}
		} else {
			query = query.Where(
				"EXISTS (SELECT 1 FROM ticket_tags tt JOIN tags t ON t.id = tt.tag_id "+
					"WHERE tt.ticket_id = tickets.id AND t.name IN ?)",
				filters.Tags,
			)
		}
	}

	if filters.Search != "" {
		likeTerm := "%" + filters.Search + "%"
		query = query.
			Joins("LEFT JOIN ticket_tags search_tt ON search_tt.ticket_id = tickets.id").
			Joins("LEFT JOIN tags search_tags ON search_tags.id = search_tt.tag_id").
			Where(
				"tickets.title LIKE ? OR tickets.description LIKE ? OR tickets.notes LIKE ? "+
					"OR tickets.links LIKE ? OR tickets.requester LIKE ? OR tickets.watchers LIKE ? "+
					"OR search_tags.name LIKE ?",
				likeTerm, likeTerm, likeTerm, likeTerm, likeTerm, likeTerm, likeTerm,
			).
			Distinct("tickets.*")
	}

	query = applyTicketOrdering(query, filters, priorities)

	var tickets []models.Ticket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func applyTicketOrdering(query *gorm.DB, filters TicketFilters, priorities []string) *gorm.DB {
	switch filters.Sort {
	case "priority":
		caseExpr, args := priorityCase(priorities)
		if filters.Order == "desc" {
			caseExpr += " DESC"
		}
		caseExpr += ", tickets.due_date IS NULL, tickets.due_date ASC, tickets.updated_at DESC"
		return query.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                caseExpr,
			Vars:               args,
			WithoutParentheses: true,
		}})
	case "updated":
		return query.Order("tickets.updated_at " + strings.ToUpper(filters.Order))
	case "created":
		return query.Order("tickets.created_at " + strings.ToUpper(filters.Order))
	default:
		direction := strings.ToUpper(filters.Order)
		return query.
			Order("tickets.due_date IS NULL").
			Order("tickets.due_date " + direction).
			Order("tickets.priority " + direction)
	}
}

// priorityCase builds a CASE expression ranking priorities by their position
// in the configured list; unknown priorities sort last.
func priorityCase(priorities []string) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(priorities))
	b.WriteString("CASE tickets.priority")
	for index, priority := range priorities {
		b.WriteString(fmt.Sprintf(" WHEN ? THEN %d", index))
		args = append(args, priority)
	}
	b.WriteString(fmt.Sprintf(" ELSE %d END", len(priorities)))
	return b.String(), args
}

// GetByID loads a ticket with its tags, ordered updates, and attachments.
func (r *TicketRepository) GetByID(db *gorm.DB, id uint) (*models.Ticket, error) {
	var ticket models.Ticket
	err := db.
		Preload("Tags").
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("ticket_updates.created_at ASC")
		}).
		Preload("Updates.Attachments").
		Preload("Attachments").
		First(&ticket, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Ticket %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %d: %w", id, err)
	}
	return &ticket, nil
}

// Create persists a new ticket.
func (r *TicketRepository) Create(db *gorm.DB, ticket *models.Ticket) error {
	if err := db.Create(ticket).Error; err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	return nil
}

// Save persists changes to an existing ticket.
func (r *TicketRepository) Save(db *gorm.DB, ticket *models.Ticket) error {
	if err := db.Save(ticket).Error; err != nil {
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	return nil
}

// AddUpdate appends a timeline entry to a ticket and touches its updated_at.
func (r *TicketRepository) AddUpdate(db *gorm.DB, ticket *models.Ticket, update *models.TicketUpdate) error {
	update.TicketID = ticket.ID
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	if err := db.Create(update).Error; err != nil {
		return fmt.Errorf("failed to create ticket update: %w", err)
	}
	ticket.UpdatedAt = time.Now().UTC()
	if err := db.Model(&models.Ticket{}).
		Where("id = ?", ticket.ID).
		Update("updated_at", ticket.UpdatedAt).Error; err != nil {
		return fmt.Errorf("failed to touch ticket: %w", err)
	}
	return nil
}

// SetTags replaces a ticket's tag associations with the named set, creating
// missing tags. Blank names are ignored; an empty set clears all tags.
func (r *TicketRepository) SetTags(db *gorm.DB, ticket *models.Ticket, tagNames []string) error {
	tags, err := NewTagRepository().EnsureNames(db, tagNames)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		if err := db.Model(ticket).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("failed to clear ticket tags: %w", err)
		}
		ticket.Tags = nil
		return nil
	}
	if err := db.Model(ticket).Association("Tags").Replace(&tags); err != nil {
		return fmt.Errorf("failed to set ticket tags: %w", err)
	}
	ticket.Tags = tags
	return nil
}
