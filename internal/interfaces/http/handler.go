// Package http exposes the server-rendered web interface.
package http

import (
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tickettracker/internal/application/demo"
	"tickettracker/internal/application/sla"
	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/database"
	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/infrastructure/repository"
	"tickettracker/internal/infrastructure/uploads"
	"tickettracker/internal/shared/logger"
)

// Handler serves the web UI. Repositories are stateless; the live *gorm.DB is
// fetched per request because demo mode swaps the underlying connection.
type Handler struct {
	store       *config.Store
	engine      *database.Engine
	demo        *demo.Manager
	tickets     *repository.TicketRepository
	tags        *repository.TagRepository
	attachments *repository.AttachmentRepository
	log         *slog.Logger
}

func NewHandler(store *config.Store, engine *database.Engine, manager *demo.Manager) *Handler {
	return &Handler{
		store:       store,
		engine:      engine,
		demo:        manager,
		tickets:     repository.NewTicketRepository(),
		tags:        repository.NewTagRepository(),
		attachments: repository.NewAttachmentRepository(),
		log:         logger.WithComponent("http"),
	}
}

func (h *Handler) config() *config.AppConfig {
	return h.store.Current()
}

func (h *Handler) uploadStore() *uploads.Store {
	return uploads.NewStore(h.config().UploadsDirectory)
}

// ticketView decorates a ticket with its computed SLA presentation. Tint is
// template.CSS because rgba()/color-mix() values would otherwise be rejected
// by the CSS value sanitizer.
type ticketView struct {
	*models.Ticket
	Color     string
	Tint      template.CSS
	Countdown *sla.Countdown
}

func (h *Handler) annotateTicket(ticket *models.Ticket, cfg *config.AppConfig, now time.Time) ticketView {
	color := sla.Color(ticket, cfg, now)
	return ticketView{
		Ticket:    ticket,
		Color:     color,
		Tint:      template.CSS(sla.DefaultTint(color)),
		Countdown: sla.ComputeCountdown(ticket, cfg, now),
	}
}

// compactMode reports whether the request asks for the condensed layout.
// List and ticket pages default off; the settings page defaults on.
func compactMode(c *gin.Context, defaultValue bool) bool {
	value, ok := c.GetQuery("compact")
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "false", "no", "off":
		return false
	case "1", "true", "yes", "on":
		return true
	}
	return defaultValue
}

func compactQuery(compact bool) string {
	if compact {
		return "1"
	}
	return "0"
}

// parseTags splits a comma or semicolon separated tag field.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// parseMultiline splits a textarea into trimmed, deduplicated entries.
// Commas act as separators alongside newlines.
func parseMultiline(raw string) []string {
	var entries []string
	seen := make(map[string]bool)
	for _, segment := range strings.Split(strings.ReplaceAll(raw, ",", "\n"), "\n") {
		text := strings.TrimSpace(segment)
		if text == "" || seen[text] {
			continue
		}
		entries = append(entries, text)
		seen[text] = true
	}
	return entries
}

// parseFormDatetime accepts the HTML datetime-local formats.
func parseFormDatetime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return &parsed
		}
	}
	return nil
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
