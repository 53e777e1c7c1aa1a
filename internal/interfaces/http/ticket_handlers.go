package http

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tickettracker/internal/application/summary"
	"tickettracker/internal/infrastructure/persistence/models"
	"tickettracker/internal/infrastructure/repository"
	"tickettracker/internal/infrastructure/uploads"
	apperrors "tickettracker/internal/shared/errors"
)

// ListTickets handles GET /.
func (h *Handler) ListTickets(c *gin.Context) {
	cfg := h.config()
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}

	filters := repository.TicketFilters{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Tags:     c.QueryArray("tag"),
		TagMode:  c.DefaultQuery("tag_mode", "any"),
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
		Order:    c.Query("order"),
	}
	filters.Normalize()

	tickets, err := h.tickets.List(db, filters, cfg.Priorities)
	if err != nil {
		h.renderError(c, err)
		return
	}

	now := time.Now().UTC()
	views := make([]ticketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, h.annotateTicket(&tickets[i], cfg, now))
	}

	availableTags, err := h.tags.ListOrdered(db)
	if err != nil {
		h.renderError(c, err)
		return
	}

	compact := compactMode(c, false)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Flashes":       popFlashes(c),
		"Tickets":       views,
		"Config":        cfg,
		"AvailableTags": availableTags,
		"Filters":       filters,
		"HasFilters":    filters.HasActiveFilters(),
		"CompactMode":   compact,
		"CompactQuery":  compactQuery(compact),
		"DemoActive":    h.demo.IsActive(),
	})
}

// TicketDetail handles GET /tickets/:id.
func (h *Handler) TicketDetail(c *gin.Context) {
	cfg := h.config()
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}

	ticket, err := h.getTicket(c, db)
	if err != nil {
		h.renderError(c, err)
		return
	}

	now := time.Now().UTC()
	clipboard, err := summary.Build(ticket, cfg, now, summary.Options{})
	if err != nil {
		h.renderError(c, err)
		return
	}

	compact := compactMode(c, false)
	c.HTML(http.StatusOK, "ticket_detail.html", gin.H{
		"Flashes":      popFlashes(c),
		"Ticket":       h.annotateTicket(ticket, cfg, now),
		"Config":       cfg,
		"Clipboard":    clipboard,
		"CompactMode":  compact,
		"CompactQuery": compactQuery(compact),
	})
}

// ticketForm carries the shared create/edit form fields.
type ticketForm struct {
	Title        string `form:"title" binding:"required"`
	Description  string `form:"description" binding:"required"`
	Requester    string `form:"requester"`
	Watchers     string `form:"watchers"`
	Priority     string `form:"priority"`
	Status       string `form:"status"`
	OnHoldReason string `form:"on_hold_reason"`
	DueDate      string `form:"due_date"`
	Tags         string `form:"tags"`
	Links        string `form:"links"`
	Notes        string `form:"notes"`
}

// NewTicketForm handles GET /tickets/new.
func (h *Handler) NewTicketForm(c *gin.Context) {
	h.renderTicketForm(c, nil)
}

// CreateTicket handles POST /tickets/new.
func (h *Handler) CreateTicket(c *gin.Context) {
	cfg := h.config()
	var form ticketForm
	if err := c.ShouldBind(&form); err != nil {
		addFlash(c, "error", "Title and description are required.")
		h.redirect(c, "/tickets/new")
		return
	}
	title := strings.TrimSpace(form.Title)
	description := strings.TrimSpace(form.Description)
	if title == "" || description == "" {
		addFlash(c, "error", "Title and description are required.")
		h.redirect(c, "/tickets/new")
		return
	}

	priority := form.Priority
	if priority == "" && len(cfg.Priorities) > 0 {
		priority = cfg.Priorities[0]
	}
	status := form.Status
	if status == "" && len(cfg.Workflow) > 0 {
		status = cfg.Workflow[0]
	}

	ticket := &models.Ticket{
		Title:        title,
		Description:  description,
		Requester:    optional(form.Requester),
		Priority:     priority,
		Status:       status,
		DueDate:      parseFormDatetime(form.DueDate),
		Notes:        optional(form.Notes),
		Links:        optional(form.Links),
		OnHoldReason: optional(form.OnHoldReason),
	}
	ticket.SetWatchers(parseTags(form.Watchers))
	if ticket.Status != "On Hold" {
		ticket.OnHoldReason = nil
	}

	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}
	store := h.uploadStore()

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := h.tickets.Create(tx, ticket); err != nil {
			return err
		}
		if err := h.tickets.SetTags(tx, ticket, parseTags(form.Tags)); err != nil {
			return err
		}
		statusTo := ticket.Status
		created := &models.TicketUpdate{
			Body:     "Ticket created",
			IsSystem: true,
			StatusTo: &statusTo,
		}
		if err := h.tickets.AddUpdate(tx, ticket, created); err != nil {
			return err
		}
		return h.storeFormAttachments(c, tx, store, ticket.ID, nil)
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	addFlash(c, "success", "Ticket created")
	h.redirect(c, fmt.Sprintf("/tickets/%d", ticket.ID))
}

// EditTicketForm handles GET /tickets/:id/edit.
func (h *Handler) EditTicketForm(c *gin.Context) {
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}
	ticket, err := h.getTicket(c, db)
	if err != nil {
		h.renderError(c, err)
		return
	}
	h.renderTicketForm(c, ticket)
}

// UpdateTicket handles POST /tickets/:id/edit.
func (h *Handler) UpdateTicket(c *gin.Context) {
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}
	ticket, err := h.getTicket(c, db)
	if err != nil {
		h.renderError(c, err)
		return
	}

	var form ticketForm
	if err := c.ShouldBind(&form); err != nil {
		addFlash(c, "error", "Title and description are required.")
		h.redirect(c, fmt.Sprintf("/tickets/%d/edit", ticket.ID))
		return
	}

	previousStatus := ticket.Status
	if title := strings.TrimSpace(form.Title); title != "" {
		ticket.Title = title
	}
	if description := strings.TrimSpace(form.Description); description != "" {
		ticket.Description = description
	}
	ticket.Requester = optional(form.Requester)
	if form.Priority != "" {
		ticket.Priority = form.Priority
	}
	if form.Status != "" {
		ticket.Status = form.Status
	}
	ticket.DueDate = parseFormDatetime(form.DueDate)
	ticket.Notes = optional(form.Notes)
	ticket.Links = optional(form.Links)
	ticket.OnHoldReason = optional(form.OnHoldReason)
	ticket.SetWatchers(parseTags(form.Watchers))

	store := h.uploadStore()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := h.tickets.SetTags(tx, ticket, parseTags(form.Tags)); err != nil {
			return err
		}
		if ticket.Status != previousStatus {
			if ticket.Status != "On Hold" {
				ticket.OnHoldReason = nil
			}
			statusFrom, statusTo := previousStatus, ticket.Status
			change := &models.TicketUpdate{
				Body:       fmt.Sprintf("Status changed from %s to %s", previousStatus, ticket.Status),
				StatusFrom: &statusFrom,
				StatusTo:   &statusTo,
				IsSystem:   true,
			}
			if err := h.tickets.AddUpdate(tx, ticket, change); err != nil {
				return err
			}
		}
		if err := h.tickets.Save(tx, ticket); err != nil {
			return err
		}
		return h.storeFormAttachments(c, tx, store, ticket.ID, nil)
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	addFlash(c, "success", "Ticket updated")
	h.redirect(c, fmt.Sprintf("/tickets/%d", ticket.ID))
}

// updateForm carries the add-update form fields.
type updateForm struct {
	Message      string `form:"message"`
	Author       string `form:"author"`
	Status       string `form:"status"`
	OnHoldReason string `form:"on_hold_reason"`
	ReageTicket  bool   `form:"reage_ticket"`
}

// AddUpdate handles POST /tickets/:id/updates.
func (h *Handler) AddUpdate(c *gin.Context) {
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}
	ticket, err := h.getTicket(c, db)
	if err != nil {
		h.renderError(c, err)
		return
	}

	var form updateForm
	if err := c.ShouldBind(&form); err != nil {
		h.renderError(c, apperrors.NewValidationError("Invalid update form"))
		return
	}
	message := strings.TrimSpace(form.Message)
	author := optional(form.Author)
	newStatus := form.Status
	if newStatus == "" {
		newStatus = ticket.Status
	}
	holdReason := optional(form.OnHoldReason)
	reAgeRequested := form.ReageTicket

	store := h.uploadStore()
	err = db.Transaction(func(tx *gorm.DB) error {
		if newStatus != ticket.Status {
			previousStatus := ticket.Status
			ticket.Status = newStatus
			if newStatus == "On Hold" {
				ticket.OnHoldReason = holdReason
			} else {
				ticket.OnHoldReason = nil
			}
			statusFrom, statusTo := previousStatus, newStatus
			change := &models.TicketUpdate{
				Body:       fmt.Sprintf("Status changed from %s to %s", previousStatus, newStatus),
				StatusFrom: &statusFrom,
				StatusTo:   &statusTo,
				IsSystem:   true,
			}
			if err := h.tickets.AddUpdate(tx, ticket, change); err != nil {
				return err
			}
		}

		var update *models.TicketUpdate
		if message != "" {
			update = &models.TicketUpdate{Body: message, Author: author}
			if err := h.tickets.AddUpdate(tx, ticket, update); err != nil {
				return err
			}
		}

		// Re-aging resets the backlog SLA clock for undated tickets.
		if ticket.DueDate == nil && reAgeRequested {
			today := time.Now().UTC().Truncate(24 * time.Hour)
			ticket.AgeReferenceDate = &today
		}
		if err := h.tickets.Save(tx, ticket); err != nil {
			return err
		}

		var updateID *uint
		if update != nil {
			updateID = &update.ID
		}
		return h.storeFormAttachments(c, tx, store, ticket.ID, updateID)
	})
	if err != nil {
		h.renderError(c, err)
		return
	}

	addFlash(c, "success", "Update added")
	h.redirect(c, fmt.Sprintf("/tickets/%d", ticket.ID))
}

// DownloadAttachment handles GET /attachments/:id.
func (h *Handler) DownloadAttachment(c *gin.Context) {
	db, err := h.engine.Get()
	if err != nil {
		h.renderError(c, err)
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		h.renderError(c, apperrors.NewValidationError("Invalid attachment ID"))
		return
	}
	attachment, err := h.attachments.GetByID(db, uint(id))
	if err != nil {
		h.renderError(c, err)
		return
	}

	store := h.uploadStore()
	path := store.AbsolutePath(attachment.StoredFilename)
	info, err := os.Stat(path)
	if err != nil {
		addFlash(c, "error", "Attachment no longer exists on disk.")
		h.redirect(c, fmt.Sprintf("/tickets/%d", attachment.TicketID))
		return
	}

	file, err := os.Open(path)
	if err != nil {
		h.renderError(c, err)
		return
	}
	defer file.Close()

	mimetype := "application/octet-stream"
	if attachment.Mimetype != nil && *attachment.Mimetype != "" {
		mimetype = *attachment.Mimetype
	}
	c.DataFromReader(http.StatusOK, info.Size(), mimetype, file, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", attachment.DisplayName()),
	})
}

func (h *Handler) renderTicketForm(c *gin.Context, ticket *models.Ticket) {
	cfg := h.config()
	compact := compactMode(c, false)
	c.HTML(http.StatusOK, "ticket_form.html", gin.H{
		"Flashes":      popFlashes(c),
		"Ticket":       ticket,
		"Config":       cfg,
		"CompactMode":  compact,
		"CompactQuery": compactQuery(compact),
	})
}

func (h *Handler) getTicket(c *gin.Context, db *gorm.DB) (*models.Ticket, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return nil, apperrors.NewValidationError("Invalid ticket ID")
	}
	return h.tickets.GetByID(db, uint(id))
}

// storeFormAttachments persists every uploaded "attachments" file through the
// deduplicating store.
func (h *Handler) storeFormAttachments(c *gin.Context, tx *gorm.DB, store *uploads.Store, ticketID uint, updateID *uint) error {
	form, err := c.MultipartForm()
	if err != nil {
		// Plain form posts carry no files.
		return nil
	}
	for _, header := range form.File["attachments"] {
		if header == nil || header.Filename == "" {
			continue
		}
		file, err := header.Open()
		if err != nil {
			return fmt.Errorf("failed to read uploaded file %s: %w", header.Filename, err)
		}
		_, saveErr := store.Save(tx, uploads.Upload{
			Filename: header.Filename,
			Mimetype: header.Header.Get("Content-Type"),
			Content:  file,
		}, ticketID, updateID)
		file.Close()
		if saveErr != nil {
			return saveErr
		}
	}
	return nil
}

// redirect preserves the compact flag across navigation.
func (h *Handler) redirect(c *gin.Context, target string) {
	if compactMode(c, false) {
		target += "?compact=1"
	}
	c.Redirect(http.StatusSeeOther, target)
}

// renderError flashes the failure and sends the user somewhere sensible.
func (h *Handler) renderError(c *gin.Context, err error) {
	h.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
	if appErr := apperrors.GetAppError(err); appErr != nil {
		addFlash(c, "error", appErr.Message)
		if appErr.Type == apperrors.ErrorTypeNotFound {
			c.HTML(http.StatusNotFound, "error.html", gin.H{"Flashes": popFlashes(c), "Status": http.StatusNotFound})
			return
		}
		c.HTML(appErr.Code, "error.html", gin.H{"Flashes": popFlashes(c), "Status": appErr.Code})
		return
	}
	addFlash(c, "error", "Something went wrong while processing the request.")
	c.HTML(http.StatusInternalServerError, "error.html", gin.H{"Flashes": popFlashes(c), "Status": http.StatusInternalServerError})
}
