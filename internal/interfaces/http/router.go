package http

import (
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tickettracker/internal/application/demo"
	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/database"
	"tickettracker/internal/shared/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/app.css
var appStylesheet []byte

func mustTemplates() *template.Template {
	funcs := template.FuncMap{
		"join":  strings.Join,
		"lower": strings.ToLower,
		"str": func(value *string) string {
			if value == nil {
				return ""
			}
			return *value
		},
		"formatTime": func(value any) string {
			return formatTemplateTime(value, "2006-01-02 15:04")
		},
		"formatDatetimeLocal": func(value any) string {
			return formatTemplateTime(value, "2006-01-02T15:04")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// formatTemplateTime renders both time.Time values and pointers, returning
// an empty string for nil or zero times.
func formatTemplateTime(value any, layout string) string {
	switch t := value.(type) {
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.UTC().Format(layout)
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(layout)
	}
	return ""
}

// NewRouter wires the web UI routes.
func NewRouter(store *config.Store, engine *database.Engine, manager *demo.Manager) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.SetHTMLTemplate(mustTemplates())

	router.GET("/static/app.css", func(c *gin.Context) {
		c.Data(200, "text/css; charset=utf-8", appStylesheet)
	})

	h := NewHandler(store, engine, manager)
	router.GET("/", h.ListTickets)
	router.GET("/tickets/new", h.NewTicketForm)
	router.POST("/tickets/new", h.CreateTicket)
	router.GET("/tickets/:id", h.TicketDetail)
	router.GET("/tickets/:id/edit", h.EditTicketForm)
	router.POST("/tickets/:id/edit", h.UpdateTicket)
	router.POST("/tickets/:id/updates", h.AddUpdate)
	router.GET("/attachments/:id", h.DownloadAttachment)
	router.GET("/settings", h.ShowSettings)
	router.POST("/settings", h.SaveSettings)
	router.POST("/settings/demo-mode", h.DemoModeAction)
	return router
}

func requestLogger() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
