// Package summary composes clipboard-ready ticket summaries in HTML and
// plain text, with operator-configurable section lists.
package summary

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"

	"tickettracker/internal/application/sla"
	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/persistence/models"
)

// SectionDescriptions documents every known summary section for the settings
// page.
var SectionDescriptions = map[string]string{
	"header":      "Displays the ticket title as a heading.",
	"timestamps":  "Shows the created and last updated timestamps.",
	"meta":        "Lists status, priority, due date, and SLA countdown.",
	"people":      "Summarises the requester and watchers.",
	"description": "Includes the ticket description body.",
	"links":       "Copies the ticket's reference links field.",
	"notes":       "Copies the internal notes field.",
	"tags":        "Lists applied tags.",
	"updates":     "Shows recent timeline updates with authors and changes.",
}

// Summary is the rendered clipboard payload for a ticket.
type Summary struct {
	HTML string
	Text string
}

// Options overrides the configured section lists for a single render.
type Options struct {
	HTMLSections []string
	TextSections []string
}

const timestampLayout = "2006-01-02 15:04"

type updateView struct {
	Author    string
	CreatedAt string
	Body      string
	Change    string
	IsSystem  bool
}

type summaryView struct {
	Sections     []string
	Title        string
	TitleStyle   template.CSS
	Status       string
	Priority     string
	CreatedAt    string
	UpdatedAt    string
	DueDate      string
	Countdown    string
	Requester    string
	Watchers     string
	Description  string
	Links        []string
	Notes        string
	Tags         []string
	Updates      []updateView
	InlineStyles bool
}

const htmlSummaryTemplate = `{{- range .Sections -}}
{{- if eq . "header" -}}
<h2{{if $.InlineStyles}} style="{{$.TitleStyle}}"{{end}}>{{$.Title}}</h2>
{{ else if eq . "timestamps" -}}
<p><strong>Created:</strong> {{$.CreatedAt}}{{if $.UpdatedAt}} &middot; <strong>Updated:</strong> {{$.UpdatedAt}}{{end}}</p>
{{ else if eq . "meta" -}}
<p><strong>Status:</strong> {{$.Status}} &middot; <strong>Priority:</strong> {{$.Priority}}{{if $.DueDate}} &middot; <strong>Due:</strong> {{$.DueDate}}{{end}}{{if $.Countdown}} &middot; <strong>{{$.Countdown}}</strong>{{end}}</p>
{{ else if eq . "people" -}}
{{if or $.Requester $.Watchers}}<p>{{if $.Requester}}<strong>Requester:</strong> {{$.Requester}}{{end}}{{if and $.Requester $.Watchers}} &middot; {{end}}{{if $.Watchers}}<strong>Watchers:</strong> {{$.Watchers}}{{end}}</p>
{{end}}{{- else if eq . "description" -}}
{{if $.Description}}<p>{{$.Description}}</p>
{{end}}{{- else if eq . "links" -}}
{{if $.Links}}<ul>{{range $.Links}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>
{{end}}{{- else if eq . "notes" -}}
{{if $.Notes}}<p><strong>Notes:</strong> {{$.Notes}}</p>
{{end}}{{- else if eq . "tags" -}}
{{if $.Tags}}<p><strong>Tags:</strong> {{join $.Tags ", "}}</p>
{{end}}{{- else if eq . "updates" -}}
{{if $.Updates}}<h3>Recent updates</h3>
<ul>
{{range $.Updates}}<li><strong>{{.CreatedAt}}</strong>{{if .Author}} &mdash; {{.Author}}{{end}}{{if .Change}} ({{.Change}}){{end}}: {{.Body}}</li>
{{end}}</ul>
{{end}}{{- end -}}
{{- end -}}`

const textSummaryTemplate = `{{- range .Sections -}}
{{- if eq . "header" -}}
{{$.Title}}
{{ else if eq . "timestamps" -}}
Created: {{$.CreatedAt}}{{if $.UpdatedAt}} | Updated: {{$.UpdatedAt}}{{end}}
{{ else if eq . "meta" -}}
Status: {{$.Status}} | Priority: {{$.Priority}}{{if $.DueDate}} | Due: {{$.DueDate}}{{end}}{{if $.Countdown}} | {{$.Countdown}}{{end}}
{{ else if eq . "people" -}}
{{if $.Requester}}Requester: {{$.Requester}}
{{end}}{{if $.Watchers}}Watchers: {{$.Watchers}}
{{end}}{{- else if eq . "description" -}}
{{if $.Description}}{{$.Description}}
{{end}}{{- else if eq . "links" -}}
{{if $.Links}}Links:
{{range $.Links}}- {{.}}
{{end}}{{end}}{{- else if eq . "notes" -}}
{{if $.Notes}}Notes: {{$.Notes}}
{{end}}{{- else if eq . "tags" -}}
{{if $.Tags}}Tags: {{join $.Tags ", "}}
{{end}}{{- else if eq . "updates" -}}
{{if $.Updates}}Recent updates:
{{range $.Updates}}- {{.CreatedAt}}{{if .Author}} ({{.Author}}){{end}}{{if .Change}} [{{.Change}}]{{end}}: {{.Body}}
{{end}}{{end}}{{- end -}}
{{- end -}}`

var (
	htmlTemplate = template.Must(template.New("clipboard_html").
			Funcs(template.FuncMap{"join": strings.Join}).
			Parse(htmlSummaryTemplate))
	textTemplate = texttemplate.Must(texttemplate.New("clipboard_text").
			Funcs(texttemplate.FuncMap{"join": strings.Join}).
			Parse(textSummaryTemplate))
)

// Build renders the HTML and plain-text clipboard payloads for a ticket.
// Section lists in opts take precedence over the configured ones.
func Build(ticket *models.Ticket, cfg *config.AppConfig, now time.Time, opts Options) (Summary, error) {
	summaryConfig := cfg.ClipboardSummary

	htmlSections := normalizeSections(opts.HTMLSections)
	if len(htmlSections) == 0 {
		htmlSections = normalizeSections(summaryConfig.SectionsForHTML())
	}
	textSections := normalizeSections(opts.TextSections)
	if len(textSections) == 0 {
		textSections = normalizeSections(summaryConfig.SectionsForText())
	}

	updates := recentUpdates(ticket, summaryConfig.MaxUpdates())

	view := buildView(ticket, cfg, now, updates)
	view.InlineStyles = summaryConfig.InlineStyles

	view.Sections = htmlSections
	var htmlOut strings.Builder
	if err := htmlTemplate.Execute(&htmlOut, view); err != nil {
		return Summary{}, fmt.Errorf("failed to render HTML summary: %w", err)
	}

	view.Sections = textSections
	var textOut strings.Builder
	if err := textTemplate.Execute(&textOut, view); err != nil {
		return Summary{}, fmt.Errorf("failed to render text summary: %w", err)
	}

	return Summary{
		HTML: strings.TrimSpace(htmlOut.String()),
		Text: strings.TrimSpace(textOut.String()),
	}, nil
}

func buildView(ticket *models.Ticket, cfg *config.AppConfig, now time.Time, updates []models.TicketUpdate) *summaryView {
	view := &summaryView{
		Title:       ticket.Title,
		TitleStyle:  template.CSS("color: " + cfg.Colors.TicketTitleColor()),
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		CreatedAt:   formatTimestamp(&ticket.CreatedAt),
		UpdatedAt:   formatTimestamp(&ticket.UpdatedAt),
		DueDate:     formatTimestamp(ticket.DueDate),
		Description: strings.TrimSpace(ticket.Description),
		Watchers:    strings.Join(ticket.Watchers(), ", "),
		Tags:        ticket.TagNames(),
	}
	if cfg.ClipboardSummary.DebugStatus {
		view.Title = fmt.Sprintf("%s [%s]", ticket.Title, ticket.Status)
	}
	if countdown := sla.ComputeCountdown(ticket, cfg, now); countdown != nil {
		view.Countdown = countdown.Text
	}
	if ticket.Requester != nil {
		view.Requester = strings.TrimSpace(*ticket.Requester)
	}
	if ticket.Notes != nil {
		view.Notes = strings.TrimSpace(*ticket.Notes)
	}
	if ticket.Links != nil {
		for _, line := range strings.Split(*ticket.Links, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				view.Links = append(view.Links, line)
			}
		}
	}
	for i := range updates {
		update := &updates[i]
		entry := updateView{
			CreatedAt: formatTimestamp(&update.CreatedAt),
			Body:      strings.TrimSpace(update.Body),
			IsSystem:  update.IsSystem,
		}
		if update.Author != nil {
			entry.Author = strings.TrimSpace(*update.Author)
		}
		if update.StatusFrom != nil && update.StatusTo != nil {
			entry.Change = fmt.Sprintf("%s → %s", *update.StatusFrom, *update.StatusTo)
		} else if update.StatusTo != nil {
			entry.Change = "→ " + *update.StatusTo
		}
		view.Updates = append(view.Updates, entry)
	}
	return view
}

// normalizeSections lowercases, trims, and deduplicates while keeping order.
func normalizeSections(values []string) []string {
	var sections []string
	seen := make(map[string]bool)
	for _, value := range values {
		text := strings.ToLower(strings.TrimSpace(value))
		if text == "" || seen[text] {
			continue
		}
		sections = append(sections, text)
		seen[text] = true
	}
	return sections
}

// recentUpdates returns the newest updates first, capped at limit.
func recentUpdates(ticket *models.Ticket, limit int) []models.TicketUpdate {
	if limit <= 0 {
		return nil
	}
	updates := append([]models.TicketUpdate(nil), ticket.Updates...)
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	if len(updates) > limit {
		updates = updates[:limit]
	}
	return updates
}

func formatTimestamp(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format(timestampLayout)
}
