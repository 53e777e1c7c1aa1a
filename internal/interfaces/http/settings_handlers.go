package http

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tickettracker/internal/application/summary"
	"tickettracker/internal/infrastructure/config"
	apperrors "tickettracker/internal/shared/errors"
)

var defaultStageLabels = []string{"Comfort Zone", "Attention Zone", "Action Zone", "Fire Zone"}

// stageLabels returns human-friendly labels for SLA stages.
func stageLabels(stageCount int) []string {
	if stageCount <= 0 {
		return nil
	}
	labels := make([]string, 0, stageCount)
	for index := 0; index < stageCount; index++ {
		if index < len(defaultStageLabels) {
			labels = append(labels, defaultStageLabels[index])
		} else {
			labels = append(labels, fmt.Sprintf("Stage %d", index+1))
		}
	}
	return labels
}

type colorEntry struct {
	Key       string
	Label     string
	FieldName string
	Value     string
	Default   string
}

type colorSection struct {
	Name    string
	Label   string
	Entries []colorEntry
}

type sectionOption struct {
	Name        string
	Description string
}

// clipboardSectionOptions pairs every known clipboard section with its
// description, appending any custom sections found in the configuration.
func clipboardSectionOptions(cfg *config.AppConfig) []sectionOption {
	options := make([]sectionOption, 0, len(config.DefaultClipboardSections))
	seen := make(map[string]bool)
	for _, section := range config.DefaultClipboardSections {
		options = append(options, sectionOption{Name: section, Description: summary.SectionDescriptions[section]})
		seen[section] = true
	}
	for _, section := range cfg.ClipboardSummary.AvailableSections() {
		if seen[section] {
			continue
		}
		options = append(options, sectionOption{
			Name:        section,
			Description: "Custom clipboard section configured in your settings.",
		})
		seen[section] = true
	}
	return options
}

func titleLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// colorSections builds the palette form model: every known key plus any
// extra configured keys, with the configured value when valid and the
// built-in default otherwise.
func colorSections(cfg *config.AppConfig) []colorSection {
	fallback, _ := config.NormalizeHexColor(config.DefaultGradientColors[config.GradientStageOrder[0]])

	normalizedOr := func(value, fallbackValue string) string {
		if normalized, ok := config.NormalizeHexColor(value); ok {
			return normalized
		}
		return fallbackValue
	}

	titleDefault := normalizedOr(config.DefaultTicketTitleColor, fallback)
	sections := []colorSection{{
		Name:  "ticket_title",
		Label: "Ticket title",
		Entries: []colorEntry{{
			Key:       "ticket_title",
			Label:     "Ticket title",
			FieldName: "colors[ticket_title]",
			Value:     normalizedOr(cfg.Colors.TicketTitle, titleDefault),
			Default:   titleDefault,
		}},
	}}

	gradientOrder := append(append([]string(nil), config.GradientStageOrder...), config.GradientOverdueKey)
	gradientOrder = appendMissingKeys(gradientOrder, cfg.Colors.Gradient)
	labels := stageLabels(gradientStageCount(gradientOrder))
	var gradientEntries []colorEntry
	for _, key := range gradientOrder {
		label := titleLabel(key)
		if key == config.GradientOverdueKey {
			label = "Overdue"
		} else if index, ok := stageIndexFromKey(key); ok && index < len(labels) {
			label = labels[index]
		}
		defaultValue := normalizedOr(config.DefaultGradientColors[key], fallback)
		gradientEntries = append(gradientEntries, colorEntry{
			Key:       key,
			Label:     label,
			FieldName: fmt.Sprintf("colors[gradient][%s]", key),
			Value:     normalizedOr(cfg.Colors.Gradient[key], defaultValue),
			Default:   defaultValue,
		})
	}
	sections = append(sections, colorSection{Name: "gradient", Label: "Gradient stages", Entries: gradientEntries})

	statusOrder := appendMissingKeys(sortedKeysOf(config.DefaultStatusColors), cfg.Colors.Statuses)
	var statusEntries []colorEntry
	for _, key := range statusOrder {
		defaultValue := normalizedOr(config.DefaultStatusColors[key], fallback)
		statusEntries = append(statusEntries, colorEntry{
			Key:       key,
			Label:     titleLabel(key),
			FieldName: fmt.Sprintf("colors[statuses][%s]", key),
			Value:     normalizedOr(cfg.Colors.Statuses[key], defaultValue),
			Default:   defaultValue,
		})
	}
	sections = append(sections, colorSection{Name: "statuses", Label: "Status overrides", Entries: statusEntries})

	priorityOrder := appendMissingKeys(append([]string(nil), cfg.Priorities...), cfg.Colors.Priorities)
	var priorityEntries []colorEntry
	for _, key := range priorityOrder {
		defaultValue := normalizedOr(config.DefaultPriorityColors[key], fallback)
		priorityEntries = append(priorityEntries, colorEntry{
			Key:       key,
			Label:     key,
			FieldName: fmt.Sprintf("colors[priorities][%s]", key),
			Value:     normalizedOr(cfg.Colors.Priorities[key], defaultValue),
			Default:   defaultValue,
		})
	}
	sections = append(sections, colorSection{Name: "priorities", Label: "Priority colors", Entries: priorityEntries})

	tagOrder := appendMissingKeys(sortedKeysOf(config.DefaultTagColors), cfg.Colors.Tags)
	var tagEntries []colorEntry
	for _, key := range tagOrder {
		defaultValue := normalizedOr(config.DefaultTagColors[key], fallback)
		tagEntries = append(tagEntries, colorEntry{
			Key:       key,
			Label:     titleLabel(key),
			FieldName: fmt.Sprintf("colors[tags][%s]", key),
			Value:     normalizedOr(cfg.Colors.Tags[key], defaultValue),
			Default:   defaultValue,
		})
	}
	sections = append(sections, colorSection{Name: "tags", Label: "Tag colors", Entries: tagEntries})

	return sections
}

func gradientStageCount(keys []string) int {
	count := len(config.GradientStageOrder)
	for _, key := range keys {
		if index, ok := stageIndexFromKey(key); ok && index+1 > count {
			count = index + 1
		}
	}
	return count
}

func stageIndexFromKey(key string) (int, bool) {
	const prefix = "stage"
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	index, err := strconv.Atoi(key[len(prefix):])
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func appendMissingKeys(order []string, configured map[string]string) []string {
	present := make(map[string]bool, len(order))
	for _, key := range order {
		present[key] = true
	}
	var extras []string
	for key := range configured {
		if !present[key] {
			extras = append(extras, key)
			present[key] = true
		}
	}
	sort.Strings(extras)
	return append(order, extras...)
}

func sortedKeysOf(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// slaFormGrid carries the stage threshold inputs for the settings form.
type slaFormGrid struct {
	StageCount        int
	StageLabels       []string
	DueStageDays      []string
	PriorityStageDays map[string][]string
	PriorityOrder     []string
	DefaultDueDays    string
}

func buildSLAGrid(cfg *config.AppConfig) slaFormGrid {
	dueDays := cfg.SLA.DueStageDays
	if len(dueDays) == 0 {
		dueDays = config.DefaultDueStageDays
	}

	priorityDays := make(map[string][]int, len(cfg.Priorities))
	stageCount := len(dueDays)
	for _, priority := range cfg.Priorities {
		values := cfg.SLA.PriorityStageDays[priority]
		if len(values) == 0 {
			values = config.DefaultPriorityStageDays[priority]
		}
		if len(values) == 0 {
			values = config.DefaultPriorityStageDaysFallback
		}
		priorityDays[priority] = values
		if len(values) > stageCount {
			stageCount = len(values)
		}
	}
	if len(config.DefaultDueStageDays) > stageCount {
		stageCount = len(config.DefaultDueStageDays)
	}

	grid := slaFormGrid{
		StageCount:        stageCount,
		StageLabels:       stageLabels(stageCount),
		DueStageDays:      padStageValues(dueDays, stageCount),
		PriorityStageDays: make(map[string][]string, len(priorityDays)),
		PriorityOrder:     append([]string(nil), cfg.Priorities...),
	}
	for priority, values := range priorityDays {
		grid.PriorityStageDays[priority] = padStageValues(values, stageCount)
	}
	if cfg.SLA.DefaultDueDays != nil {
		grid.DefaultDueDays = strconv.Itoa(*cfg.SLA.DefaultDueDays)
	}
	return grid
}

func padStageValues(values []int, stageCount int) []string {
	padded := make([]string, 0, stageCount)
	for _, value := range values {
		padded = append(padded, strconv.Itoa(value))
	}
	for len(padded) < stageCount {
		padded = append(padded, "")
	}
	return padded
}

// ShowSettings handles GET /settings.
func (h *Handler) ShowSettings(c *gin.Context) {
	h.renderSettings(c, h.config())
}

func (h *Handler) renderSettings(c *gin.Context, cfg *config.AppConfig) {
	compact := compactMode(c, true)
	selectedHTML := make(map[string]bool)
	for _, section := range cfg.ClipboardSummary.SectionsForHTML() {
		selectedHTML[section] = true
	}
	selectedText := make(map[string]bool)
	for _, section := range cfg.ClipboardSummary.SectionsForText() {
		selectedText[section] = true
	}

	c.HTML(http.StatusOK, "settings.html", gin.H{
		"Flashes":           popFlashes(c),
		"Config":            cfg,
		"Priorities":        strings.Join(cfg.Priorities, "\n"),
		"HoldReasons":       strings.Join(cfg.HoldReasons, "\n"),
		"Workflow":          strings.Join(cfg.Workflow, "\n"),
		"ClipboardSections": clipboardSectionOptions(cfg),
		"SelectedHTML":      selectedHTML,
		"SelectedText":      selectedText,
		"UpdatesLimit":      strconv.Itoa(cfg.ClipboardSummary.UpdatesLimit),
		"ColorSections":     colorSections(cfg),
		"SLA":               buildSLAGrid(cfg),
		"DemoStatus":        h.demo.Status(),
		"CompactMode":       compact,
		"CompactQuery":      compactQuery(compact),
	})
}

// SaveSettings handles POST /settings. Validation failures flash every
// problem and return to the form; a demo-mode toggle runs before the file is
// written and blocks the save when it fails.
func (h *Handler) SaveSettings(c *gin.Context) {
	cfg := h.config()
	var errors []string

	defaultSubmittedBy := strings.TrimSpace(c.PostForm("default_submitted_by"))
	if defaultSubmittedBy == "" {
		errors = append(errors, "Default submitter cannot be empty.")
	}
	priorities := parseMultiline(c.PostForm("priorities"))
	if len(priorities) == 0 {
		errors = append(errors, "Provide at least one priority value.")
	}
	holdReasons := parseMultiline(c.PostForm("hold_reasons"))
	if len(holdReasons) == 0 {
		errors = append(errors, "Provide at least one hold reason.")
	}
	workflow := parseMultiline(c.PostForm("workflow"))
	if len(workflow) == 0 {
		errors = append(errors, "Provide at least one workflow status.")
	}

	sectionNames := make([]string, 0)
	for _, option := range clipboardSectionOptions(cfg) {
		sectionNames = append(sectionNames, option.Name)
	}
	htmlSelected := toSet(c.PostFormArray("html_sections"))
	textSelected := toSet(c.PostFormArray("text_sections"))
	htmlSections := filterSections(sectionNames, htmlSelected)
	if len(htmlSections) == 0 {
		htmlSections = cfg.ClipboardSummary.SectionsForHTML()
	}
	textSections := filterSections(sectionNames, textSelected)
	if len(textSections) == 0 {
		textSections = htmlSections
	}

	updatesLimit := cfg.ClipboardSummary.UpdatesLimit
	if raw := strings.TrimSpace(c.PostForm("updates_limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			errors = append(errors, "Updates limit must be a non-negative integer.")
		} else {
			updatesLimit = value
		}
	}

	dueStageDays, ok := parseStageValues(c.PostFormArray("due_stage_days"))
	if !ok {
		errors = append(errors, "Due stage thresholds must be non-negative integers.")
	}

	priorityStageDays := make(map[string][]int)
	priorityStageError := false
	for _, priority := range appendMissingKeys(priorities, nil) {
		raw := c.PostFormArray(fmt.Sprintf("priority_stage_days[%s]", priority))
		if len(raw) == 0 {
			continue
		}
		values, ok := parseStageValues(raw)
		if !ok {
			priorityStageError = true
			continue
		}
		if len(values) > 0 {
			priorityStageDays[priority] = values
		}
	}
	if priorityStageError {
		errors = append(errors, "Priority stage thresholds must be non-negative integers.")
	}

	var defaultDueDays *int
	if raw := strings.TrimSpace(c.PostForm("default_due_days")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			errors = append(errors, "Default backlog due days must be a non-negative integer.")
		} else {
			defaultDueDays = &value
		}
	}

	// Color palette: blank fields fall back to the default, invalid values
	// are reported by label.
	updatedColors := config.ColorConfig{
		Gradient:   make(map[string]string),
		Statuses:   make(map[string]string),
		Priorities: make(map[string]string),
		Tags:       make(map[string]string),
	}
	var invalidColorLabels []string
	for _, section := range colorSections(cfg) {
		for _, entry := range section.Entries {
			submitted := strings.TrimSpace(c.PostForm(entry.FieldName))
			value := entry.Default
			if submitted != "" {
				normalized, ok := config.NormalizeHexColor(submitted)
				if !ok {
					invalidColorLabels = append(invalidColorLabels, entry.Label)
				} else {
					value = normalized
				}
			}
			switch section.Name {
			case "ticket_title":
				updatedColors.TicketTitle = value
			case "gradient":
				updatedColors.Gradient[entry.Key] = value
			case "statuses":
				updatedColors.Statuses[entry.Key] = value
			case "priorities":
				updatedColors.Priorities[entry.Key] = value
			case "tags":
				updatedColors.Tags[entry.Key] = value
			}
		}
	}
	if len(invalidColorLabels) > 0 {
		errors = append(errors, "Provide valid hex colors (example #AABBCC) for: "+strings.Join(invalidColorLabels, ", ")+".")
	}

	debugStatus := c.PostForm("clipboard_debug_status") != ""
	autoReturn := c.PostForm("auto_return_to_list") != ""
	demoEnabled := c.PostForm("demo_mode") != ""

	if len(errors) > 0 {
		for _, message := range errors {
			addFlash(c, "error", message)
		}
		h.renderSettings(c, cfg)
		return
	}

	updated := cfg.Clone()
	updated.DefaultSubmittedBy = defaultSubmittedBy
	updated.Priorities = priorities
	updated.HoldReasons = holdReasons
	updated.Workflow = workflow
	updated.ClipboardSummary.HTMLSections = htmlSections
	updated.ClipboardSummary.TextSections = textSections
	updated.ClipboardSummary.UpdatesLimit = updatesLimit
	updated.ClipboardSummary.DebugStatus = debugStatus
	updated.Behavior.AutoReturnToList = autoReturn
	updated.SLA.DueStageDays = dueStageDays
	updated.SLA.PriorityStageDays = priorityStageDays
	updated.SLA.DefaultDueDays = defaultDueDays
	updated.Colors = updatedColors
	updated.DemoMode = demoEnabled

	shouldEnableDemo := demoEnabled && !cfg.DemoMode
	shouldDisableDemo := !demoEnabled && cfg.DemoMode

	toggleFailed := false
	if shouldEnableDemo {
		if err := h.demo.Enable(); err != nil {
			addFlash(c, "error", "Unable to enable demo mode: "+demoMessage(err))
			toggleFailed = true
		}
	} else if shouldDisableDemo {
		if err := h.demo.Disable(); err != nil {
			addFlash(c, "error", "Unable to disable demo mode: "+demoMessage(err))
			toggleFailed = true
		}
	}
	if toggleFailed {
		addFlash(c, "error", "Demo mode change failed; settings were not saved.")
		h.renderSettings(c, cfg)
		return
	}

	if !h.persistConfig(c, updated) {
		// Undo the demo transition so the runtime matches the saved file.
		if shouldEnableDemo {
			if err := h.demo.Disable(); err != nil {
				h.log.Warn("unable to revert demo mode after save failure", "error", err)
			}
		} else if shouldDisableDemo {
			if err := h.demo.Enable(); err != nil {
				h.log.Warn("unable to restore demo mode after save failure", "error", err)
			}
		}
		h.renderSettings(c, cfg)
		return
	}

	addFlash(c, "success", "Settings updated")
	compact := compactMode(c, true)
	target := "/settings"
	if updated.Behavior.AutoReturnToList {
		target = "/"
	}
	c.Redirect(http.StatusSeeOther, target+"?compact="+compactQuery(compact))
}

// DemoModeAction handles POST /settings/demo-mode.
func (h *Handler) DemoModeAction(c *gin.Context) {
	cfg := h.config()
	action := strings.ToLower(strings.TrimSpace(c.PostForm("action")))

	switch action {
	case "enable":
		if err := h.demo.Enable(); err != nil {
			addFlash(c, "error", "Unable to enable demo mode: "+demoMessage(err))
			break
		}
		if cfg.DemoMode {
			addFlash(c, "success", "Demo mode dataset loaded.")
			break
		}
		if h.persistConfig(c, cfg.WithDemoMode(true)) {
			addFlash(c, "success", "Demo mode enabled. Sample data loaded and live data snapshotted.")
		} else if err := h.demo.Disable(); err != nil {
			h.log.Warn("unable to revert demo mode after failed persistence", "error", err)
		}
	case "disable":
		if err := h.demo.Disable(); err != nil {
			addFlash(c, "error", "Unable to disable demo mode: "+demoMessage(err))
			break
		}
		if !cfg.DemoMode {
			addFlash(c, "success", "Demo mode disabled.")
			break
		}
		if h.persistConfig(c, cfg.WithDemoMode(false)) {
			addFlash(c, "success", "Demo mode disabled. Original data restored.")
		} else if err := h.demo.Enable(); err != nil {
			h.log.Warn("unable to re-enable demo mode after save failure", "error", err)
		}
	case "persist":
		if !h.demo.IsActive() {
			addFlash(c, "error", "Enable demo mode before persisting the dataset.")
			break
		}
		datasetPath, err := h.demo.PersistDataset()
		if err != nil {
			addFlash(c, "error", "Unable to persist demo dataset: "+demoMessage(err))
			break
		}
		addFlash(c, "success", fmt.Sprintf("Demo dataset saved to %s.", datasetPath))
	case "refresh":
		if err := h.demo.Refresh(); err != nil {
			addFlash(c, "error", "Unable to refresh demo data: "+demoMessage(err))
			break
		}
		addFlash(c, "success", "Demo data refreshed.")
	default:
		addFlash(c, "error", "Unrecognized demo mode action.")
	}

	compact := compactMode(c, true)
	c.Redirect(http.StatusSeeOther, "/settings?compact="+compactQuery(compact))
}

// persistConfig writes the configuration file and promotes the new value to
// the store. A false return means nothing was saved.
func (h *Handler) persistConfig(c *gin.Context, updated *config.AppConfig) bool {
	if _, err := config.Save(updated, ""); err != nil {
		addFlash(c, "error", "Unable to determine configuration file path; changes were not saved.")
		h.log.Error("failed to save configuration", "error", err)
		return false
	}
	h.store.Replace(updated)
	return true
}

func demoMessage(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[strings.ToLower(strings.TrimSpace(value))] = true
	}
	return set
}

func filterSections(known []string, selected map[string]bool) []string {
	var sections []string
	for _, section := range known {
		if selected[section] {
			sections = append(sections, section)
		}
	}
	return sections
}

// parseStageValues converts submitted stage inputs to ints, skipping blanks.
// Returns false when any value is not a non-negative integer.
func parseStageValues(raw []string) ([]int, bool) {
	var values []int
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		value, err := strconv.Atoi(entry)
		if err != nil || value < 0 {
			return nil, false
		}
		values = append(values, value)
	}
	return values, true
}
