package config

import (
	"sort"
	"strings"
)

// SLAConfig holds the service-level thresholds used for coloring tickets.
type SLAConfig struct {
	DueStageDays      []int
	PriorityStageDays map[string][]int
	DefaultDueDays    *int
}

// DueThresholds returns descending day thresholds for due-date staging.
func (s SLAConfig) DueThresholds() []int {
	thresholds := make([]int, 0, len(s.DueStageDays))
	thresholds = append(thresholds, s.DueStageDays...)
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))
	if len(thresholds) == 0 {
		return append([]int(nil), DefaultDueStageDays...)
	}
	return thresholds
}

// PriorityThresholds returns ascending day thresholds for backlog staging.
// Configured values win, then the built-in per-priority defaults, then the
// global fallback sequence for unconfigured priorities.
func (s SLAConfig) PriorityThresholds(priority string) []int {
	if thresholds := toStageThresholds(s.PriorityStageDays[priority]); len(thresholds) > 0 {
		return thresholds
	}
	if thresholds := toStageThresholds(DefaultPriorityStageDays[priority]); len(thresholds) > 0 {
		return thresholds
	}
	return toStageThresholds(DefaultPriorityStageDaysFallback)
}

// RemainingDays returns the days left before a backlog ticket breaches its
// SLA. The second return value is false when no limit is configured.
func (s SLAConfig) RemainingDays(priority string, ageDays float64) (float64, bool) {
	thresholds := s.PriorityThresholds(priority)
	var limit int
	switch {
	case len(thresholds) > 0:
		limit = thresholds[len(thresholds)-1]
	case s.DefaultDueDays != nil:
		limit = *s.DefaultDueDays
	default:
		return 0, false
	}
	return float64(limit) - ageDays, true
}

// Clone returns a deep copy of the SLA configuration.
func (s SLAConfig) Clone() SLAConfig {
	out := SLAConfig{
		DueStageDays:      append([]int(nil), s.DueStageDays...),
		PriorityStageDays: make(map[string][]int, len(s.PriorityStageDays)),
	}
	for priority, values := range s.PriorityStageDays {
		out.PriorityStageDays[priority] = append([]int(nil), values...)
	}
	if s.DefaultDueDays != nil {
		days := *s.DefaultDueDays
		out.DefaultDueDays = &days
	}
	return out
}

// ColorConfig holds the color palette controls for different UI states.
type ColorConfig struct {
	Gradient    map[string]string
	Statuses    map[string]string
	Priorities  map[string]string
	Tags        map[string]string
	TicketTitle string
}

// GradientColor resolves a gradient key, falling back to the built-in default
// for known keys and to the stage-0 default otherwise.
func (c ColorConfig) GradientColor(key string) string {
	if value, ok := c.Gradient[key]; ok && value != "" {
		return value
	}
	if value, ok := DefaultGradientColors[key]; ok {
		return value
	}
	return DefaultGradientColors[GradientStageOrder[0]]
}

// GradientStageColor returns the color for a stage index, clamped to the
// available stage range.
func (c ColorConfig) GradientStageColor(stageIndex int) string {
	if stageIndex < 0 {
		stageIndex = 0
	}
	if stageIndex > len(GradientStageOrder)-1 {
		stageIndex = len(GradientStageOrder) - 1
	}
	return c.GradientColor(GradientStageOrder[stageIndex])
}

// GradientOverdueColor returns the color used for past-due tickets.
func (c ColorConfig) GradientOverdueColor() string {
	return c.GradientColor(GradientOverdueKey)
}

// TicketTitleColor returns the configured ticket title color or its default.
func (c ColorConfig) TicketTitleColor() string {
	if value := strings.TrimSpace(c.TicketTitle); value != "" {
		return value
	}
	return DefaultTicketTitleColor
}

// StatusColor looks up an explicit status override color. The lookup is
// case-insensitive and also tried with spaces replaced by underscores.
func (c ColorConfig) StatusColor(status string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(status))
	if lowered == "" {
		return "", false
	}
	palette := make(map[string]string, len(c.Statuses)*2)
	for key, value := range c.Statuses {
		keyLower := strings.ToLower(key)
		if keyLower == "" {
			continue
		}
		palette[keyLower] = value
		palette[strings.ReplaceAll(keyLower, " ", "_")] = value
	}
	if value, ok := palette[lowered]; ok && value != "" {
		return value, true
	}
	if value, ok := palette[strings.ReplaceAll(lowered, " ", "_")]; ok && value != "" {
		return value, true
	}
	return "", false
}

// Clone returns a deep copy of the color configuration.
func (c ColorConfig) Clone() ColorConfig {
	return ColorConfig{
		Gradient:    cloneStringMap(c.Gradient),
		Statuses:    cloneStringMap(c.Statuses),
		Priorities:  cloneStringMap(c.Priorities),
		Tags:        cloneStringMap(c.Tags),
		TicketTitle: c.TicketTitle,
	}
}

// ClipboardSummaryConfig controls clipboard-friendly summary rendering.
type ClipboardSummaryConfig struct {
	HTMLSections []string
	TextSections []string
	UpdatesLimit int
	DebugStatus  bool
	InlineStyles bool
}

// SectionsForHTML returns the ordered sections for HTML summaries.
func (c ClipboardSummaryConfig) SectionsForHTML() []string {
	if len(c.HTMLSections) > 0 {
		return append([]string(nil), c.HTMLSections...)
	}
	return append([]string(nil), DefaultClipboardSections...)
}

// SectionsForText returns the ordered sections for plain-text summaries,
// falling back to the HTML sections when unset.
func (c ClipboardSummaryConfig) SectionsForText() []string {
	if len(c.TextSections) > 0 {
		return append([]string(nil), c.TextSections...)
	}
	if len(c.HTMLSections) > 0 {
		return append([]string(nil), c.HTMLSections...)
	}
	return append([]string(nil), DefaultClipboardSections...)
}

// MaxUpdates returns the non-negative number of timeline updates to include.
func (c ClipboardSummaryConfig) MaxUpdates() int {
	if c.UpdatesLimit < 0 {
		return 0
	}
	return c.UpdatesLimit
}

// AvailableSections returns the unique ordered set of known sections.
func (c ClipboardSummaryConfig) AvailableSections() []string {
	seen := make(map[string]bool)
	var ordered []string
	for _, value := range concatStrings(DefaultClipboardSections, c.HTMLSections, c.TextSections) {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" || seen[key] {
			continue
		}
		ordered = append(ordered, key)
		seen[key] = true
	}
	return ordered
}

// Clone returns a deep copy of the clipboard summary configuration.
func (c ClipboardSummaryConfig) Clone() ClipboardSummaryConfig {
	return ClipboardSummaryConfig{
		HTMLSections: append([]string(nil), c.HTMLSections...),
		TextSections: append([]string(nil), c.TextSections...),
		UpdatesLimit: c.UpdatesLimit,
		DebugStatus:  c.DebugStatus,
		InlineStyles: c.InlineStyles,
	}
}

// BehaviorConfig controls post-action navigation behavior.
type BehaviorConfig struct {
	AutoReturnToList bool
}

// AppConfig is the runtime configuration for the application. Exactly one
// AppConfig is authoritative at a time per process; settings updates build a
// new value and atomically replace it through the Store.
type AppConfig struct {
	SecretKey          string
	DatabaseURI        string
	UploadsDirectory   string
	Priorities         []string
	HoldReasons        []string
	Workflow           []string
	DefaultSubmittedBy string
	SLA                SLAConfig
	Colors             ColorConfig
	ClipboardSummary   ClipboardSummaryConfig
	Behavior           BehaviorConfig
	DemoMode           bool
	SourcePath         string
}

// Clone returns a deep copy suitable for copy-with-modifications updates.
func (c *AppConfig) Clone() *AppConfig {
	out := &AppConfig{
		SecretKey:          c.SecretKey,
		DatabaseURI:        c.DatabaseURI,
		UploadsDirectory:   c.UploadsDirectory,
		Priorities:         append([]string(nil), c.Priorities...),
		HoldReasons:        append([]string(nil), c.HoldReasons...),
		Workflow:           append([]string(nil), c.Workflow...),
		DefaultSubmittedBy: c.DefaultSubmittedBy,
		SLA:                c.SLA.Clone(),
		Colors:             c.Colors.Clone(),
		ClipboardSummary:   c.ClipboardSummary.Clone(),
		Behavior:           c.Behavior,
		DemoMode:           c.DemoMode,
		SourcePath:         c.SourcePath,
	}
	return out
}

// WithDemoMode returns a copy of the configuration with the demo flag set.
func (c *AppConfig) WithDemoMode(enabled bool) *AppConfig {
	out := c.Clone()
	out.DemoMode = enabled
	return out
}

func cloneStringMap(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}

func concatStrings(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		out = append(out, list...)
	}
	return out
}
