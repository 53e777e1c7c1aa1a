// Package config loads, validates, and persists the application
// configuration. Operator-tunable settings (workflow vocabulary, SLA
// thresholds, color palette, clipboard sections) live in a JSON file that is
// merged over built-in defaults on load and rewritten in full on save.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

const (
	// EnvConfigPath overrides the configuration file lookup.
	EnvConfigPath = "TICKETTRACKER_CONFIG"
	// EnvSecretKey overrides the configured secret key.
	EnvSecretKey = "TICKETTRACKER_SECRET_KEY"
)

// Load reads the configuration file, merging it over built-in defaults.
// Resolution order: explicit path, then the EnvConfigPath environment
// variable, then ./config.json. A missing file yields pure defaults with the
// first candidate path recorded as SourcePath so a later save knows where to
// write.
func Load(configPath string) (*AppConfig, error) {
	candidates := make([]string, 0, 3)
	if configPath != "" {
		candidates = append(candidates, configPath)
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		candidates = append(candidates, envPath)
	}
	if len(candidates) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve working directory: %w", err)
		}
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigName))
	}

	var configFile string
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			break
		}
	}

	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	sourcePath := candidates[0]
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		sourcePath = configFile
	}
	if abs, err := filepath.Abs(sourcePath); err == nil {
		sourcePath = abs
	}
	basePath := filepath.Dir(sourcePath)

	priorities := coerceStringValues(v.Get("priorities"))
	if len(priorities) == 0 {
		priorities = append([]string(nil), DefaultPriorities...)
	}

	secretKey := os.Getenv(EnvSecretKey)
	if secretKey == "" {
		secretKey = strings.TrimSpace(v.GetString("secret_key"))
	}
	if secretKey == "" {
		secretKey = DefaultSecretKey
	}

	defaultSubmittedBy := strings.TrimSpace(v.GetString("default_submitted_by"))
	if defaultSubmittedBy == "" {
		defaultSubmittedBy = DefaultSubmittedBy
	}

	cfg := &AppConfig{
		SecretKey:          secretKey,
		DatabaseURI:        resolveDatabaseURI(v.GetString("database.uri"), basePath),
		UploadsDirectory:   resolveUploadsDirectory(v.GetString("uploads.directory"), basePath),
		Priorities:         priorities,
		HoldReasons:        coerceStringValues(v.Get("hold_reasons")),
		Workflow:           coerceStringValues(v.Get("workflow")),
		DefaultSubmittedBy: defaultSubmittedBy,
		SLA:                loadSLA(v, priorities),
		Colors:             loadColors(v, priorities),
		ClipboardSummary:   loadClipboardSummary(v),
		Behavior: BehaviorConfig{
			AutoReturnToList: coerceBool(v.Get("behavior.auto_return_to_list"), false),
		},
		DemoMode:   coerceBool(v.Get("demo_mode"), false),
		SourcePath: sourcePath,
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("secret_key", DefaultSecretKey)
	v.SetDefault("database.uri", DefaultDatabaseURI)
	v.SetDefault("uploads.directory", DefaultUploadsDir)
	v.SetDefault("default_submitted_by", DefaultSubmittedBy)
	v.SetDefault("priorities", DefaultPriorities)
	v.SetDefault("hold_reasons", DefaultHoldReasons)
	v.SetDefault("workflow", DefaultWorkflow)

	// sla.priority_stage_days has no viper default: configured values must be
	// distinguishable from built-ins so legacy priority_open_days can take
	// precedence over the defaults. Missing priorities are filled in loadSLA.
	v.SetDefault("sla.due_stage_days", DefaultDueStageDays)
	v.SetDefault("sla.default_due_days", DefaultBacklogDueDays)

	v.SetDefault("colors.ticket_title", DefaultTicketTitleColor)
	for key, value := range DefaultGradientColors {
		v.SetDefault("colors.gradient."+key, value)
	}
	for key, value := range DefaultStatusColors {
		v.SetDefault("colors.statuses."+key, value)
	}
	for key, value := range DefaultPriorityColors {
		v.SetDefault("colors.priorities."+key, value)
	}
	for key, value := range DefaultTagColors {
		v.SetDefault("colors.tags."+key, value)
	}

	v.SetDefault("clipboard_summary.html_sections", DefaultClipboardSections)
	v.SetDefault("clipboard_summary.text_sections", DefaultClipboardSections)
	v.SetDefault("clipboard_summary.updates_limit", DefaultClipboardUpdatesLimit)
	v.SetDefault("clipboard_summary.debug_status", false)
	v.SetDefault("clipboard_summary.inline_styles", false)

	v.SetDefault("behavior.auto_return_to_list", false)
	v.SetDefault("demo_mode", false)
}

func loadSLA(v *viper.Viper, priorities []string) SLAConfig {
	var dueStageDays []int
	for _, raw := range coerceAnySlice(v.Get("sla.due_stage_days")) {
		if value, ok := coerceNonNegativeInt(raw); ok {
			dueStageDays = append(dueStageDays, value)
		}
	}

	priorityStageDays := make(map[string][]int)
	if raw, ok := v.Get("sla.priority_stage_days").(map[string]any); ok {
		for key, values := range raw {
			var sanitized []int
			for _, value := range coerceAnySlice(values) {
				if number, ok := coerceNonNegativeInt(value); ok {
					sanitized = append(sanitized, number)
				}
			}
			if len(sanitized) > 0 {
				priorityStageDays[key] = sanitized
			}
		}
	}

	// Legacy shape: a single open-days limit per priority, expanded into four
	// ascending thresholds at quartile boundaries.
	if raw, ok := v.Get("sla.priority_open_days").(map[string]any); ok {
		for key, value := range raw {
			limit, ok := coerceNonNegativeInt(value)
			if !ok {
				continue
			}
			if _, exists := priorityStageDays[key]; exists {
				continue
			}
			if thresholds := legacyStageThresholds(limit); len(thresholds) > 0 {
				priorityStageDays[key] = thresholds
			}
		}
	}

	priorityStageDays = canonicalizeKeys(priorityStageDays, priorities)
	for priority, values := range DefaultPriorityStageDays {
		if _, exists := priorityStageDays[priority]; !exists {
			priorityStageDays[priority] = append([]int(nil), values...)
		}
	}

	var defaultDueDays *int
	if value, ok := coerceNonNegativeInt(v.Get("sla.default_due_days")); ok {
		defaultDueDays = &value
	}

	return SLAConfig{
		DueStageDays:      dueStageDays,
		PriorityStageDays: priorityStageDays,
		DefaultDueDays:    defaultDueDays,
	}
}

func loadColors(v *viper.Viper, priorities []string) ColorConfig {
	ticketTitle := strings.TrimSpace(v.GetString("colors.ticket_title"))
	if ticketTitle == "" {
		ticketTitle = DefaultTicketTitleColor
	}
	return ColorConfig{
		Gradient:    coerceStringMap(v.Get("colors.gradient")),
		Statuses:    coerceStringMap(v.Get("colors.statuses")),
		Priorities:  canonicalizeKeys(coerceStringMap(v.Get("colors.priorities")), priorities),
		Tags:        coerceStringMap(v.Get("colors.tags")),
		TicketTitle: ticketTitle,
	}
}

func loadClipboardSummary(v *viper.Viper) ClipboardSummaryConfig {
	htmlSections := coerceSectionList(v.Get("clipboard_summary.html_sections"))
	textSections := coerceSectionList(v.Get("clipboard_summary.text_sections"))
	if len(htmlSections) == 0 {
		htmlSections = append([]string(nil), DefaultClipboardSections...)
	}
	if len(textSections) == 0 {
		textSections = append([]string(nil), htmlSections...)
	}
	updatesLimit, ok := coerceNonNegativeInt(v.Get("clipboard_summary.updates_limit"))
	if !ok {
		updatesLimit = DefaultClipboardUpdatesLimit
	}
	return ClipboardSummaryConfig{
		HTMLSections: htmlSections,
		TextSections: textSections,
		UpdatesLimit: updatesLimit,
		DebugStatus:  coerceBool(v.Get("clipboard_summary.debug_status"), false),
		InlineStyles: coerceBool(v.Get("clipboard_summary.inline_styles"), false),
	}
}

// jsonFile is the on-disk configuration shape.
type jsonFile struct {
	SecretKey          string            `json:"secret_key"`
	Database           jsonDatabase      `json:"database"`
	Uploads            jsonUploads       `json:"uploads"`
	DefaultSubmittedBy string            `json:"default_submitted_by"`
	Priorities         []string          `json:"priorities"`
	HoldReasons        []string          `json:"hold_reasons"`
	Workflow           []string          `json:"workflow"`
	SLA                jsonSLA           `json:"sla"`
	Colors             jsonColors        `json:"colors"`
	ClipboardSummary   jsonClipboard     `json:"clipboard_summary"`
	Behavior           jsonBehavior      `json:"behavior"`
	DemoMode           bool              `json:"demo_mode"`
}

type jsonDatabase struct {
	URI string `json:"uri"`
}

type jsonUploads struct {
	Directory string `json:"directory"`
}

type jsonSLA struct {
	DueStageDays      []int            `json:"due_stage_days"`
	PriorityStageDays map[string][]int `json:"priority_stage_days"`
	DefaultDueDays    *int             `json:"default_due_days"`
}

type jsonColors struct {
	TicketTitle string            `json:"ticket_title"`
	Gradient    map[string]string `json:"gradient"`
	Statuses    map[string]string `json:"statuses"`
	Priorities  map[string]string `json:"priorities"`
	Tags        map[string]string `json:"tags"`
}

type jsonClipboard struct {
	HTMLSections []string `json:"html_sections"`
	TextSections []string `json:"text_sections"`
	UpdatesLimit int      `json:"updates_limit"`
	DebugStatus  bool     `json:"debug_status"`
	InlineStyles bool     `json:"inline_styles"`
}

type jsonBehavior struct {
	AutoReturnToList bool `json:"auto_return_to_list"`
}

// Save persists the configuration to disk with two-space indentation and
// returns the resolved path. An empty path falls back to cfg.SourcePath.
func Save(cfg *AppConfig, path string) (string, error) {
	target := path
	if target == "" {
		target = cfg.SourcePath
	}
	if target == "" {
		return "", fmt.Errorf("configuration path is unknown; provide a destination when saving")
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	payload := jsonFile{
		SecretKey:          cfg.SecretKey,
		Database:           jsonDatabase{URI: cfg.DatabaseURI},
		Uploads:            jsonUploads{Directory: cfg.UploadsDirectory},
		DefaultSubmittedBy: cfg.DefaultSubmittedBy,
		Priorities:         append([]string{}, cfg.Priorities...),
		HoldReasons:        append([]string{}, cfg.HoldReasons...),
		Workflow:           append([]string{}, cfg.Workflow...),
		SLA: jsonSLA{
			DueStageDays:      append([]int{}, cfg.SLA.DueStageDays...),
			PriorityStageDays: cfg.SLA.Clone().PriorityStageDays,
			DefaultDueDays:    cfg.SLA.Clone().DefaultDueDays,
		},
		Colors: jsonColors{
			TicketTitle: cfg.Colors.TicketTitle,
			Gradient:    cloneStringMap(cfg.Colors.Gradient),
			Statuses:    cloneStringMap(cfg.Colors.Statuses),
			Priorities:  cloneStringMap(cfg.Colors.Priorities),
			Tags:        cloneStringMap(cfg.Colors.Tags),
		},
		ClipboardSummary: jsonClipboard{
			HTMLSections: cfg.ClipboardSummary.SectionsForHTML(),
			TextSections: cfg.ClipboardSummary.SectionsForText(),
			UpdatesLimit: cfg.ClipboardSummary.UpdatesLimit,
			DebugStatus:  cfg.ClipboardSummary.DebugStatus,
			InlineStyles: cfg.ClipboardSummary.InlineStyles,
		},
		Behavior: jsonBehavior{AutoReturnToList: cfg.Behavior.AutoReturnToList},
		DemoMode: cfg.DemoMode,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize config: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return target, nil
}

// resolveDatabaseURI makes relative sqlite paths absolute against the config
// file's directory.
func resolveDatabaseURI(rawURI string, basePath string) string {
	if rawURI == "" {
		rawURI = DefaultDatabaseURI
	}
	if strings.HasPrefix(rawURI, "sqlite:///") && !strings.HasPrefix(rawURI, "sqlite:////") {
		relative := strings.TrimPrefix(rawURI, "sqlite:///")
		if relative == ":memory:" {
			return rawURI
		}
		if !filepath.IsAbs(relative) {
			return "sqlite:///" + filepath.Join(basePath, relative)
		}
		return "sqlite:///" + relative
	}
	return rawURI
}

func resolveUploadsDirectory(rawDirectory string, basePath string) string {
	if rawDirectory == "" {
		rawDirectory = DefaultUploadsDir
	}
	if !filepath.IsAbs(rawDirectory) {
		return filepath.Join(basePath, rawDirectory)
	}
	return rawDirectory
}

// SQLitePath extracts the on-disk database path from a sqlite URI. It returns
// an error for non-sqlite and in-memory URIs, which cannot be snapshotted by
// file copy.
func SQLitePath(uri string) (string, error) {
	if strings.HasSuffix(uri, "/:memory:") || strings.TrimPrefix(uri, "sqlite:///") == ":memory:" {
		return "", fmt.Errorf("in-memory SQLite databases are not supported")
	}
	if !strings.HasPrefix(uri, "sqlite:///") {
		return "", fmt.Errorf("only SQLite database URIs are supported")
	}
	raw := strings.TrimPrefix(uri, "sqlite:///")
	if abs, err := filepath.Abs(raw); err == nil {
		return abs, nil
	}
	return raw, nil
}

// NormalizeHexColor validates and canonicalizes a hex color to the lowercase
// #rrggbb form. Three-digit shorthand is expanded; anything else is rejected.
func NormalizeHexColor(value string) (string, bool) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	hexPart := trimmed[1:]
	if len(hexPart) == 3 {
		var expanded strings.Builder
		for _, r := range hexPart {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		hexPart = expanded.String()
	}
	if len(hexPart) != 6 {
		return "", false
	}
	for _, r := range hexPart {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", false
		}
	}
	return "#" + hexPart, true
}

// toStageThresholds normalizes raw stage values into ascending thresholds.
// Strictly increasing input is taken as-is; anything else is treated as
// per-stage durations and converted to cumulative sums.
func toStageThresholds(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	increasing := true
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			increasing = false
			break
		}
	}
	if increasing {
		return append([]int(nil), values...)
	}
	thresholds := make([]int, 0, len(values))
	runningTotal := 0
	for _, value := range values {
		runningTotal += value
		thresholds = append(thresholds, runningTotal)
	}
	return thresholds
}

// legacyStageThresholds expands a single open-days limit into four ascending
// thresholds via quartile scaling, each floored at the previous.
func legacyStageThresholds(limit int) []int {
	if limit <= 0 {
		return nil
	}
	quarter := maxInt(1, int(math.Ceil(float64(limit)/4)))
	half := maxInt(quarter, int(math.Ceil(float64(limit)/2)))
	threeQuarter := maxInt(half, int(math.Ceil(float64(limit)*3/4)))
	final := maxInt(threeQuarter, limit)
	return []int{quarter, half, threeQuarter, final}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// canonicalizeKeys restores the configured priority casing on map keys, which
// viper lowercases during parsing. Keys with no matching priority keep their
// original form.
func canonicalizeKeys[V any](src map[string]V, priorities []string) map[string]V {
	byLower := make(map[string]string, len(priorities))
	for _, priority := range priorities {
		byLower[strings.ToLower(priority)] = priority
	}
	for _, priority := range sortedKeys(DefaultPriorityStageDays) {
		lower := strings.ToLower(priority)
		if _, exists := byLower[lower]; !exists {
			byLower[lower] = priority
		}
	}
	out := make(map[string]V, len(src))
	for key, value := range src {
		if canonical, ok := byLower[strings.ToLower(key)]; ok {
			out[canonical] = value
		} else {
			out[key] = value
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func coerceAnySlice(raw any) []any {
	switch value := raw.(type) {
	case nil:
		return nil
	case []any:
		return value
	case []int:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out
	case []string:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out
	default:
		return []any{value}
	}
}

func coerceNonNegativeInt(raw any) (int, bool) {
	var number int
	switch value := raw.(type) {
	case int:
		number = value
	case int32:
		number = int(value)
	case int64:
		number = int(value)
	case float64:
		number = int(value)
	case float32:
		number = int(value)
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		number = int(parsed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, false
		}
		number = parsed
	default:
		return 0, false
	}
	if number < 0 {
		return 0, false
	}
	return number, true
}

func coerceBool(raw any, fallback bool) bool {
	switch value := raw.(type) {
	case bool:
		return value
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		return fallback
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case nil:
		return fallback
	default:
		return fallback
	}
}

// coerceStringValues returns trimmed non-empty strings preserving order.
func coerceStringValues(raw any) []string {
	var out []string
	for _, value := range coerceAnySlice(raw) {
		text := strings.TrimSpace(fmt.Sprintf("%v", value))
		if text == "" || value == nil {
			continue
		}
		out = append(out, text)
	}
	return out
}

// coerceSectionList returns lowercased deduplicated section names.
func coerceSectionList(raw any) []string {
	var out []string
	seen := make(map[string]bool)
	for _, value := range coerceAnySlice(raw) {
		if value == nil {
			continue
		}
		text := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", value)))
		if text == "" || seen[text] {
			continue
		}
		out = append(out, text)
		seen[text] = true
	}
	return out
}

func coerceStringMap(raw any) map[string]string {
	out := make(map[string]string)
	if m, ok := raw.(map[string]any); ok {
		for key, value := range m {
			if value == nil {
				continue
			}
			text := strings.TrimSpace(fmt.Sprintf("%v", value))
			if text == "" {
				continue
			}
			out[key] = text
		}
	}
	return out
}
