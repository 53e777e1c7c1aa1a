package config

// DefaultConfigName is the configuration filename looked up when no explicit
// path is provided.
const DefaultConfigName = "config.json"

const (
	DefaultSecretKey   = "dev-secret-key-change-me"
	DefaultSubmittedBy = "Support Team"
	DefaultDatabaseURI = "sqlite:///tickettracker.db"
	DefaultUploadsDir  = "uploads"
)

// GradientStageOrder lists the gradient stage keys from calmest to hottest.
var GradientStageOrder = []string{"stage0", "stage1", "stage2", "stage3"}

// GradientOverdueKey is the gradient key used once a ticket is past due.
const GradientOverdueKey = "overdue"

// DefaultGradientColors maps gradient keys to their default hex colors.
var DefaultGradientColors = map[string]string{
	"stage0":          "#bae6fd",
	"stage1":          "#fde047",
	"stage2":          "#fb923c",
	"stage3":          "#ef4444",
	GradientOverdueKey: "#7f1d1d",
}

const DefaultTicketTitleColor = "#f8fafc"

var DefaultDueStageDays = []int{28, 21, 14, 7}

var DefaultPriorityStageDays = map[string][]int{
	"Low":      {14, 21, 28, 35},
	"Medium":   {10, 15, 20, 25},
	"High":     {5, 7, 10, 14},
	"Critical": {2, 3, 5, 7},
}

var DefaultPriorityStageDaysFallback = []int{7, 14, 21, 28}

const DefaultBacklogDueDays = 21

var DefaultClipboardSections = []string{
	"header",
	"timestamps",
	"meta",
	"people",
	"description",
	"links",
	"notes",
	"tags",
	"updates",
}

const DefaultClipboardUpdatesLimit = 1

var DefaultPriorities = []string{"Low", "Medium", "High", "Critical"}

var DefaultHoldReasons = []string{
	"Awaiting customer response",
	"Blocked by dependency",
	"Pending scheduled work",
	"Researching solution",
}

var DefaultWorkflow = []string{"Open", "In Progress", "On Hold", "Resolved", "Closed", "Cancelled"}

var DefaultStatusColors = map[string]string{
	"on_hold":   "#9c88ff",
	"resolved":  "#2ed573",
	"closed":    "#57606f",
	"cancelled": "#747d8c",
}

var DefaultPriorityColors = map[string]string{
	"Low":      "#3b82f6",
	"Medium":   "#facc15",
	"High":     "#f97316",
	"Critical": "#ef4444",
}

var DefaultTagColors = map[string]string{
	"background": "#2f3542",
	"text":       "#f1f2f6",
}
