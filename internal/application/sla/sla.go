// Package sla maps tickets to display colors and countdown text based on the
// configured service-level thresholds. All color decisions are driven by
// configuration; status overrides always win over time-based staging.
package sla

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tickettracker/internal/infrastructure/config"
	"tickettracker/internal/infrastructure/persistence/models"
)

const secondsPerDay = 86400.0

// Color resolves the display color for a ticket at the given instant.
func Color(ticket *models.Ticket, cfg *config.AppConfig, now time.Time) string {
	if statusColor, ok := cfg.Colors.StatusColor(ticket.Status); ok {
		return statusColor
	}

	overdueColor := cfg.Colors.GradientOverdueColor()

	if ticket.DueDate != nil {
		secondsRemaining := ticket.DueDate.Sub(now).Seconds()
		if secondsRemaining <= 0 {
			return overdueColor
		}
		daysRemaining := secondsRemaining / secondsPerDay
		thresholds := cfg.SLA.DueThresholds()
		if len(thresholds) == 0 {
			return cfg.Colors.GradientStageColor(0)
		}
		for index, threshold := range thresholds {
			if daysRemaining > float64(threshold) {
				return cfg.Colors.GradientStageColor(index)
			}
		}
		return cfg.Colors.GradientStageColor(len(thresholds) - 1)
	}

	ageDays := backlogAgeDays(ticket, now)
	thresholds := cfg.SLA.PriorityThresholds(ticket.Priority)
	if len(thresholds) == 0 {
		return cfg.Colors.GradientStageColor(0)
	}
	for index, threshold := range thresholds {
		if ageDays <= float64(threshold) {
			return cfg.Colors.GradientStageColor(index)
		}
	}
	return overdueColor
}

// backlogAgeDays returns the ticket's age in days measured from its age
// reference date (or creation date) at midnight, floored at zero.
func backlogAgeDays(ticket *models.Ticket, now time.Time) float64 {
	reference := now
	switch {
	case ticket.AgeReferenceDate != nil:
		reference = *ticket.AgeReferenceDate
	case !ticket.CreatedAt.IsZero():
		reference = ticket.CreatedAt
	}
	midnight := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, time.UTC)
	age := now.Sub(midnight).Seconds() / secondsPerDay
	if age < 0 {
		return 0
	}
	return age
}

// Countdown is the presentational SLA state for a ticket.
type Countdown struct {
	Text    string
	Overdue bool
}

// ComputeCountdown returns countdown text for a ticket, or nil when no SLA
// limit applies. Due-date tickets count toward their due date; backlog
// tickets count toward their priority's final backlog threshold.
func ComputeCountdown(ticket *models.Ticket, cfg *config.AppConfig, now time.Time) *Countdown {
	var remaining float64
	var overdue bool
	if ticket.DueDate != nil {
		remaining = ticket.DueDate.Sub(now).Seconds() / secondsPerDay
		overdue = remaining <= 0
	} else {
		value, ok := cfg.SLA.RemainingDays(ticket.Priority, backlogAgeDays(ticket, now))
		if !ok {
			return nil
		}
		remaining = value
		overdue = remaining < 0
	}

	text := fmt.Sprintf("SLA : T-%d Day(s)", int(math.Ceil(remaining)))
	if remaining < 0 {
		text = fmt.Sprintf("SLA : T+%d Day(s)", int(math.Ceil(math.Abs(remaining))))
	}
	return &Countdown{Text: text, Overdue: overdue}
}

// Tint returns a translucent variant of a color for row backgrounds. Hex
// colors become rgba values; anything else goes through CSS color-mix.
func Tint(color string, intensity float64) string {
	if color == "" {
		return fmt.Sprintf("rgba(56, 189, 248, %.2f)", intensity)
	}

	color = strings.TrimSpace(color)
	if strings.HasPrefix(color, "#") {
		hexValue := strings.TrimPrefix(color, "#")
		if len(hexValue) == 3 {
			var expanded strings.Builder
			for _, r := range hexValue {
				expanded.WriteRune(r)
				expanded.WriteRune(r)
			}
			hexValue = expanded.String()
		}
		if len(hexValue) == 6 {
			red, errR := strconv.ParseUint(hexValue[0:2], 16, 8)
			green, errG := strconv.ParseUint(hexValue[2:4], 16, 8)
			blue, errB := strconv.ParseUint(hexValue[4:6], 16, 8)
			if errR == nil && errG == nil && errB == nil {
				return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", red, green, blue, intensity)
			}
		}
	}

	percent := int(math.Round(intensity * 100))
	return fmt.Sprintf("color-mix(in srgb, %s %d%%, transparent)", color, percent)
}

// DefaultTint returns the standard 25% tint used for ticket rows.
func DefaultTint(color string) string {
	return Tint(color, 0.25)
}
