package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/screentime/internal/config"
)

// formatSeconds renders seconds as "1h 05m".
func formatSeconds(seconds float64) string {
	total := int(seconds / 60)
	return fmt.Sprintf("%dh %02dm", total/60, total%60)
}

// usageColor picks the output color for a day's active minutes.
func usageColor(minutes float64, limits config.NotificationConfig) *color.Color {
	switch {
	case limits.HardLimitMinutes > 0 && minutes >= float64(limits.HardLimitMinutes):
		return color.New(color.FgRed, color.Bold)
	case limits.SoftLimitMinutes > 0 && minutes >= float64(limits.SoftLimitMinutes):
		return color.New(color.FgRed)
	case limits.WarningMinutes > 0 && minutes >= float64(limits.WarningMinutes):
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
