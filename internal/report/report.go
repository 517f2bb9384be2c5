// Package report renders daily activity reports and runs the external
// report and screenshot jobs.
package report

import (
	"fmt"
	"strings"

	"github.com/goodtune/screentime/internal/activity"
	"github.com/rs/zerolog"
)

// SnapshotSource provides the current day's activity.
type SnapshotSource interface {
	Snapshot() activity.ActivitySnapshot
}

// Sink delivers notifications without reporting failures.
type Sink interface {
	Notify(title, body string)
}

// Title returns the report heading for a snapshot.
func Title(s activity.ActivitySnapshot) string {
	return fmt.Sprintf("Screen time report %s", s.DayKey())
}

// Format renders the total and per-application breakdown, largest first.
func Format(s activity.ActivitySnapshot) string {
	var b strings.Builder

	hours, minutes := hoursMinutes(s.ActiveSeconds)
	fmt.Fprintf(&b, "Today (%s) active time: %d hours %d minutes.\n", s.DayKey(), hours, minutes)
	b.WriteString("\nPer application:\n")

	apps := s.Apps()
	if len(apps) == 0 {
		b.WriteString("- No data")
		return b.String()
	}
	for i, app := range apps {
		h, m := hoursMinutes(app.Seconds)
		fmt.Fprintf(&b, "- %s: %dh %dm", app.App, h, m)
		if i < len(apps)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func hoursMinutes(seconds float64) (int, int) {
	total := int(seconds / 60)
	return total / 60, total % 60
}

// DailyJob returns a scheduler action that delivers today's report through
// sink and the log.
func DailyJob(source SnapshotSource, sink Sink, logger zerolog.Logger) func() error {
	logger = logger.With().Str("component", "report").Logger()

	return func() error {
		snap := source.Snapshot()
		body := Format(snap)

		logger.Info().
			Str("day", snap.DayKey()).
			Float64("active_minutes", snap.Minutes()).
			Int("apps", len(snap.PerAppSeconds)).
			Msg("Daily report")

		sink.Notify(Title(snap), body)
		return nil
	}
}
