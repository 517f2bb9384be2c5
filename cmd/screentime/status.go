package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/screentime/internal/activity"
	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/notification"
	"github.com/goodtune/screentime/internal/report"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/spf13/cobra"
)

var (
	statusDay    string
	statusReport bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored screen time for a day",
	Long: `Show the stored active time and per-application breakdown for today or
the day given with --day. The running daemon checkpoints hourly, so today's
figure may lag by up to an hour.`,
	Example: `  screentime status
  screentime status --day 2024-01-01
  screentime status --report`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusDay, "day", "", "Day to show (YYYY-MM-DD) - defaults to today")
	statusCmd.Flags().BoolVar(&statusReport, "report", false, "Also send the report through the configured notification backend")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	day := statusDay
	if day == "" {
		day = storage.DayKey(time.Now())
	}
	if _, err := storage.ParseDay(day); err != nil {
		return err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), config.ParseDuration(cfg.Storage.Timeout, activity.DefaultStoreTimeout))
	defer cancel()

	snap, err := loadSnapshot(ctx, store.Days(), day)
	if err != nil {
		return err
	}

	printStatus(snap, cfg.Notifications)

	if statusReport {
		logger := setupLogger(cfg.Logging)
		notifier, backend, err := notification.New(cfg.Notifications.Backend, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize notifications: %w", err)
		}
		notification.NewDispatcher(notifier, backend, clock.RealClock{}, logger).
			Notify(report.Title(snap), report.Format(snap))
	}

	return nil
}

// loadSnapshot reads a stored day. A day with no record is an empty snapshot.
func loadSnapshot(ctx context.Context, days storage.DayStore, day string) (activity.ActivitySnapshot, error) {
	record, err := days.GetDayRecord(ctx, day)
	if errors.Is(err, storage.ErrNotFound) {
		return activity.SnapshotFromRecord(storage.DayRecord{Day: day})
	}
	if err != nil {
		return activity.ActivitySnapshot{}, fmt.Errorf("failed to read day %s: %w", day, err)
	}
	return activity.SnapshotFromRecord(*record)
}

func printStatus(snap activity.ActivitySnapshot, limits config.NotificationConfig) {
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Fprintf(os.Stdout, "Screen time for %s\n", snap.DayKey())
	_, _ = usageColor(snap.Minutes(), limits).Fprintf(os.Stdout, "  Active: %s\n", formatSeconds(snap.ActiveSeconds))
	_, _ = fmt.Fprintf(os.Stdout, "  Limits: warning %dm, soft %dm, hard %dm\n",
		limits.WarningMinutes, limits.SoftLimitMinutes, limits.HardLimitMinutes)
	_, _ = fmt.Fprintln(os.Stdout)
	_, _ = fmt.Fprintln(os.Stdout, report.Format(snap))
}
