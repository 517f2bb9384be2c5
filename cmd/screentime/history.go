package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/screentime/internal/activity"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored daily totals",
	Long:  `List the stored day records, most recent last, with the top application of each day.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 14, "Number of most recent days to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), config.ParseDuration(cfg.Storage.Timeout, activity.DefaultStoreTimeout))
	defer cancel()

	records, err := store.Days().ListDayRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to list day records: %w", err)
	}

	records = lastN(records, historyLimit)
	if len(records) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No day records stored.")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintf(os.Stdout, "%-10s  %8s  %s\n", "DAY", "ACTIVE", "TOP APPLICATION")

	for _, record := range records {
		snap, err := activity.SnapshotFromRecord(record)
		if err != nil {
			continue
		}
		top := "-"
		if apps := snap.Apps(); len(apps) > 0 {
			top = fmt.Sprintf("%s (%s)", apps[0].App, formatSeconds(apps[0].Seconds))
		}
		_, _ = usageColor(snap.Minutes(), cfg.Notifications).
			Fprintf(os.Stdout, "%-10s  %8s  %s\n", snap.DayKey(), formatSeconds(snap.ActiveSeconds), top)
	}

	return nil
}

// lastN returns the final n records, or all of them when n <= 0.
func lastN(records []storage.DayRecord, n int) []storage.DayRecord {
	if n <= 0 || len(records) <= n {
		return records
	}
	return records[len(records)-n:]
}
