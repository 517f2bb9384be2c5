package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/notification"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/rs/zerolog"
)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingNotifier) Send(n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, n.Title)
	return nil
}

func (r *recordingNotifier) Titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

type staticResolver string

func (s staticResolver) ResolveActiveApp() string { return string(s) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "screentime.bolt")
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
	return cfg
}

func jobNames(d *daemon) []string {
	var names []string
	for _, job := range d.scheduler.Jobs() {
		names = append(names, job.Name)
	}
	return names
}

func TestNewDaemonRegistersJobs(t *testing.T) {
	clk := clock.NewTestClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local))

	t.Run("defaults with storage", func(t *testing.T) {
		cfg := testConfig(t)
		store, err := openStorage(cfg.Storage)
		if err != nil {
			t.Fatalf("open storage: %v", err)
		}
		defer func() { _ = store.Close() }()

		d, err := newDaemon(cfg, store, staticResolver("editor"), &recordingNotifier{}, "test", clk, zerolog.Nop())
		if err != nil {
			t.Fatalf("newDaemon(): %v", err)
		}

		want := []string{jobThresholds, jobBreak, jobDailyReset, jobReport, jobCheckpoint, jobRetention}
		if got := jobNames(d); !reflect.DeepEqual(got, want) {
			t.Fatalf("jobs = %v, want %v", got, want)
		}
	})

	t.Run("no storage, no breaks, screenshots", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Notifications.BreakIntervalMinutes = 0
		cfg.Report.Enabled = false
		cfg.Screenshot.Enabled = true
		cfg.Screenshot.Command = "true"

		d, err := newDaemon(cfg, nil, staticResolver("editor"), &recordingNotifier{}, "test", clk, zerolog.Nop())
		if err != nil {
			t.Fatalf("newDaemon(): %v", err)
		}

		want := []string{jobThresholds, jobDailyReset, jobScreenshot}
		if got := jobNames(d); !reflect.DeepEqual(got, want) {
			t.Fatalf("jobs = %v, want %v", got, want)
		}
	})

	t.Run("invalid reset time", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Notifications.DailyResetTime = "25:00"

		if _, err := newDaemon(cfg, nil, staticResolver("editor"), &recordingNotifier{}, "test", clk, zerolog.Nop()); err == nil {
			t.Fatal("expected error for invalid daily reset time")
		}
	})
}

func TestDaemonThresholdJobNotifies(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	clk := clock.NewTestClock(start)

	cfg := testConfig(t)
	cfg.Notifications.WarningMinutes = 1
	cfg.Notifications.SoftLimitMinutes = 2
	cfg.Notifications.HardLimitMinutes = 3
	cfg.Notifications.CheckIntervalMinutes = 1
	cfg.Notifications.BreakIntervalMinutes = 0
	cfg.Report.Enabled = false

	notifier := &recordingNotifier{}
	d, err := newDaemon(cfg, nil, staticResolver("editor"), notifier, "test", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("newDaemon(): %v", err)
	}

	// 150 seconds of activity in 5 second ticks
	for i := 0; i < 30; i++ {
		now := clk.Advance(5 * time.Second)
		d.accountant.RecordInput()
		d.accountant.Tick(now)
	}

	if ran := d.scheduler.RunPending(clk.Now()); ran != 1 {
		t.Fatalf("expected 1 job to run, got %d", ran)
	}

	want := []string{"Break reminder", "Soft limit reached"}
	if got := notifier.Titles(); !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
}

func TestDaemonResumeDoesNotRepeatNotifications(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)

	cfg := testConfig(t)
	cfg.Notifications.WarningMinutes = 1
	cfg.Notifications.SoftLimitMinutes = 2
	cfg.Notifications.HardLimitMinutes = 3
	cfg.Notifications.CheckIntervalMinutes = 1
	cfg.Notifications.BreakIntervalMinutes = 0
	cfg.Report.Enabled = false

	store, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	// First run accumulates 150 seconds, fires and checkpoints.
	clk := clock.NewTestClock(start)
	first := &recordingNotifier{}
	d, err := newDaemon(cfg, store, staticResolver("editor"), first, "test", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("newDaemon(): %v", err)
	}
	for i := 0; i < 30; i++ {
		now := clk.Advance(5 * time.Second)
		d.accountant.RecordInput()
		d.accountant.Tick(now)
	}
	d.scheduler.RunPending(clk.Now())
	if got := first.Titles(); len(got) != 2 {
		t.Fatalf("expected warning and soft limit before restart, got %v", got)
	}
	if err := d.accountant.Checkpoint(context.Background()); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	// Restarted process on the same store and day.
	restarted := clock.NewTestClock(clk.Now().Add(time.Minute))
	second := &recordingNotifier{}
	d2, err := newDaemon(cfg, store, staticResolver("editor"), second, "test", restarted, zerolog.Nop())
	if err != nil {
		t.Fatalf("newDaemon(): %v", err)
	}
	if err := d2.resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := d2.accountant.Snapshot().ActiveSeconds; got != 150 {
		t.Fatalf("expected 150 resumed seconds, got %v", got)
	}

	if ran := d2.scheduler.RunPending(restarted.Advance(2 * time.Minute)); ran != 1 {
		t.Fatalf("expected the threshold job to run, got %d jobs", ran)
	}
	if got := second.Titles(); len(got) != 0 {
		t.Fatalf("expected no repeated notifications after restart, got %v", got)
	}

	// The hard limit is still ahead and fires once reached.
	for i := 0; i < 6; i++ {
		now := restarted.Advance(5 * time.Second)
		d2.accountant.RecordInput()
		d2.accountant.Tick(now)
	}
	d2.scheduler.RunPending(restarted.Advance(time.Minute))
	if got := second.Titles(); !reflect.DeepEqual(got, []string{"Hard limit reached"}) {
		t.Fatalf("expected only the hard limit after restart, got %v", got)
	}
}

func TestDaemonStopWritesCheckpoint(t *testing.T) {
	clk := clock.NewTestClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local))

	cfg := testConfig(t)
	store, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	d, err := newDaemon(cfg, store, staticResolver("editor"), &recordingNotifier{}, "test", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("newDaemon(): %v", err)
	}

	if err := d.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	d.accountant.RecordInput()
	d.accountant.Tick(clk.Advance(3 * time.Second))

	d.stop()

	snap, err := loadSnapshot(context.Background(), store.Days(), "2024-01-01")
	if err != nil {
		t.Fatalf("loadSnapshot(): %v", err)
	}
	if snap.ActiveSeconds < 3 {
		t.Fatalf("expected at least 3 checkpointed seconds, got %v", snap.ActiveSeconds)
	}
	if snap.PerAppSeconds["editor"] < 3 {
		t.Fatalf("expected editor seconds in checkpoint, got %v", snap.PerAppSeconds)
	}
}

func TestDaemonPruneDays(t *testing.T) {
	clk := clock.NewTestClock(time.Date(2024, 3, 31, 0, 10, 0, 0, time.Local))

	cfg := testConfig(t)
	cfg.Storage.RetentionDays = 90
	store, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for _, day := range []string{"2023-12-31", "2024-01-01", "2024-03-30"} {
		if err := store.Days().WriteDayRecord(ctx, storage.DayRecord{Day: day, ActiveSeconds: 60}); err != nil {
			t.Fatalf("write %s: %v", day, err)
		}
	}

	d, err := newDaemon(cfg, store, staticResolver("editor"), &recordingNotifier{}, "test", clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("newDaemon(): %v", err)
	}
	if err := d.pruneDays(); err != nil {
		t.Fatalf("pruneDays(): %v", err)
	}

	records, err := store.Days().ListDayRecords(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Day != "2024-01-01" {
		t.Fatalf("unexpected records after prune: %+v", records)
	}
}

func TestOpenStorage(t *testing.T) {
	cfg := config.StorageConfig{Type: "memcached"}
	if _, err := openStorage(cfg); err == nil {
		t.Fatal("expected error for unsupported storage type")
	}

	cfg = config.StorageConfig{Path: filepath.Join(t.TempDir(), "nested", "db.bolt")}
	store, err := openStorage(cfg)
	if err != nil {
		t.Fatalf("open default storage: %v", err)
	}
	_ = store.Close()
}

func TestLoadSnapshotMissingDay(t *testing.T) {
	cfg := testConfig(t)
	store, err := openStorage(cfg.Storage)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer func() { _ = store.Close() }()

	snap, err := loadSnapshot(context.Background(), store.Days(), "2024-05-05")
	if err != nil {
		t.Fatalf("loadSnapshot(): %v", err)
	}
	if snap.ActiveSeconds != 0 || len(snap.PerAppSeconds) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if snap.DayKey() != "2024-05-05" {
		t.Fatalf("expected day 2024-05-05, got %s", snap.DayKey())
	}
}

func TestFindUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
tracking:
  idle_minutes: 3
  idel_threshold: 4
notifications:
  warning_minutes: 30
storage:
  redis:
    host: cache
    pool_size: 10
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	unknown, err := findUnknownKeys(path)
	if err != nil {
		t.Fatalf("findUnknownKeys(): %v", err)
	}

	want := []string{"storage.redis.pool_size", "tracking.idel_threshold"}
	if !reflect.DeepEqual(unknown, want) {
		t.Fatalf("unknown keys = %v, want %v", unknown, want)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0h 00m"},
		{59, "0h 00m"},
		{60, "0h 01m"},
		{3900, "1h 05m"},
		{7199, "1h 59m"},
		{36000, "10h 00m"},
	}

	for _, tt := range tests {
		if got := formatSeconds(tt.seconds); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestUsageColor(t *testing.T) {
	limits := config.NotificationConfig{WarningMinutes: 60, SoftLimitMinutes: 90, HardLimitMinutes: 120}

	tests := []struct {
		name    string
		minutes float64
		want    *color.Color
	}{
		{"under warning", 30, color.New(color.FgGreen)},
		{"warning", 60, color.New(color.FgYellow)},
		{"soft", 100, color.New(color.FgRed)},
		{"hard", 120, color.New(color.FgRed, color.Bold)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usageColor(tt.minutes, limits); !got.Equals(tt.want) {
				t.Fatalf("usageColor(%v) returned the wrong color", tt.minutes)
			}
		})
	}
}

func TestLastN(t *testing.T) {
	records := []storage.DayRecord{{Day: "2024-01-01"}, {Day: "2024-01-02"}, {Day: "2024-01-03"}}

	if got := lastN(records, 0); len(got) != 3 {
		t.Fatalf("lastN(0) returned %d records", len(got))
	}
	if got := lastN(records, 5); len(got) != 3 {
		t.Fatalf("lastN(5) returned %d records", len(got))
	}
	got := lastN(records, 2)
	if len(got) != 2 || got[0].Day != "2024-01-02" {
		t.Fatalf("lastN(2) = %+v", got)
	}
}
