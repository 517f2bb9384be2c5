package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screentime/internal/activity"
	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/config"
	"github.com/goodtune/screentime/internal/limits"
	"github.com/goodtune/screentime/internal/notification"
	"github.com/goodtune/screentime/internal/report"
	"github.com/goodtune/screentime/internal/schedule"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/window"
	"github.com/rs/zerolog"
)

// retentionTime is when stale day records are pruned each night.
const retentionTime = "00:10"

// Job names
const (
	jobThresholds = "thresholds"
	jobBreak      = "break_reminder"
	jobDailyReset = "daily_reset"
	jobReport     = "daily_report"
	jobScreenshot = "screenshot"
	jobCheckpoint = "checkpoint"
	jobRetention  = "retention"
)

// daemon wires the accounting core to its scheduled jobs.
type daemon struct {
	cfg    *config.Config
	logger zerolog.Logger
	clock  clock.Clock
	store  storage.Store

	accountant    *activity.Accountant
	sink          *notification.Dispatcher
	monitor       *limits.Monitor
	screenshotter *report.Screenshotter
	scheduler     *schedule.Scheduler
}

// newDaemon builds the accountant, notification state machine and scheduler
// and registers every job. store may be nil.
func newDaemon(cfg *config.Config, store storage.Store, resolver window.Resolver, notifier notification.Notifier, backend string, clk clock.Clock, logger zerolog.Logger) (*daemon, error) {
	var days storage.DayStore
	if store != nil {
		days = store.Days()
	}

	accountant := activity.NewAccountant(activity.Config{
		IdleThreshold: time.Duration(cfg.Tracking.IdleMinutes) * time.Minute,
		TickInterval:  config.ParseDuration(cfg.Tracking.TickInterval, activity.DefaultTickInterval),
		MaxTickDelta:  config.ParseDuration(cfg.Tracking.MaxTickDelta, 0),
		StoreTimeout:  config.ParseDuration(cfg.Storage.Timeout, activity.DefaultStoreTimeout),
	}, resolver, days, clk, logger)

	sink := notification.NewDispatcher(notifier, backend, clk, logger)

	monitor := limits.NewMonitor(limits.Config{
		WarningMinutes:       cfg.Notifications.WarningMinutes,
		SoftLimitMinutes:     cfg.Notifications.SoftLimitMinutes,
		HardLimitMinutes:     cfg.Notifications.HardLimitMinutes,
		BreakIntervalMinutes: cfg.Notifications.BreakIntervalMinutes,
	}, accountant, sink, logger)

	d := &daemon{
		cfg:        cfg,
		logger:     logger,
		clock:      clk,
		store:      store,
		accountant: accountant,
		sink:       sink,
		monitor:    monitor,
		scheduler: schedule.NewScheduler(clk,
			config.ParseDuration(cfg.Scheduler.PollInterval, schedule.DefaultPollInterval), logger),
	}

	if cfg.Screenshot.Enabled {
		d.screenshotter = report.NewScreenshotter(cfg.Screenshot.Command,
			config.ParseDuration(cfg.Screenshot.Timeout, report.DefaultScreenshotTimeout), sink, logger)
	}

	if err := d.registerJobs(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *daemon) registerJobs() error {
	n := d.cfg.Notifications

	if err := d.scheduler.ScheduleEveryMinutes(jobThresholds, n.CheckIntervalMinutes, func() error {
		d.monitor.CheckThresholds()
		return nil
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", jobThresholds, err)
	}

	if n.BreakIntervalMinutes > 0 {
		if err := d.scheduler.ScheduleEveryMinutes(jobBreak, n.CheckIntervalMinutes, func() error {
			d.monitor.CheckBreak()
			return nil
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", jobBreak, err)
		}
	}

	if err := d.scheduler.ScheduleDaily(jobDailyReset, n.DailyResetTime, func() error {
		d.monitor.ResetDaily()
		return nil
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", jobDailyReset, err)
	}

	if d.cfg.Report.Enabled {
		if err := d.scheduler.ScheduleDaily(jobReport, d.cfg.Report.Time,
			report.DailyJob(d.accountant, d.sink, d.logger)); err != nil {
			return fmt.Errorf("schedule %s: %w", jobReport, err)
		}
	}

	if d.screenshotter != nil {
		if err := d.scheduler.ScheduleHourly(jobScreenshot, d.screenshotter.Job); err != nil {
			return fmt.Errorf("schedule %s: %w", jobScreenshot, err)
		}
	}

	if d.store != nil {
		if err := d.scheduler.ScheduleHourly(jobCheckpoint, func() error {
			return d.accountant.Checkpoint(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", jobCheckpoint, err)
		}

		if d.cfg.Storage.RetentionDays > 0 {
			if err := d.scheduler.ScheduleDaily(jobRetention, retentionTime, d.pruneDays); err != nil {
				return fmt.Errorf("schedule %s: %w", jobRetention, err)
			}
		}
	}

	return nil
}

func (d *daemon) pruneDays() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		config.ParseDuration(d.cfg.Storage.Timeout, activity.DefaultStoreTimeout))
	defer cancel()

	deleted, err := storage.PruneDays(ctx, d.store.Days(), d.clock.Now(), d.cfg.Storage.RetentionDays)
	if err != nil {
		return err
	}
	if deleted > 0 {
		d.logger.Info().
			Int("deleted", deleted).
			Int("retention_days", d.cfg.Storage.RetentionDays).
			Msg("Pruned old day records")
	}
	return nil
}

// resume restores today's stored counters and marks the notifications they
// already crossed as fired, so a restart does not repeat them.
func (d *daemon) resume(ctx context.Context) error {
	if err := d.accountant.Resume(ctx); err != nil {
		return err
	}
	d.monitor.Prime(d.accountant.Snapshot())
	return nil
}

// start launches the tick loop and the scheduler.
func (d *daemon) start(ctx context.Context) error {
	if err := d.accountant.Start(ctx); err != nil {
		return fmt.Errorf("start accountant: %w", err)
	}
	d.scheduler.Start(ctx)
	return nil
}

// stop halts both loops, waits for in-flight work and writes a final
// checkpoint.
func (d *daemon) stop() {
	d.scheduler.Stop()
	d.accountant.Stop()
	d.scheduler.Wait()
	d.accountant.Wait()

	if d.screenshotter != nil {
		d.screenshotter.Wait()
	}

	if d.store != nil {
		if err := d.accountant.Checkpoint(context.Background()); err != nil {
			d.logger.Error().Err(err).Msg("Failed to write final checkpoint")
		}
	}
}
