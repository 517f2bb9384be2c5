// Package activity accounts active computer time per day and per application.
package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/input"
	"github.com/goodtune/screentime/internal/metrics"
	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/window"
	"github.com/rs/zerolog"
)

const (
	// DefaultTickInterval is the accounting tick period
	DefaultTickInterval = time.Second

	// DefaultStoreTimeout bounds a single day record write
	DefaultStoreTimeout = 2 * time.Second

	// maxDeltaTicks caps one tick's credit at this many tick intervals
	maxDeltaTicks = 5
)

// ErrAlreadyRunning is returned by Start on a running accountant.
var ErrAlreadyRunning = errors.New("accountant already running")

// Config holds accountant configuration
type Config struct {
	IdleThreshold time.Duration
	TickInterval  time.Duration
	MaxTickDelta  time.Duration
	StoreTimeout  time.Duration
}

// Accountant measures active time. Tick is the only mutator of the day
// counters; RecordInput only touches the last activity timestamp.
type Accountant struct {
	idleThreshold time.Duration
	tickInterval  time.Duration
	maxTickDelta  time.Duration
	storeTimeout  time.Duration

	resolver window.Resolver
	store    storage.DayStore
	clock    clock.Clock
	logger   zerolog.Logger
	sources  []input.Source

	lastActivity atomic.Int64 // unix nanoseconds

	mu            sync.Mutex
	lastTick      time.Time
	activeSeconds float64
	perApp        map[string]float64
	currentDay    time.Time

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAccountant creates an accountant for the current day. store may be nil,
// in which case nothing is persisted.
func NewAccountant(cfg Config, resolver window.Resolver, store storage.DayStore, clk clock.Clock, logger zerolog.Logger) *Accountant {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MaxTickDelta <= 0 {
		cfg.MaxTickDelta = maxDeltaTicks * cfg.TickInterval
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.IdleThreshold < 0 {
		cfg.IdleThreshold = 0
	}

	now := clk.Now()
	a := &Accountant{
		idleThreshold: cfg.IdleThreshold,
		tickInterval:  cfg.TickInterval,
		maxTickDelta:  cfg.MaxTickDelta,
		storeTimeout:  cfg.StoreTimeout,
		resolver:      resolver,
		store:         store,
		clock:         clk,
		logger:        logger.With().Str("component", "accountant").Logger(),
		lastTick:      now,
		perApp:        make(map[string]float64),
		currentDay:    startOfDay(now),
	}
	a.lastActivity.Store(now.UnixNano())

	return a
}

// AddSource registers an input source started by Start.
func (a *Accountant) AddSource(src input.Source) {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	a.sources = append(a.sources, src)
}

// RecordInput marks the current instant as the last user activity. It is
// safe to call from any goroutine.
func (a *Accountant) RecordInput() {
	a.lastActivity.Store(a.clock.Now().UnixNano())
}

// LastActivity returns the time of the most recent input.
func (a *Accountant) LastActivity() time.Time {
	return time.Unix(0, a.lastActivity.Load())
}

// Tick accounts the time elapsed since the previous tick. Time is credited
// only when the last input is no older than the idle threshold.
func (a *Accountant) Tick(now time.Time) {
	idle := now.Sub(a.LastActivity()) > a.idleThreshold

	// Resolve outside the lock; the resolver may shell out.
	app := ""
	if !idle {
		app = a.resolveApp()
	}

	var rollover *storage.DayRecord

	a.mu.Lock()
	before := a.activeSeconds
	delta := now.Sub(a.lastTick)
	if delta < 0 {
		delta = 0
	}
	if delta > a.maxTickDelta {
		delta = a.maxTickDelta
	}

	// A clock stepped back into an earlier date is skew, not a new day:
	// the current day stays and the clamped delta is credited to it.
	today := startOfDay(now)
	if today.After(a.currentDay) && storage.DayKey(today) != storage.DayKey(a.currentDay) {
		// The part of this tick before midnight belongs to the old day.
		if !idle {
			head := today.Sub(now.Add(-delta))
			if head > delta {
				head = delta
			}
			if head > 0 {
				a.credit(app, head)
				delta -= head
			}
		}

		record := a.snapshotLocked().Record(now)
		rollover = &record
		before -= a.activeSeconds

		a.activeSeconds = 0
		a.perApp = make(map[string]float64)
		a.currentDay = today
	}

	if !idle {
		a.credit(app, delta)
	}
	a.lastTick = now
	active := a.activeSeconds
	credited := active - before
	a.mu.Unlock()

	if idle {
		metrics.TicksTotal.WithLabelValues("idle").Inc()
	} else {
		metrics.TicksTotal.WithLabelValues("active").Inc()
		metrics.ActiveSecondsTotal.Add(credited)
	}
	metrics.ActiveSecondsToday.Set(active)

	if rollover != nil {
		metrics.RolloversTotal.Inc()
		a.logger.Info().
			Str("day", rollover.Day).
			Float64("active_seconds", rollover.ActiveSeconds).
			Int("apps", len(rollover.PerApp)).
			Msg("Day rollover")

		ctx, cancel := context.WithTimeout(context.Background(), a.storeTimeout)
		_ = a.persist(ctx, *rollover, "rollover")
		cancel()
	}
}

// credit adds d to the day and to app. Callers hold a.mu.
func (a *Accountant) credit(app string, d time.Duration) {
	if d <= 0 {
		return
	}
	seconds := d.Seconds()
	a.activeSeconds += seconds
	a.perApp[app] += seconds
}

func (a *Accountant) resolveApp() (app string) {
	if a.resolver == nil {
		return window.Unknown
	}
	defer func() {
		if p := recover(); p != nil {
			a.logger.Debug().Interface("panic", p).Msg("Active window resolver panicked")
			app = window.Unknown
		}
	}()

	app = a.resolver.ResolveActiveApp()
	if app == "" {
		return window.Unknown
	}
	return app
}

// Snapshot returns a copy of the current counters.
func (a *Accountant) Snapshot() ActivitySnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Accountant) snapshotLocked() ActivitySnapshot {
	perApp := make(map[string]float64, len(a.perApp))
	for app, seconds := range a.perApp {
		perApp[app] = seconds
	}
	return ActivitySnapshot{
		ActiveSeconds: a.activeSeconds,
		PerAppSeconds: perApp,
		Day:           a.currentDay,
	}
}

// Reset zeroes the counters and moves to today without persisting.
func (a *Accountant) Reset() {
	now := a.clock.Now()

	a.mu.Lock()
	a.activeSeconds = 0
	a.perApp = make(map[string]float64)
	a.currentDay = startOfDay(now)
	a.mu.Unlock()

	metrics.ActiveSecondsToday.Set(0)
	a.logger.Info().Str("day", storage.DayKey(now)).Msg("Counters reset")
}

// Checkpoint persists the current day's counters without resetting them.
func (a *Accountant) Checkpoint(ctx context.Context) error {
	record := a.Snapshot().Record(a.clock.Now())

	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()
	return a.persist(ctx, record, "checkpoint")
}

// Resume loads today's stored record so a restart continues the day.
func (a *Accountant) Resume(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	a.mu.Lock()
	day := storage.DayKey(a.currentDay)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	record, err := a.store.GetDayRecord(ctx, day)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load day %s: %w", day, err)
	}

	perApp := make(map[string]float64, len(record.PerApp))
	var sum float64
	for app, seconds := range record.PerApp {
		if seconds <= 0 {
			continue
		}
		perApp[app] = seconds
		sum += seconds
	}
	// Keep the per-app sum equal to the total.
	if record.ActiveSeconds > sum {
		perApp[window.Unknown] += record.ActiveSeconds - sum
		sum = record.ActiveSeconds
	}

	a.mu.Lock()
	if storage.DayKey(a.currentDay) == day {
		a.activeSeconds += sum
		for app, seconds := range perApp {
			a.perApp[app] += seconds
		}
	}
	active := a.activeSeconds
	a.mu.Unlock()

	metrics.ActiveSecondsToday.Set(active)
	a.logger.Info().Str("day", day).Float64("active_seconds", active).Msg("Resumed day from storage")
	return nil
}

// persist writes record once. Failures are logged and counted.
func (a *Accountant) persist(ctx context.Context, record storage.DayRecord, reason string) error {
	if a.store == nil {
		return nil
	}

	start := time.Now()
	err := a.store.WriteDayRecord(ctx, record)
	metrics.DayStoreWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DayStoreWritesTotal.WithLabelValues(reason, "error").Inc()
		a.logger.Error().Err(err).Str("day", record.Day).Str("reason", reason).Msg("Failed to write day record")
		return err
	}

	metrics.DayStoreWritesTotal.WithLabelValues(reason, "ok").Inc()
	a.logger.Debug().Str("day", record.Day).Str("reason", reason).Msg("Day record written")
	return nil
}

// Start attaches the input sources and starts the tick loop.
func (a *Accountant) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)

	for _, src := range a.sources {
		if err := src.Start(ctx, a.RecordInput); err != nil {
			a.logger.Warn().Err(err).Str("source", src.Name()).Msg("Input source unavailable")
			continue
		}
		a.logger.Debug().Str("source", src.Name()).Msg("Input source attached")
	}

	a.mu.Lock()
	a.lastTick = a.clock.Now()
	a.mu.Unlock()

	a.running = true
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.loop(ctx, a.done)

	a.logger.Info().
		Dur("idle_threshold", a.idleThreshold).
		Dur("tick_interval", a.tickInterval).
		Msg("Activity accounting started")
	return nil
}

// Stop halts the tick loop and detaches the input sources. It does not wait
// for the loop to exit, so it may be called from any goroutine including a
// notification callback. Use Wait to block until the loop is done.
func (a *Accountant) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if !a.running {
		return
	}
	a.running = false
	a.cancel()

	for _, src := range a.sources {
		src.Stop()
	}
	a.logger.Info().Msg("Activity accounting stopped")
}

// Wait blocks until the tick loop has exited.
func (a *Accountant) Wait() {
	a.runMu.Lock()
	done := a.done
	a.runMu.Unlock()

	if done != nil {
		<-done
	}
}

func (a *Accountant) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			a.Tick(a.clock.Now())
		}
	}
}
