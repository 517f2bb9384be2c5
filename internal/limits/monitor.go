// Package limits fires usage-limit and break-reminder notifications from
// activity snapshots. Each notification fires at most once per day.
package limits

import (
	"math"
	"sync"

	"github.com/goodtune/screentime/internal/activity"
	"github.com/goodtune/screentime/internal/metrics"
	"github.com/rs/zerolog"
)

// Notification kinds, in ascending severity.
const (
	KindWarning   = "warning"
	KindSoftLimit = "soft_limit"
	KindHardLimit = "hard_limit"
	KindBreak     = "break"
)

// Message is a notification title and body.
type Message struct {
	Title string
	Body  string
}

// Messages maps notification kinds to their text.
var Messages = map[string]Message{
	KindWarning: {
		Title: "Break reminder",
		Body:  "You have been active for a long time. Take a pause.",
	},
	KindSoftLimit: {
		Title: "Soft limit reached",
		Body:  "You are close to the daily cap. Wrap up soon.",
	},
	KindHardLimit: {
		Title: "Hard limit reached",
		Body:  "Daily limit is over. Please stop using the computer now.",
	},
	KindBreak: {
		Title: "Take a short break",
		Body:  "Stand up, stretch, and rest your eyes.",
	},
}

// SnapshotSource provides the current day's activity.
type SnapshotSource interface {
	Snapshot() activity.ActivitySnapshot
}

// Sink delivers notifications without reporting failures.
type Sink interface {
	Notify(title, body string)
}

// Config holds thresholds in minutes. A zero BreakIntervalMinutes disables
// break reminders.
type Config struct {
	WarningMinutes       int
	SoftLimitMinutes     int
	HardLimitMinutes     int
	BreakIntervalMinutes int
}

// LatchState records which notifications have fired today.
type LatchState struct {
	WarningFired   bool
	SoftLimitFired bool
	HardLimitFired bool
	BreakBucket    int
}

// Monitor evaluates thresholds and break intervals against snapshots.
type Monitor struct {
	cfg    Config
	source SnapshotSource
	sink   Sink
	logger zerolog.Logger

	mu    sync.Mutex
	state LatchState
}

// NewMonitor creates a monitor with all latches clear.
func NewMonitor(cfg Config, source SnapshotSource, sink Sink, logger zerolog.Logger) *Monitor {
	if cfg.HardLimitMinutes == 0 {
		cfg.HardLimitMinutes = cfg.SoftLimitMinutes
	}
	return &Monitor{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: logger.With().Str("component", "limits").Logger(),
	}
}

// CheckThresholds fires the warning, soft and hard limit notifications whose
// threshold has been reached, in that order. It returns the kinds fired.
func (m *Monitor) CheckThresholds() []string {
	snap := m.source.Snapshot()
	minutes := snap.Minutes()

	m.mu.Lock()
	var fired []string
	latches := []struct {
		kind      string
		threshold int
		latch     *bool
	}{
		{KindWarning, m.cfg.WarningMinutes, &m.state.WarningFired},
		{KindSoftLimit, m.cfg.SoftLimitMinutes, &m.state.SoftLimitFired},
		{KindHardLimit, m.cfg.HardLimitMinutes, &m.state.HardLimitFired},
	}
	for _, l := range latches {
		if *l.latch || l.threshold <= 0 || minutes < float64(l.threshold) {
			continue
		}
		*l.latch = true
		fired = append(fired, l.kind)
	}
	m.mu.Unlock()

	for _, kind := range fired {
		m.logger.Info().
			Str("kind", kind).
			Float64("active_minutes", minutes).
			Msg("Usage threshold reached")
		m.notify(kind)
	}
	return fired
}

// CheckBreak fires one break reminder when active time has entered a new
// break interval since the last reminder. Skipped intervals do not fire
// separately. It reports whether a reminder fired.
func (m *Monitor) CheckBreak() bool {
	if m.cfg.BreakIntervalMinutes <= 0 {
		return false
	}

	snap := m.source.Snapshot()
	bucket := m.breakBucket(snap.ActiveSeconds)

	m.mu.Lock()
	if bucket <= m.state.BreakBucket {
		m.mu.Unlock()
		return false
	}
	previous := m.state.BreakBucket
	m.state.BreakBucket = bucket
	m.mu.Unlock()

	metrics.BreakBucket.Set(float64(bucket))
	m.logger.Info().
		Int("bucket", bucket).
		Int("previous_bucket", previous).
		Float64("active_minutes", snap.Minutes()).
		Msg("Break interval reached")
	m.notify(KindBreak)
	return true
}

// Prime marks every notification already due for snap as fired without
// sending it. It is used after today's counters are restored on startup.
func (m *Monitor) Prime(snap activity.ActivitySnapshot) LatchState {
	minutes := snap.Minutes()
	reached := func(threshold int) bool {
		return threshold > 0 && minutes >= float64(threshold)
	}

	m.mu.Lock()
	m.state.WarningFired = m.state.WarningFired || reached(m.cfg.WarningMinutes)
	m.state.SoftLimitFired = m.state.SoftLimitFired || reached(m.cfg.SoftLimitMinutes)
	m.state.HardLimitFired = m.state.HardLimitFired || reached(m.cfg.HardLimitMinutes)
	if bucket := m.breakBucket(snap.ActiveSeconds); bucket > m.state.BreakBucket {
		m.state.BreakBucket = bucket
	}
	state := m.state
	m.mu.Unlock()

	metrics.BreakBucket.Set(float64(state.BreakBucket))
	m.logger.Info().
		Float64("active_minutes", minutes).
		Interface("latches", state).
		Msg("Notification latches primed")
	return state
}

func (m *Monitor) breakBucket(activeSeconds float64) int {
	if m.cfg.BreakIntervalMinutes <= 0 {
		return 0
	}
	return int(math.Floor(activeSeconds / float64(m.cfg.BreakIntervalMinutes*60)))
}

// ResetDaily clears all latches for a new day.
func (m *Monitor) ResetDaily() {
	m.mu.Lock()
	m.state = LatchState{}
	m.mu.Unlock()

	metrics.BreakBucket.Set(0)
	m.logger.Info().Msg("Notification latches reset")
}

// State returns a copy of the latch state.
func (m *Monitor) State() LatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) notify(kind string) {
	metrics.NotificationsTotal.WithLabelValues(kind).Inc()
	msg := Messages[kind]
	m.sink.Notify(msg.Title, msg.Body)
}
