// Package schedule runs named jobs on daily, hourly and every-N-minutes
// cadences from a single polling loop.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often due jobs are checked.
const DefaultPollInterval = 30 * time.Second

// ErrInvalidCadence is returned for malformed job registrations.
var ErrInvalidCadence = errors.New("invalid cadence")

// Job is a registered action and its next fire time.
type Job struct {
	Name     string
	Cadence  Cadence
	Action   func() error
	NextFire time.Time
	LastRun  time.Time
	Runs     int
}

// Scheduler fires registered jobs whose NextFire has passed. Jobs run
// synchronously on the polling goroutine in registration order.
type Scheduler struct {
	clock    clock.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs []*Job

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a scheduler polling every interval.
func NewScheduler(clk clock.Clock, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		clock:    clk,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Schedule registers action under name with the given cadence.
func (s *Scheduler) Schedule(name string, cadence Cadence, action func() error) error {
	if cadence.IsZero() {
		return fmt.Errorf("%w: job %s has no cadence", ErrInvalidCadence, name)
	}
	if action == nil {
		return fmt.Errorf("%w: job %s has no action", ErrInvalidCadence, name)
	}

	job := &Job{
		Name:     name,
		Cadence:  cadence,
		Action:   action,
		NextFire: cadence.first(s.clock.Now()),
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	s.logger.Info().
		Str("job", name).
		Str("cadence", cadence.String()).
		Time("next_fire", job.NextFire).
		Msg("Job scheduled")
	return nil
}

// ScheduleDaily registers action to run every day at hhmm.
func (s *Scheduler) ScheduleDaily(name, hhmm string, action func() error) error {
	cadence, err := DailyAt(hhmm)
	if err != nil {
		return err
	}
	return s.Schedule(name, cadence, action)
}

// ScheduleHourly registers action to run every hour.
func (s *Scheduler) ScheduleHourly(name string, action func() error) error {
	return s.Schedule(name, Hourly(), action)
}

// ScheduleEveryMinutes registers action to run every n minutes.
func (s *Scheduler) ScheduleEveryMinutes(name string, n int, action func() error) error {
	cadence, err := EveryMinutes(n)
	if err != nil {
		return err
	}
	return s.Schedule(name, cadence, action)
}

// Jobs returns copies of the registered jobs.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// RunPending fires every job due at now and returns how many ran. A failing
// job does not affect the others.
func (s *Scheduler) RunPending(now time.Time) int {
	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if !job.NextFire.After(now) {
			job.NextFire = job.Cadence.next(job.NextFire, now)
			job.LastRun = now
			job.Runs++
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.run(job.Name, job.Action)
	}
	return len(due)
}

func (s *Scheduler) run(name string, action func() error) {
	start := time.Now()
	result := "ok"

	defer func() {
		if p := recover(); p != nil {
			result = "panic"
			s.logger.Error().Str("job", name).Interface("panic", p).Msg("Job panicked")
		}
		metrics.JobRunsTotal.WithLabelValues(name, result).Inc()
		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if err := action(); err != nil {
		result = "error"
		s.logger.Error().Err(err).Str("job", name).Msg("Job failed")
		return
	}
	s.logger.Debug().Str("job", name).Dur("duration", time.Since(start)).Msg("Job completed")
}

// Start spawns the polling loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info().Dur("poll_interval", s.interval).Msg("Scheduler started")
}

// Stop asks the polling loop to exit. A job already running completes.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.cancel()
	s.logger.Info().Msg("Scheduler stopped")
}

// Wait blocks until the polling loop has exited.
func (s *Scheduler) Wait() {
	s.runMu.Lock()
	done := s.done
	s.runMu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.RunPending(s.clock.Now())
		}
	}
}
