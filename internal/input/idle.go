package input

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// IdleProber reports how long the session has gone without keyboard or
// pointer input.
type IdleProber interface {
	IdleTime() (time.Duration, error)
}

// IdlePoller samples an IdleProber and reports an input event whenever the
// session idle time shows activity since the previous sample.
type IdlePoller struct {
	prober   IdleProber
	interval time.Duration
	logger   zerolog.Logger
	logOnce  rate.Sometimes

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewIdlePoller creates a poller sampling prober every interval.
func NewIdlePoller(prober IdleProber, interval time.Duration, logger zerolog.Logger) *IdlePoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &IdlePoller{
		prober:   prober,
		interval: interval,
		logger:   logger.With().Str("component", "input").Logger(),
		logOnce:  rate.Sometimes{Interval: time.Minute},
	}
}

// Name implements Source.
func (p *IdlePoller) Name() string { return "idle-poller" }

// Start implements Source. It fails when the prober cannot be queried at all.
func (p *IdlePoller) Start(ctx context.Context, record func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("idle poller already started")
	}
	if _, err := p.prober.IdleTime(); err != nil {
		return fmt.Errorf("probe idle time: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, record, p.done)
	return nil
}

// Stop implements Source.
func (p *IdlePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *IdlePoller) run(ctx context.Context, record func(), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(record)
		}
	}
}

// poll reports activity when the idle counter is younger than one interval,
// meaning input arrived since the last sample.
func (p *IdlePoller) poll(record func()) {
	idle, err := p.prober.IdleTime()
	if err != nil {
		p.logOnce.Do(func() {
			p.logger.Warn().Err(err).Msg("Failed to probe idle time")
		})
		return
	}
	if idle < p.interval {
		record()
	}
}
