package notification

import (
	"fmt"

	"github.com/goodtune/screentime/internal/clock"
	"github.com/goodtune/screentime/internal/metrics"
	"github.com/rs/zerolog"
)

// Dispatcher is the fire-and-forget notification sink. Delivery failures are
// logged and counted, never returned to the caller.
type Dispatcher struct {
	notifier Notifier
	name     string
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewDispatcher creates a sink delivering through notifier. name labels
// delivery metrics.
func NewDispatcher(notifier Notifier, name string, clk clock.Clock, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		name:     name,
		clock:    clk,
		logger:   logger.With().Str("component", "notification").Logger(),
	}
}

// Notify delivers title and body.
func (d *Dispatcher) Notify(title, body string) {
	defer func() {
		if p := recover(); p != nil {
			d.failed(title, fmt.Errorf("panic: %v", p))
		}
	}()

	n := Notification{Title: title, Message: body, Time: d.clock.Now()}
	if err := d.notifier.Send(n); err != nil {
		d.failed(title, err)
		return
	}

	metrics.NotificationDeliveryTotal.WithLabelValues(d.name, "ok").Inc()
	d.logger.Debug().Str("title", title).Msg("Notification delivered")
}

func (d *Dispatcher) failed(title string, err error) {
	metrics.NotificationDeliveryTotal.WithLabelValues(d.name, "error").Inc()
	d.logger.Warn().Err(err).Str("title", title).Msg("Failed to deliver notification")
}

// New builds the notifier selected by backend. The auto backend prefers
// desktop notifications and falls back to stdout. It returns the notifier
// and the backend actually chosen.
func New(backend string, logger zerolog.Logger) (Notifier, string, error) {
	switch backend {
	case "", BackendAuto:
		desktop := NewDesktopNotifier()
		if desktop.Available() {
			return NewBreakerNotifier(BackendDesktop, desktop), BackendDesktop, nil
		}
		return NewStdoutNotifier(), BackendStdout, nil
	case BackendDesktop:
		desktop := NewDesktopNotifier()
		if !desktop.Available() {
			return nil, "", ErrNoDesktop
		}
		return NewBreakerNotifier(BackendDesktop, desktop), BackendDesktop, nil
	case BackendStdout:
		return NewStdoutNotifier(), BackendStdout, nil
	case BackendLog:
		return NewLogNotifier(logger), BackendLog, nil
	default:
		return nil, "", fmt.Errorf("unknown notification backend %q", backend)
	}
}
