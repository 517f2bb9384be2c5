package notification

import (
	"time"

	"github.com/sony/gobreaker"
)

// BreakerNotifier stops calling a failing notifier for a cool-down period.
type BreakerNotifier struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerNotifier wraps next with a circuit breaker that opens after
// three consecutive failures.
func NewBreakerNotifier(name string, next Notifier) *BreakerNotifier {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &BreakerNotifier{next: next, cb: cb}
}

// Send forwards to the wrapped notifier unless the breaker is open.
func (b *BreakerNotifier) Send(notification Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(notification)
	})
	return err
}

// State returns the breaker state.
func (b *BreakerNotifier) State() gobreaker.State {
	return b.cb.State()
}
