package schedule

import (
	"fmt"
	"time"
)

type cadenceKind int

const (
	kindDaily cadenceKind = iota + 1
	kindHourly
	kindEvery
)

// Cadence describes when a job fires.
type Cadence struct {
	kind   cadenceKind
	hour   int
	minute int
	period time.Duration
}

// DailyAt returns a cadence firing once a day at hhmm local time.
func DailyAt(hhmm string) (Cadence, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return Cadence{}, fmt.Errorf("%w: daily time must be HH:MM, got %q", ErrInvalidCadence, hhmm)
	}
	return Cadence{kind: kindDaily, hour: t.Hour(), minute: t.Minute()}, nil
}

// Hourly returns a cadence firing every hour.
func Hourly() Cadence {
	return Cadence{kind: kindHourly, period: time.Hour}
}

// EveryMinutes returns a cadence firing every n minutes.
func EveryMinutes(n int) (Cadence, error) {
	if n < 1 {
		return Cadence{}, fmt.Errorf("%w: interval must be at least one minute, got %d", ErrInvalidCadence, n)
	}
	return Cadence{kind: kindEvery, period: time.Duration(n) * time.Minute}, nil
}

// IsZero reports whether c was never initialised.
func (c Cadence) IsZero() bool {
	return c.kind == 0
}

// String describes the cadence.
func (c Cadence) String() string {
	switch c.kind {
	case kindDaily:
		return fmt.Sprintf("daily at %02d:%02d", c.hour, c.minute)
	case kindHourly:
		return "hourly"
	case kindEvery:
		return fmt.Sprintf("every %s", c.period)
	default:
		return "invalid"
	}
}

// first returns the initial fire time for a job registered at now.
func (c Cadence) first(now time.Time) time.Time {
	if c.kind == kindDaily {
		return c.nextDaily(now)
	}
	return now.Add(c.period)
}

// next returns the fire time following a fire at prev, observed at now.
// Periodic cadences stay on their grid and collapse missed fires; daily
// cadences re-anchor to the next calendar occurrence.
func (c Cadence) next(prev, now time.Time) time.Time {
	if c.kind == kindDaily {
		return c.nextDaily(now)
	}

	next := prev.Add(c.period)
	if !next.After(now) {
		missed := now.Sub(next)/c.period + 1
		next = next.Add(missed * c.period)
	}
	return next
}

// nextDaily returns the first occurrence of hh:mm strictly after now.
func (c Cadence) nextDaily(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), c.hour, c.minute, 0, 0, now.Location())
	if !today.After(now) {
		return today.AddDate(0, 0, 1)
	}
	return today
}
