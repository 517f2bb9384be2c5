package storage

import (
	"fmt"
	"time"
)

// DayLayout is the key format of a calendar day.
const DayLayout = "2006-01-02"

// DayRecord is the persisted accounting record of a single calendar day.
type DayRecord struct {
	Day           string             `json:"day"`
	ActiveSeconds float64            `json:"active_seconds"`
	PerApp        map[string]float64 `json:"per_app"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// DayKey formats the local calendar date of t as a day key.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses a day key into local midnight of that day.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}

// Clone returns a deep copy of the record.
func (r DayRecord) Clone() DayRecord {
	perApp := make(map[string]float64, len(r.PerApp))
	for app, seconds := range r.PerApp {
		perApp[app] = seconds
	}
	r.PerApp = perApp
	return r
}
