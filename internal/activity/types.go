package activity

import (
	"sort"
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

// ActivitySnapshot is an immutable copy of the accountant's counters.
type ActivitySnapshot struct {
	ActiveSeconds float64
	PerAppSeconds map[string]float64
	Day           time.Time // local midnight of the accounted day
}

// AppUsage is one application's share of the day.
type AppUsage struct {
	App     string
	Seconds float64
}

// Minutes returns the active time in minutes.
func (s ActivitySnapshot) Minutes() float64 {
	return s.ActiveSeconds / 60
}

// Active returns the active time as a duration.
func (s ActivitySnapshot) Active() time.Duration {
	return time.Duration(s.ActiveSeconds * float64(time.Second))
}

// Apps returns the per-application breakdown, largest first.
func (s ActivitySnapshot) Apps() []AppUsage {
	apps := make([]AppUsage, 0, len(s.PerAppSeconds))
	for app, seconds := range s.PerAppSeconds {
		apps = append(apps, AppUsage{App: app, Seconds: seconds})
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Seconds != apps[j].Seconds {
			return apps[i].Seconds > apps[j].Seconds
		}
		return apps[i].App < apps[j].App
	})
	return apps
}

// DayKey returns the storage key of the snapshot's day.
func (s ActivitySnapshot) DayKey() string {
	return storage.DayKey(s.Day)
}

// Record converts the snapshot to a persisted day record.
func (s ActivitySnapshot) Record(updatedAt time.Time) storage.DayRecord {
	perApp := make(map[string]float64, len(s.PerAppSeconds))
	for app, seconds := range s.PerAppSeconds {
		perApp[app] = seconds
	}
	return storage.DayRecord{
		Day:           s.DayKey(),
		ActiveSeconds: s.ActiveSeconds,
		PerApp:        perApp,
		UpdatedAt:     updatedAt,
	}
}

// SnapshotFromRecord builds a snapshot from a stored day record.
func SnapshotFromRecord(record storage.DayRecord) (ActivitySnapshot, error) {
	day, err := storage.ParseDay(record.Day)
	if err != nil {
		return ActivitySnapshot{}, err
	}
	perApp := make(map[string]float64, len(record.PerApp))
	for app, seconds := range record.PerApp {
		perApp[app] = seconds
	}
	return ActivitySnapshot{
		ActiveSeconds: record.ActiveSeconds,
		PerAppSeconds: perApp,
		Day:           day,
	}, nil
}

// startOfDay returns local midnight of t's calendar date.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
