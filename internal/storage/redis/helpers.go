package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/screentime/internal/storage"
)

// parseDayRecord converts the record and apps hashes to a DayRecord
func parseDayRecord(data, apps map[string]string) (*storage.DayRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	active, err := strconv.ParseFloat(data["active_seconds"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse active_seconds: %w", err)
	}

	var updatedAt time.Time
	if raw := data["updated_at"]; raw != "" {
		updatedAt, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
	}

	perApp := make(map[string]float64, len(apps))
	for app, raw := range apps {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse seconds for %s: %w", app, err)
		}
		perApp[app] = seconds
	}

	return &storage.DayRecord{
		Day:           data["day"],
		ActiveSeconds: active,
		PerApp:        perApp,
		UpdatedAt:     updatedAt,
	}, nil
}

// dayScore orders days in the index. Midnight UTC of the calendar date keeps
// the score independent of the local zone.
func dayScore(day string) (float64, error) {
	t, err := time.Parse(storage.DayLayout, day)
	if err != nil {
		return 0, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return float64(t.Unix()), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
