package storage

import (
	"context"
	"time"
)

// RetentionCutoff returns the oldest day kept when retaining retentionDays
// days of history before now.
func RetentionCutoff(now time.Time, retentionDays int) string {
	return DayKey(now.AddDate(0, 0, -retentionDays))
}

// PruneDays deletes records older than retentionDays. A retention of zero
// keeps everything.
func PruneDays(ctx context.Context, days DayStore, now time.Time, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	return days.DeleteDayRecordsBefore(ctx, RetentionCutoff(now, retentionDays))
}
