package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/redis/go-redis/v9"
)

type dayStore struct {
	client *redis.Client
	prefix string
}

func (s *dayStore) recordKey(day string) string { return fmt.Sprintf("%s:day:%s", s.prefix, day) }
func (s *dayStore) appsKey(day string) string   { return fmt.Sprintf("%s:day:%s:apps", s.prefix, day) }
func (s *dayStore) indexKey() string            { return s.prefix + ":days" }

// WriteDayRecord replaces the record for its day
func (s *dayStore) WriteDayRecord(ctx context.Context, record storage.DayRecord) error {
	if _, err := storage.ParseDay(record.Day); err != nil {
		return err
	}
	score, err := dayScore(record.Day)
	if err != nil {
		return err
	}

	script := redis.NewScript(writeDayRecordScript)

	keys := []string{s.recordKey(record.Day), s.appsKey(record.Day), s.indexKey()}
	args := []interface{}{
		record.Day,
		formatFloat(record.ActiveSeconds),
		record.UpdatedAt.Format(time.RFC3339Nano),
		score,
	}
	for app, seconds := range record.PerApp {
		args = append(args, app, formatFloat(seconds))
	}

	if err := script.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("%w: write day %s: %v", storage.ErrStorage, record.Day, err)
	}
	return nil
}

// GetDayRecord retrieves the record for a day
func (s *dayStore) GetDayRecord(ctx context.Context, day string) (*storage.DayRecord, error) {
	pipe := s.client.Pipeline()
	recordCmd := pipe.HGetAll(ctx, s.recordKey(day))
	appsCmd := pipe.HGetAll(ctx, s.appsKey(day))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: read day %s: %v", storage.ErrStorage, day, err)
	}

	record, err := parseDayRecord(recordCmd.Val(), appsCmd.Val())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read day %s: %v", storage.ErrStorage, day, err)
	}
	return record, nil
}

// ListDayRecords returns all indexed records ordered by day
func (s *dayStore) ListDayRecords(ctx context.Context) ([]storage.DayRecord, error) {
	days, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list days: %v", storage.ErrStorage, err)
	}
	if len(days) == 0 {
		return []storage.DayRecord{}, nil
	}

	pipe := s.client.Pipeline()
	recordCmds := make([]*redis.MapStringStringCmd, len(days))
	appsCmds := make([]*redis.MapStringStringCmd, len(days))
	for i, day := range days {
		recordCmds[i] = pipe.HGetAll(ctx, s.recordKey(day))
		appsCmds[i] = pipe.HGetAll(ctx, s.appsKey(day))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: list days: %v", storage.ErrStorage, err)
	}

	records := make([]storage.DayRecord, 0, len(days))
	for i := range days {
		record, err := parseDayRecord(recordCmds[i].Val(), appsCmds[i].Val())
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Index entry without a record, skip it
				continue
			}
			return nil, fmt.Errorf("%w: list days: %v", storage.ErrStorage, err)
		}
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Day < records[j].Day })
	return records, nil
}

// DeleteDayRecordsBefore removes all records strictly older than cutoffDay
func (s *dayStore) DeleteDayRecordsBefore(ctx context.Context, cutoffDay string) (int, error) {
	if _, err := storage.ParseDay(cutoffDay); err != nil {
		return 0, err
	}
	cutoff, err := dayScore(cutoffDay)
	if err != nil {
		return 0, err
	}

	script := redis.NewScript(deleteDaysBeforeScript)
	deleted, err := script.Run(ctx, s.client, []string{s.indexKey()}, s.prefix, cutoff).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: delete days before %s: %v", storage.ErrStorage, cutoffDay, err)
	}
	return deleted, nil
}
