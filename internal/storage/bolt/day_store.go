package bolt

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/screentime/internal/storage"
	"go.etcd.io/bbolt"
)

type dayStore struct {
	db *bbolt.DB
}

// WriteDayRecord stores the record under its day key, replacing any previous
// record for the same day.
func (s *dayStore) WriteDayRecord(ctx context.Context, record storage.DayRecord) error {
	if _, err := storage.ParseDay(record.Day); err != nil {
		return err
	}
	if err := putBucketValue(ctx, s.db, bucketDays, record.Day, record); err != nil {
		return fmt.Errorf("%w: write day %s: %v", storage.ErrStorage, record.Day, err)
	}
	return nil
}

func (s *dayStore) GetDayRecord(ctx context.Context, day string) (*storage.DayRecord, error) {
	record, err := getBucketValue[storage.DayRecord](ctx, s.db, bucketDays, day)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read day %s: %v", storage.ErrStorage, day, err)
	}
	return record, nil
}

// ListDayRecords returns all records ordered by day. Day keys sort
// lexically in calendar order, so bucket order is already correct.
func (s *dayStore) ListDayRecords(ctx context.Context) ([]storage.DayRecord, error) {
	records, err := listBucket[storage.DayRecord](ctx, s.db, bucketDays)
	if err != nil {
		return nil, fmt.Errorf("%w: list days: %v", storage.ErrStorage, err)
	}
	return records, nil
}

func (s *dayStore) DeleteDayRecordsBefore(ctx context.Context, cutoffDay string) (int, error) {
	if _, err := storage.ParseDay(cutoffDay); err != nil {
		return 0, err
	}

	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDays))
		if b == nil {
			return nil
		}
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && string(k) < cutoffDay; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete days before %s: %v", storage.ErrStorage, cutoffDay, err)
	}
	return deleted, nil
}
