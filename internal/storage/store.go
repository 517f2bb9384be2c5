package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrStorage wraps I/O failures of a storage backend.
	ErrStorage = errors.New("storage: i/o failure")
)

// Store represents the root storage interface.
type Store interface {
	Close() error
	Days() DayStore
}

// DayStore persists one accounting record per calendar day. Writing a record
// for a day that already exists replaces it.
type DayStore interface {
	WriteDayRecord(ctx context.Context, record DayRecord) error
	GetDayRecord(ctx context.Context, day string) (*DayRecord, error)
	ListDayRecords(ctx context.Context) ([]DayRecord, error)
	DeleteDayRecordsBefore(ctx context.Context, cutoffDay string) (int, error)
}
