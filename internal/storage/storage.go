// Package storage defines the run history ledger: one record per item
// outcome, kept across runs so past downloads can be inspected.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Record is one item outcome inside one run.
type Record struct {
	ID         int64
	RunID      string
	ItemID     string
	Collection string
	Title      string
	Path       string
	Status     string
	Attempts   int
	Bytes      int64
	Reason     string
	CreatedAt  time.Time
}

// NotFoundError reports a lookup for a run that never recorded anything.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no records for run %s", e.RunID)
}

// Repository persists and queries run history.
type Repository interface {
	RecordResult(ctx context.Context, rec Record) error
	RecentRecords(ctx context.Context, limit int) ([]Record, error)
	RunRecords(ctx context.Context, runID string) ([]Record, error)
}
