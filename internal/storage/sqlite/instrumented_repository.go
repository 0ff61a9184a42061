package sqlite

import (
	"context"
	"database/sql"

	"github.com/sermonarc/sermonarc/internal/storage"
	"github.com/sermonarc/sermonarc/internal/telemetry"
)

// InstrumentedRepository wraps Repository with telemetry.
type InstrumentedRepository struct {
	repo *Repository
	tel  *telemetry.Telemetry
}

var _ storage.Repository = (*InstrumentedRepository)(nil)

func NewInstrumentedRepository(db *sql.DB, tel *telemetry.Telemetry) *InstrumentedRepository {
	return &InstrumentedRepository{repo: NewRepository(db), tel: tel}
}

func (r *InstrumentedRepository) RecordResult(ctx context.Context, rec storage.Record) error {
	return r.tel.InstrumentDBOperation(ctx, "record_result", func(ctx context.Context) error {
		return r.repo.RecordResult(ctx, rec)
	})
}

func (r *InstrumentedRepository) RecentRecords(ctx context.Context, limit int) ([]storage.Record, error) {
	var recs []storage.Record

	err := r.tel.InstrumentDBOperation(ctx, "recent_records", func(ctx context.Context) error {
		var qerr error
		recs, qerr = r.repo.RecentRecords(ctx, limit)

		return qerr
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}

func (r *InstrumentedRepository) RunRecords(ctx context.Context, runID string) ([]storage.Record, error) {
	var recs []storage.Record

	err := r.tel.InstrumentDBOperation(ctx, "run_records", func(ctx context.Context) error {
		var qerr error
		recs, qerr = r.repo.RunRecords(ctx, runID)

		return qerr
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}
