package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sermonarc/sermonarc/internal/storage"
)

// Repository stores run history in SQLite.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordResult upserts the latest outcome for an item within a collection.
// Reruns replace the item's previous outcome instead of piling up rows.
func (r *Repository) RecordResult(ctx context.Context, rec storage.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO downloads (run_id, item_id, collection, title, path, status, attempts, bytes, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id, collection) DO UPDATE SET
			run_id = excluded.run_id,
			title = excluded.title,
			path = excluded.path,
			status = excluded.status,
			attempts = excluded.attempts,
			bytes = excluded.bytes,
			reason = excluded.reason,
			created_at = excluded.created_at
	`, rec.RunID, rec.ItemID, rec.Collection, rec.Title, rec.Path, rec.Status,
		rec.Attempts, rec.Bytes, rec.Reason, createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording result for item %s: %w", rec.ItemID, err)
	}

	return nil
}

// RecentRecords returns the newest records first, up to limit.
func (r *Repository) RecentRecords(ctx context.Context, limit int) ([]storage.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, item_id, collection, title, path, status, attempts, bytes, reason, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent records: %w", err)
	}

	defer rows.Close()

	return scanRecords(rows)
}

// RunRecords returns every record of one run in insertion order.
func (r *Repository) RunRecords(ctx context.Context, runID string) ([]storage.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, item_id, collection, title, path, status, attempts, bytes, reason, created_at
		FROM downloads
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}

	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, &storage.NotFoundError{RunID: runID}
	}

	return recs, nil
}

func scanRecords(rows *sql.Rows) ([]storage.Record, error) {
	var recs []storage.Record

	for rows.Next() {
		var (
			rec       storage.Record
			title     sql.NullString
			path      sql.NullString
			reason    sql.NullString
			createdAt string
		)

		err := rows.Scan(&rec.ID, &rec.RunID, &rec.ItemID, &rec.Collection, &title, &path,
			&rec.Status, &rec.Attempts, &rec.Bytes, &reason, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		rec.Title = title.String
		rec.Path = path.String
		rec.Reason = reason.String

		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}
