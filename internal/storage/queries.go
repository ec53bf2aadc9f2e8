package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Upload is one row of the uploads table.
type Upload struct {
	ID             int64
	DatasetID      string
	FileName       string
	Source         string
	RecordCount    int64
	SkippedDates   int64
	SkippedAmounts int64
	MinDate        string
	MaxDate        string
	CreatedAt      string
}

type CreateUploadParams struct {
	DatasetID      string
	FileName       string
	Source         string
	RecordCount    int64
	SkippedDates   int64
	SkippedAmounts int64
	MinDate        string
	MaxDate        string
	CreatedAt      string
}

const createUpload = `-- name: CreateUpload :execresult
INSERT INTO uploads (
    dataset_id, file_name, source, record_count, skipped_dates, skipped_amounts, min_date, max_date, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dataset_id) DO NOTHING
`

func (q *Queries) CreateUpload(ctx context.Context, arg CreateUploadParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, createUpload,
		arg.DatasetID,
		arg.FileName,
		arg.Source,
		arg.RecordCount,
		arg.SkippedDates,
		arg.SkippedAmounts,
		arg.MinDate,
		arg.MaxDate,
		arg.CreatedAt,
	)
}

const getUploadByDatasetID = `-- name: GetUploadByDatasetID :one
SELECT id, dataset_id, file_name, source, record_count, skipped_dates, skipped_amounts, min_date, max_date, created_at
FROM uploads
WHERE dataset_id = ?
`

func (q *Queries) GetUploadByDatasetID(ctx context.Context, datasetID string) (Upload, error) {
	row := q.db.QueryRowContext(ctx, getUploadByDatasetID, datasetID)
	var i Upload
	err := row.Scan(
		&i.ID,
		&i.DatasetID,
		&i.FileName,
		&i.Source,
		&i.RecordCount,
		&i.SkippedDates,
		&i.SkippedAmounts,
		&i.MinDate,
		&i.MaxDate,
		&i.CreatedAt,
	)
	return i, err
}

const listRecentUploads = `-- name: ListRecentUploads :many
SELECT id, dataset_id, file_name, source, record_count, skipped_dates, skipped_amounts, min_date, max_date, created_at
FROM uploads
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentUploads(ctx context.Context, limit int64) ([]Upload, error) {
	rows, err := q.db.QueryContext(ctx, listRecentUploads, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Upload
	for rows.Next() {
		var i Upload
		if err := rows.Scan(
			&i.ID,
			&i.DatasetID,
			&i.FileName,
			&i.Source,
			&i.RecordCount,
			&i.SkippedDates,
			&i.SkippedAmounts,
			&i.MinDate,
			&i.MaxDate,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countUploads = `-- name: CountUploads :one
SELECT COUNT(*) FROM uploads
`

func (q *Queries) CountUploads(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUploads)
	var count int64
	err := row.Scan(&count)
	return count, err
}
