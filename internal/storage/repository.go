package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"costdash/internal/core"

	_ "modernc.org/sqlite"
)

// ErrUploadNotFound is returned when no audit row matches a dataset ID.
var ErrUploadNotFound = errors.New("upload not found")

// Fixed-width so created_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteRepository is the upload audit log. It stores metadata about
// each ingestion, never the cost rows themselves.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The server and worker may both write; serialize within a process
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Audit log ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordUpload writes one audit row. Replays of the same dataset ID are
// ignored and reported as inserted=false.
func (r *SQLiteRepository) RecordUpload(ctx context.Context, m core.UploadMeta) (bool, error) {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.queries.CreateUpload(ctx, CreateUploadParams{
		DatasetID:      m.DatasetID,
		FileName:       m.File,
		Source:         m.Source,
		RecordCount:    int64(m.Records),
		SkippedDates:   int64(m.SkippedDates),
		SkippedAmounts: int64(m.SkippedAmounts),
		MinDate:        m.Start.String(),
		MaxDate:        m.End.String(),
		CreatedAt:      created.UTC().Format(timestampLayout),
	})
	if err != nil {
		return false, fmt.Errorf("create upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		slog.DebugContext(ctx, "Upload already recorded", "dataset_id", m.DatasetID)
		return false, nil
	}
	slog.InfoContext(ctx, "Upload recorded",
		"dataset_id", m.DatasetID,
		"file", m.File,
		"records", m.Records)
	return true, nil
}

// GetUpload returns the audit row for a dataset ID.
func (r *SQLiteRepository) GetUpload(ctx context.Context, datasetID string) (core.UploadMeta, error) {
	u, err := r.queries.GetUploadByDatasetID(ctx, datasetID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UploadMeta{}, ErrUploadNotFound
	}
	if err != nil {
		return core.UploadMeta{}, fmt.Errorf("get upload %s: %w", datasetID, err)
	}
	return u.toMeta(), nil
}

// ListRecentUploads returns up to limit audit rows, newest first.
func (r *SQLiteRepository) ListRecentUploads(ctx context.Context, limit int) ([]core.UploadMeta, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.queries.ListRecentUploads(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	out := make([]core.UploadMeta, 0, len(rows))
	for _, u := range rows {
		out = append(out, u.toMeta())
	}
	return out, nil
}

// CountUploads returns the number of audit rows.
func (r *SQLiteRepository) CountUploads(ctx context.Context) (int64, error) {
	n, err := r.queries.CountUploads(ctx)
	if err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}
	return n, nil
}

func (u Upload) toMeta() core.UploadMeta {
	start, _ := core.ParseDate(u.MinDate)
	end, _ := core.ParseDate(u.MaxDate)
	created, err := time.Parse(timestampLayout, u.CreatedAt)
	if err != nil {
		slog.Warn("Unparseable upload timestamp", "dataset_id", u.DatasetID, "created_at", u.CreatedAt)
	}
	return core.UploadMeta{
		DatasetID:      u.DatasetID,
		File:           u.FileName,
		Source:         u.Source,
		Records:        int(u.RecordCount),
		SkippedDates:   int(u.SkippedDates),
		SkippedAmounts: int(u.SkippedAmounts),
		Start:          start,
		End:            end,
		CreatedAt:      created,
	}
}
