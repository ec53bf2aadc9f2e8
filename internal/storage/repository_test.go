package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"costdash/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "audit.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRecordUploadAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2023, 11, 1, 9, 0, 0, 0, time.UTC)

	metas := []core.UploadMeta{
		{DatasetID: "ds-1", File: "march.xlsx", Source: "upload", Records: 10, SkippedDates: 2,
			Start: core.NewDate(2023, 3, 1), End: core.NewDate(2023, 3, 31), CreatedAt: base},
		{DatasetID: "ds-2", File: "april.csv", Source: "upload", Records: 5, CreatedAt: base.Add(time.Hour)},
	}
	for _, m := range metas {
		inserted, err := repo.RecordUpload(ctx, m)
		if err != nil || !inserted {
			t.Fatalf("RecordUpload(%s) = %v, %v", m.DatasetID, inserted, err)
		}
	}

	got, err := repo.ListRecentUploads(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecentUploads() error = %v", err)
	}
	if len(got) != 2 || got[0].DatasetID != "ds-2" || got[1].DatasetID != "ds-1" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[1].Start.String() != "2023-03-01" || got[1].SkippedDates != 2 || !got[1].CreatedAt.Equal(base) {
		t.Errorf("round trip lost fields: %+v", got[1])
	}
	if !got[0].Start.IsEmpty() {
		t.Errorf("missing dates should stay empty: %+v", got[0])
	}

	limited, _ := repo.ListRecentUploads(ctx, 1)
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d rows", len(limited))
	}
}

func TestRecordUploadIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := core.UploadMeta{DatasetID: "ds-1", File: "a.csv", Source: "upload"}

	if inserted, err := repo.RecordUpload(ctx, m); err != nil || !inserted {
		t.Fatalf("first insert = %v, %v", inserted, err)
	}
	if inserted, err := repo.RecordUpload(ctx, m); err != nil || inserted {
		t.Fatalf("replay = %v, %v", inserted, err)
	}
	if n, _ := repo.CountUploads(ctx); n != 1 {
		t.Errorf("CountUploads() = %d, want 1", n)
	}
}

func TestGetUpload(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetUpload(ctx, "nope"); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("GetUpload(missing) error = %v", err)
	}

	_, _ = repo.RecordUpload(ctx, core.UploadMeta{DatasetID: "ds-9", File: "costs.xlsx", Source: "sheets:abc/Costs", Records: 3})
	got, err := repo.GetUpload(ctx, "ds-9")
	if err != nil || got.Source != "sheets:abc/Costs" || got.Records != 3 {
		t.Fatalf("GetUpload() = %+v, %v", got, err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestMigrationsAreRerunnable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		repo.Close()
	}
}

func TestRunMigrationsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	version, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	if version != 1 {
		t.Errorf("RunMigrations() version = %d, want 1", version)
	}
}
