package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"costdash/internal/cache"
	"costdash/internal/core"
	"costdash/internal/ingest"
	applog "costdash/internal/log"
	"costdash/internal/sheets"

	"github.com/go-chi/chi/v5"
)

const importTimeout = 30 * time.Second

// handleUpload ingests a multipart "file" field (.xlsx or .csv).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			JSONError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds %d bytes", s.deps.MaxUploadBytes)).Write(w)
			return
		}
		logger.Warn("Malformed upload", applog.FieldError, err)
		JSONError(http.StatusBadRequest, "expected a multipart form with a 'file' field").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		JSONError(http.StatusBadRequest, "missing 'file' field").Write(w)
		return
	}
	defer file.Close()

	name := sanitizeInput(filepath.Base(header.Filename))
	ds, err := ingest.Read(name, file)
	if err != nil {
		s.writeIngestError(w, r, name, err)
		return
	}

	s.storeDataset(w, r, name, "upload", ds)
}

// handleImport pulls the cost sheet from the configured source.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Source == nil {
		JSONError(http.StatusNotImplemented, errNoSource.Error()).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), importTimeout)
	defer cancel()

	source := "import"
	if d, ok := s.deps.Source.(sheets.Describer); ok {
		source = d.Describe()
	}

	ds, err := s.deps.Source.ReadCosts(ctx)
	if err != nil {
		var schemaErr *ingest.SchemaError
		if errors.As(err, &schemaErr) {
			s.writeIngestError(w, r, source, err)
			return
		}
		applog.LogError(r.Context(), "Import failed", err, applog.OpImport,
			applog.NewFields().With(applog.FieldSource, source))
		JSONError(http.StatusBadGateway, "could not read the cost sheet from "+source).Write(w)
		return
	}

	s.storeDataset(w, r, source, source, ds)
}

func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, name string, err error) {
	logger := applog.FromContext(r.Context())

	var schemaErr *ingest.SchemaError
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		logger.Warn("Unsupported upload", applog.FieldFile, name)
		JSONError(http.StatusUnsupportedMediaType, "only .xlsx and .csv files are supported").Write(w)
	case errors.As(err, &schemaErr):
		logger.Warn("Upload missing required columns",
			applog.FieldFile, name,
			"missing", strings.Join(schemaErr.Missing, ","))
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			JSON(errorBody{Error: schemaErr.Error(), Missing: schemaErr.Missing}).
			Write(w)
	default:
		logger.Warn("Unreadable upload", applog.FieldFile, name, applog.FieldError, err)
		JSONError(http.StatusBadRequest, "could not read "+name).Write(w)
	}
}

// storeDataset caches ds, records its metadata and answers 201 with the
// dataset description. Audit failures are logged, never returned.
func (s *Server) storeDataset(w http.ResponseWriter, r *http.Request, file, source string, ds ingest.Dataset) {
	ctx := r.Context()
	sess := s.deps.Datasets.Put(file, source, ds)

	applog.FromContext(ctx).Info("Dataset loaded", applog.NewFields().
		WithDataset(sess.ID, file, len(ds.Records), ds.SkippedDates, ds.SkippedAmounts).
		WithOperation(applog.OpUpload).
		With(applog.FieldSource, source).
		ToSlice()...)

	resp := NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerDatasetLoaded(sess.ID)

	if s.deps.Uploads != nil && s.deps.Uploads.Enabled() {
		meta := core.UploadMeta{
			DatasetID:      sess.ID,
			File:           file,
			Source:         source,
			Records:        len(ds.Records),
			SkippedDates:   ds.SkippedDates,
			SkippedAmounts: ds.SkippedAmounts,
			Start:          sess.Defaults.Start,
			End:            sess.Defaults.End,
			CreatedAt:      sess.CreatedAt,
		}
		if err := s.deps.Uploads.Record(ctx, meta); err != nil {
			applog.LogError(ctx, "Failed to record upload", err, applog.OpRecord,
				applog.NewFields().With(applog.FieldDatasetID, sess.ID))
		} else {
			resp.TriggerUploadsRefresh()
		}
	}

	msg := fmt.Sprintf("Loaded %d records from %s", len(ds.Records), file)
	if skipped := ds.SkippedDates + ds.SkippedAmounts; skipped > 0 {
		resp.TriggerWarningNotification(fmt.Sprintf("%s (%d rows skipped)", msg, skipped))
	} else {
		resp.TriggerSuccessNotification(msg)
	}
	resp.JSON(newDatasetView(sess)).Write(w)
}

// dashboard loads the session named by the {id} route parameter and runs
// the pipeline for the request's filter query. It writes the error
// response itself and returns ok=false on failure; htmlErrors selects the
// partial-friendly error format.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request, htmlErrors bool) (cache.Session, core.Dashboard, bool) {
	fail := func(status int, msg string) {
		if htmlErrors {
			ErrorResponse(status, msg).Write(w)
		} else {
			JSONError(status, msg).Write(w)
		}
	}

	id := chi.URLParam(r, "id")
	sess, err := s.deps.Datasets.Get(id)
	if err != nil {
		fail(http.StatusNotFound, "dataset not found or expired, upload the file again")
		return cache.Session{}, core.Dashboard{}, false
	}

	fq, err := ParseFilterQuery(r.URL.Query())
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return cache.Session{}, core.Dashboard{}, false
	}

	d, err := core.Run(sess.Dataset.Records, fq.Params, core.RunOptions{Window: s.deps.Window, Rows: fq.Rows})
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return cache.Session{}, core.Dashboard{}, false
	}

	applog.FromContext(r.Context()).Debug("Dashboard computed",
		applog.FieldDatasetID, id,
		"points", len(d.Series),
		"visible", len(d.Visible),
		"summary_rows", len(d.Summary.Rows))
	return sess, d, true
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	sess, d, ok := s.dashboard(w, r, false)
	if !ok {
		return
	}
	NewHTMXResponse().JSON(newSeriesView(sess.ID, d, s.deps.Money)).Write(w)
}

func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	sess, d, ok := s.dashboard(w, r, false)
	if !ok {
		return
	}
	NewHTMXResponse().JSON(newSummaryView(sess.ID, d, s.deps.Money)).Write(w)
}

// handleSummary renders the period summary table partial.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, d, ok := s.dashboard(w, r, true)
	if !ok {
		return
	}
	s.render(w, r, "summary.html", newSummaryView(sess.ID, d, s.deps.Money))
}

// handleDelete drops an uploaded dataset before its TTL runs out.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Datasets.Delete(id) {
		JSONError(http.StatusNotFound, "dataset not found or expired").Write(w)
		return
	}
	applog.FromContext(r.Context()).Info("Dataset forgotten", applog.FieldDatasetID, id)
	NewHTMXResponse().
		Status(http.StatusNoContent).
		Trigger("dataset:cleared", map[string]string{"id": id}).
		Write(w)
}
