package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"costdash/internal/cache"
	"costdash/internal/core"
	"costdash/internal/ingest"
	applog "costdash/internal/log"
	"costdash/internal/middleware/ratelimit"
	"costdash/internal/services"
	"costdash/internal/sheets/memory"
)

const sampleCSV = "DATE,WBS,COST CODE,AMOUNT\n" +
	"2023-03-05,A,C1,1000\n" +
	"2023-03-20,A,C1,500\n" +
	"2023-04-02,B,C2,250.5\n" +
	"2023-02-10,A,C1,100\n" +
	"not a date,A,C1,999\n"

type fakeAudit struct {
	mu   sync.Mutex
	rows []core.UploadMeta
	err  error
}

func (f *fakeAudit) RecordUpload(_ context.Context, m core.UploadMeta) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append([]core.UploadMeta{m}, f.rows...)
	return true, nil
}

func (f *fakeAudit) ListRecentUploads(_ context.Context, limit int) ([]core.UploadMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeAudit) Close() error { return nil }

type failingSource struct{ err error }

func (f failingSource) ReadCosts(context.Context) (ingest.Dataset, error) {
	return ingest.Dataset{}, f.err
}

func testDeps() Deps {
	return Deps{
		Logger:   applog.New(applog.Config{Component: "test", Handler: applog.NewTextHandler(io.Discard, slog.LevelDebug)}),
		Datasets: cache.NewDatasetStore(8, time.Hour),
		Window:   core.DisplayWindow{From: core.NewDate(2023, 3, 1), To: core.NewDate(2023, 10, 31)},
		Money:    core.Rupiah,
	}
}

func newTestServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()
	deps := testDeps()
	if mutate != nil {
		mutate(&deps)
	}
	return NewServer(":0", deps)
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = fw.Write([]byte(content))
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/datasets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, srv *Server) datasetView {
	t.Helper()
	rr := do(t, srv, uploadRequest(t, "costs.csv", sampleCSV))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload status=%d body=%s", rr.Code, rr.Body.String())
	}
	var ds datasetView
	if err := json.Unmarshal(rr.Body.Bytes(), &ds); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	return ds
}

func TestIndexHealthAndStatic(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Cost Dashboard") || !strings.Contains(rr.Body.String(), "2023-03-01") {
		t.Fatalf("index body missing heading or window")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("security headers not applied")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/app.js", "/static/style.css"} {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	notReady := newTestServer(t, func(d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db down") }
	})
	if rr := do(t, notReady, httptest.NewRequest(http.MethodGet, "/readyz", nil)); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rr.Code)
	}
}

func TestUpload(t *testing.T) {
	audit := &fakeAudit{}
	srv := newTestServer(t, func(d *Deps) {
		d.Uploads = services.NewUploadService(audit, nil)
	})

	rr := do(t, srv, uploadRequest(t, "costs.csv", sampleCSV))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, part := range []string{`"dataset:loaded"`, `"uploads:refresh"`, `"type":"warning"`} {
		if !strings.Contains(trigger, part) {
			t.Errorf("HX-Trigger missing %s: %s", part, trigger)
		}
	}

	var ds datasetView
	if err := json.Unmarshal(rr.Body.Bytes(), &ds); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ds.ID == "" || ds.Records != 4 || ds.SkippedDates != 1 {
		t.Fatalf("unexpected dataset %+v", ds)
	}
	if ds.Start != "2023-02-10" || ds.End != "2023-04-02" {
		t.Errorf("range = %s..%s", ds.Start, ds.End)
	}
	if strings.Join(ds.WBS, ",") != "A,B" || strings.Join(ds.CostCodes, ",") != "C1,C2" {
		t.Errorf("categories = %v %v", ds.WBS, ds.CostCodes)
	}
	if len(audit.rows) != 1 || audit.rows[0].DatasetID != ds.ID || audit.rows[0].Records != 4 {
		t.Errorf("audit rows = %+v", audit.rows)
	}
}

func TestUploadErrors(t *testing.T) {
	srv := newTestServer(t, func(d *Deps) { d.MaxUploadBytes = 2048 })

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantBody   string
	}{
		{
			name:       "unsupported extension",
			req:        uploadRequest(t, "costs.pdf", "%PDF"),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "legacy excel workbook",
			req:        uploadRequest(t, "costs.xls", "\xd0\xcf\x11\xe0"),
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "missing columns",
			req:        uploadRequest(t, "costs.csv", "DATE,WBS\n2023-03-01,A\n"),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"missing":["COST CODE","AMOUNT"]`,
		},
		{
			name:       "too large",
			req:        uploadRequest(t, "costs.csv", sampleCSV+strings.Repeat("2023-03-05,A,C1,1\n", 200)),
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "not multipart",
			req:        httptest.NewRequest(http.MethodPost, "/datasets", strings.NewReader("x=1")),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.req)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body %s missing %s", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSeries(t *testing.T) {
	srv := newTestServer(t, nil)
	ds := upload(t, srv)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID+"/series", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var v seriesView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Window.From != "2023-03-01" || v.Window.To != "2023-10-31" {
		t.Errorf("window = %+v", v.Window)
	}
	if len(v.Lines) != 2 || v.Lines[0].WBS != "A" || v.Lines[1].WBS != "B" {
		t.Fatalf("lines = %+v", v.Lines)
	}

	a := v.Lines[0]
	if len(a.Points) != 2 {
		t.Fatalf("A should have the two points inside the window, got %+v", a.Points)
	}
	if a.Points[0].X != "2023-03-05" || a.Points[0].Y != 1100 {
		t.Errorf("first visible point carries earlier costs: %+v", a.Points[0])
	}
	if a.Annotation == nil || a.Annotation.Label != "Rp 1.600" || !a.Annotation.InWindow {
		t.Errorf("A annotation = %+v", a.Annotation)
	}
	if b := v.Lines[1]; b.Annotation == nil || b.Annotation.Label != "Rp 250" {
		t.Errorf("B annotation = %+v", b.Annotation)
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID+"/series?wbs=", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(v.Lines) != 0 {
		t.Errorf("empty selection should yield no lines, got %+v", v.Lines)
	}
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t, nil)
	ds := upload(t, srv)
	base := "/datasets/" + ds.ID

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, base+"/summary.json?start=2023-03-01&end=2023-03-31", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var v summaryView
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(v.Rows) != 1 {
		t.Fatalf("rows = %+v", v.Rows)
	}
	row := v.Rows[0]
	if row.WBS != "A" || row.Previous != "100" || row.Current != "1500" || row.NextFormatted != "Rp 0" {
		t.Errorf("row = %+v", row)
	}
	if v.Total.WBS != core.TotalLabel || v.Total.CurrentFormatted != "Rp 1.500" {
		t.Errorf("total = %+v", v.Total)
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/summary.json?start=2023-03-01&end=2023-03-31&rows=any", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(v.Rows) != 2 || v.Total.Next != "250.5" {
		t.Errorf("any-window rows = %+v total = %+v", v.Rows, v.Total)
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, base+"/summary?start=2023-03-01&end=2023-03-31", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("partial status=%d", rr.Code)
	}
	html := rr.Body.String()
	for _, want := range []string{"Rp 1.500", "Rp 100", "Total"} {
		if !strings.Contains(html, want) {
			t.Errorf("partial missing %q", want)
		}
	}
}

func TestDashboardErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	ds := upload(t, srv)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/datasets/unknown/series", http.StatusNotFound},
		{"/datasets/unknown/summary", http.StatusNotFound},
		{"/datasets/" + ds.ID + "/series?start=bad", http.StatusBadRequest},
		{"/datasets/" + ds.ID + "/summary.json?start=2023-05-01&end=2023-04-01", http.StatusBadRequest},
		{"/datasets/" + ds.ID + "/summary.json?rows=maybe", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.wantStatus {
			t.Errorf("%s status=%d want %d", tt.path, rr.Code, tt.wantStatus)
		}
	}
}

func TestDeleteDataset(t *testing.T) {
	srv := newTestServer(t, nil)
	ds := upload(t, srv)

	rr := do(t, srv, httptest.NewRequest(http.MethodDelete, "/datasets/"+ds.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "dataset:cleared") {
		t.Errorf("HX-Trigger = %q", rr.Header().Get("HX-Trigger"))
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID+"/series", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("series after delete status=%d", rr.Code)
	}

	rr = do(t, srv, httptest.NewRequest(http.MethodDelete, "/datasets/"+ds.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d", rr.Code)
	}
}

func TestImport(t *testing.T) {
	parsed, err := ingest.ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}

	srv := newTestServer(t, func(d *Deps) { d.Source = memory.New(parsed) })
	rr := do(t, srv, httptest.NewRequest(http.MethodPost, "/datasets/import", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var ds datasetView
	_ = json.Unmarshal(rr.Body.Bytes(), &ds)
	if ds.Source != "memory" || ds.Records != 4 {
		t.Errorf("dataset = %+v", ds)
	}

	none := newTestServer(t, nil)
	if rr := do(t, none, httptest.NewRequest(http.MethodPost, "/datasets/import", nil)); rr.Code != http.StatusNotImplemented {
		t.Errorf("no source status=%d", rr.Code)
	}

	broken := newTestServer(t, func(d *Deps) { d.Source = failingSource{err: errors.New("quota exceeded")} })
	if rr := do(t, broken, httptest.NewRequest(http.MethodPost, "/datasets/import", nil)); rr.Code != http.StatusBadGateway {
		t.Errorf("failing source status=%d", rr.Code)
	}

	schema := newTestServer(t, func(d *Deps) {
		d.Source = failingSource{err: &ingest.SchemaError{Missing: []string{"AMOUNT"}}}
	})
	if rr := do(t, schema, httptest.NewRequest(http.MethodPost, "/datasets/import", nil)); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("schema error status=%d", rr.Code)
	}
}

func TestUploads(t *testing.T) {
	audit := &fakeAudit{}
	srv := newTestServer(t, func(d *Deps) { d.Uploads = services.NewUploadService(audit, nil) })
	ds := upload(t, srv)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/uploads", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var body struct {
		Uploads []uploadView `json:"uploads"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Uploads) != 1 || body.Uploads[0].DatasetID != ds.ID || body.Uploads[0].File != "costs.csv" {
		t.Fatalf("uploads = %+v", body.Uploads)
	}

	req := httptest.NewRequest(http.MethodGet, "/uploads", nil)
	req.Header.Set("HX-Request", "true")
	rr = do(t, srv, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "costs.csv") {
		t.Fatalf("partial status=%d body=%s", rr.Code, rr.Body.String())
	}

	if rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/uploads?limit=0", nil)); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status=%d", rr.Code)
	}

	audit.err = errors.New("disk full")
	if rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/uploads", nil)); rr.Code != http.StatusInternalServerError {
		t.Errorf("failing audit status=%d", rr.Code)
	}

	disabled := newTestServer(t, nil)
	if rr := do(t, disabled, httptest.NewRequest(http.MethodGet, "/uploads", nil)); rr.Code != http.StatusNotFound {
		t.Errorf("disabled status=%d", rr.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1})
	srv := newTestServer(t, func(d *Deps) { d.Limiter = limiter })
	defer srv.Shutdown(context.Background())

	upload(t, srv)
	rr := do(t, srv, uploadRequest(t, "costs.csv", sampleCSV))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}

	if got := srv.Metrics().TotalRequests; got != 2 {
		t.Errorf("TotalRequests = %d, want 2", got)
	}
}
