package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Component: ComponentHTTP, Handler: NewTextHandler(buf, slog.LevelDebug)})
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)
	l.Info("hello", FieldDatasetID, "ds-1")

	out := buf.String()
	if strings.Count(out, "component=http") != 1 || !strings.Contains(out, "dataset_id=ds-1") {
		t.Errorf("unexpected output %q", out)
	}

	child := l.With(FieldRequestID, "r1")
	if child.Component() != ComponentHTTP {
		t.Errorf("With() changed component to %q", child.Component())
	}
	if l.WithComponent(ComponentDataset).Component() != ComponentDataset {
		t.Error("WithComponent() did not switch component")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf)

	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("expected fallback logger")
	}

	var got *Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		LogError(r.Context(), "upload failed", errors.New("boom"), OpUpload, NewFields().With(FieldFile, "a.csv"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got != l {
		t.Error("middleware did not store the logger")
	}
	out := buf.String()
	for _, want := range []string{"error=boom", "operation=upload", "file=a.csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
