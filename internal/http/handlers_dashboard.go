package http

import (
	"errors"
	"net/http"
	"strconv"

	applog "costdash/internal/log"
	"costdash/internal/services"
)

const defaultUploadsLimit = 20

type indexData struct {
	WindowFrom     string
	WindowTo       string
	Currency       string
	ImportEnabled  bool
	AuditEnabled   bool
	MaxUploadBytes int64
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", indexData{
		WindowFrom:     s.deps.Window.From.String(),
		WindowTo:       s.deps.Window.To.String(),
		Currency:       s.deps.Money.Symbol,
		ImportEnabled:  s.deps.Source != nil,
		AuditEnabled:   s.deps.Uploads != nil && s.deps.Uploads.Enabled(),
		MaxUploadBytes: s.deps.MaxUploadBytes,
	})
}

// handleUploads lists recent upload metadata: an HTML partial for htmx
// requests, JSON otherwise.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	htmx := r.Header.Get("HX-Request") == "true"

	limit := defaultUploadsLimit
	if v := sanitizeInput(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			JSONError(http.StatusBadRequest, "limit must be between 1 and 200").Write(w)
			return
		}
		limit = n
	}

	if s.deps.Uploads == nil {
		s.writeUploads(w, r, htmx, nil, services.ErrAuditDisabled)
		return
	}
	metas, err := s.deps.Uploads.Recent(r.Context(), limit)
	s.writeUploads(w, r, htmx, newUploadViews(metas), err)
}

func (s *Server) writeUploads(w http.ResponseWriter, r *http.Request, htmx bool, uploads []uploadView, err error) {
	disabled := errors.Is(err, services.ErrAuditDisabled)
	if err != nil && !disabled {
		applog.LogError(r.Context(), "List uploads failed", err, applog.OpList, nil)
		if htmx {
			InternalServerError("Could not load upload history").Write(w)
		} else {
			JSONError(http.StatusInternalServerError, "could not load upload history").Write(w)
		}
		return
	}

	if htmx {
		s.render(w, r, "uploads.html", struct {
			Disabled bool
			Uploads  []uploadView
		}{disabled, uploads})
		return
	}
	if disabled {
		JSONError(http.StatusNotFound, services.ErrAuditDisabled.Error()).Write(w)
		return
	}
	if uploads == nil {
		uploads = []uploadView{}
	}
	NewHTMXResponse().JSON(map[string]any{"uploads": uploads}).Write(w)
}
