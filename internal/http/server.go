package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"costdash/internal/cache"
	"costdash/internal/core"
	applog "costdash/internal/log"
	"costdash/internal/middleware/ratelimit"
	"costdash/internal/middleware/security"
	"costdash/internal/middleware/trace"
	"costdash/internal/services"
	"costdash/internal/sheets"
	appweb "costdash/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators of the dashboard server. Uploads, Source and
// Limiter may be nil.
type Deps struct {
	Logger   *applog.Logger
	Datasets *cache.DatasetStore
	Uploads  *services.UploadService
	Source   sheets.CostReader
	Limiter  *ratelimit.Limiter

	Window         core.DisplayWindow
	Money          core.CurrencyFormat
	MaxUploadBytes int64

	// Ready is consulted by /readyz in addition to the template check.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	deps      Deps
	logger    *applog.Logger
	templates *template.Template
	tracer    *trace.Middleware
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Datasets == nil {
		deps.Datasets = cache.NewDatasetStore(32, 2*time.Hour)
	}
	if deps.Money.Symbol == "" {
		deps.Money = core.Rupiah
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}

	s := &Server{
		deps:   deps,
		logger: deps.Logger.WithComponent(applog.ComponentHTTP),
		tracer: trace.NewMiddleware(deps.Logger, nil),
	}

	t, err := template.New("").Funcs(template.FuncMap{
		"mb": func(n int64) int64 { return n >> 20 },
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Get("/uploads", s.handleUploads)

	r.Route("/datasets", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.Limiter != nil {
				r.Use(deps.Limiter.Middleware(clientKey, s.onRateLimited))
			}
			r.Post("/", s.handleUpload)
			r.Post("/import", s.handleImport)
		})
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/series", s.handleSeries)
			r.Get("/summary", s.handleSummary)
			r.Get("/summary.json", s.handleSummaryJSON)
			r.Delete("/", s.handleDelete)
		})
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Limiter != nil {
		s.deps.Limiter.Stop()
	}
	return s.Server.Shutdown(ctx)
}

// Metrics exposes the request counters of the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// clientKey keys rate limiting on the address chi's RealIP resolved.
func clientKey(r *http.Request) string {
	return r.RemoteAddr
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).Warn("Rate limit exceeded",
		applog.FieldClientIP, r.RemoteAddr,
		applog.FieldPath, r.URL.Path)
	JSONError(http.StatusTooManyRequests, "rate limit exceeded, try again later").
		TriggerWarningNotification("Too many uploads, wait a minute").
		Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// render executes a named template, answering 500 when templates are
// missing or fail.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		applog.FromContext(r.Context()).Error("Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		applog.LogError(r.Context(), "Template execution failed", err, applog.OpRender,
			applog.NewFields().With("template", name))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

var errNoSource = errors.New("no import source configured")
