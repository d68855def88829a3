// Package api exposes the build queue over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/sitebuilder/internal/build/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// JobQueue is the part of the build queue the API drives.
type JobQueue interface {
	Enqueue(job *queue.BuildJob) error
	Cancel(id string) bool
	JobSnapshot(id string) (*queue.BuildJob, bool)
	Jobs() []*queue.BuildJob
	Length() int
}

// EventReader returns the stored lifecycle events of one build.
type EventReader interface {
	GetByBuildID(ctx context.Context, buildID string) ([]eventstore.Event, error)
}

// HistoryReader returns summarized build history.
type HistoryReader interface {
	GetHistory() []eventstore.BuildSummary
}

// SiteLookup resolves a configured site by domain.
type SiteLookup func(domain string) (config.SiteEntry, bool)

// Options wires the server's collaborators. Queue and Sites are required.
type Options struct {
	Queue           JobQueue
	Sites           SiteLookup
	Events          EventReader
	History         HistoryReader
	Metrics         http.Handler
	MetricsPath     string
	BuildsPerMinute int
	Logger          *slog.Logger
}

// Server represents the API server.
type Server struct {
	Addr     string
	router   *chi.Mux
	server   *http.Server
	opts     Options
	logger   *slog.Logger
	errors   *errors.HTTPErrorAdapter
	newJobID func() string
}

// NewServer creates a new API server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		Addr:     addr,
		router:   chi.NewRouter(),
		opts:     opts,
		logger:   logger,
		errors:   errors.NewHTTPErrorAdapter(logger),
		newJobID: newJobID,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/builds", func(r chi.Router) {
		r.With(s.buildRateLimit()).Post("/", s.handleCreateBuild)
		r.Get("/", s.handleListBuilds)
		r.Get("/{id}", s.handleGetBuild)
		r.Delete("/{id}", s.handleCancelBuild)
		r.Get("/{id}/events", s.handleBuildEvents)
	})
	s.router.Get("/history", s.handleHistory)

	if s.opts.Metrics != nil {
		s.router.Method(http.MethodGet, s.opts.MetricsPath, s.opts.Metrics)
	}
}

// buildRateLimit throttles build submissions when BuildsPerMinute is set.
func (s *Server) buildRateLimit() func(http.Handler) http.Handler {
	if s.opts.BuildsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.opts.BuildsPerMinute)), s.opts.BuildsPerMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "60")
				s.Error(w, http.StatusTooManyRequests, "build rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, Response{Success: true, Data: data})
}

// fail maps a classified error to its status code and writes the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := s.errors.StatusCodeFor(err)
	payload := s.errors.FormatErrorResponse(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "API request failed",
		slog.String("path", r.URL.Path), slog.Int("status", status),
		slog.String("category", string(errors.GetCategory(err))), slog.String("error", err.Error()))
	s.Error(w, status, payload.Error)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.Success(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"queued": s.opts.Queue.Length(),
	})
}
