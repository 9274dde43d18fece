// Package api serves the kernel's read operations over HTTP.
//
// Every route is a GET: writes go through the CLI, where the caller sees
// the full error taxonomy.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/golfkpi/internal/classify"
	"github.com/roach88/golfkpi/internal/kernel"
	"github.com/roach88/golfkpi/internal/lifecycle"
	"github.com/roach88/golfkpi/internal/metrics"
	"github.com/roach88/golfkpi/internal/store"
)

// Server routes HTTP requests to the store and the round service.
type Server struct {
	store      *store.Store
	rounds     *lifecycle.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	thresholds classify.Thresholds
	router     chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// WithThresholds sets the cutoffs used for club statistics.
func WithThresholds(th classify.Thresholds) Option { return func(s *Server) { s.thresholds = th } }

// New builds a Server and its routes.
func New(st *store.Store, rounds *lifecycle.Service, opts ...Option) *Server {
	s := &Server{
		store:      st,
		rounds:     rounds,
		logger:     slog.Default(),
		thresholds: classify.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Get("/{hash}", s.handleGetTemplate)
	})
	r.Get("/snapshots/{hash}", s.handleGetSnapshot)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Get("/subsessions/{club}/{template}", s.handleGetSubSession)
	})
	r.Route("/rounds/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetRound)
		r.Get("/scores", s.handleRoundScores)
		r.Get("/scorecard", s.handleScorecard)
	})
	r.Get("/stats/clubs", s.handleClubStats)

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps the kernel taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, "internal"
	switch {
	case kernel.IsNotFound(err):
		status, kind = http.StatusNotFound, "not_found"
	case kernel.IsValidation(err):
		status, kind = http.StatusBadRequest, "validation"
	case kernel.IsOrderingAmbiguity(err), kernel.IsHashMismatch(err):
		status, kind = http.StatusConflict, "integrity"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}
