// Package server exposes the extraction trigger and run listing over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unitflow/unitflow/internal/batch"
	"github.com/unitflow/unitflow/internal/repository"
	"github.com/unitflow/unitflow/internal/runs"
)

type Server struct {
	addr   string
	logger *slog.Logger
	http   *http.Server
}

// New wires the HTTP surface: extraction trigger, run listing, batch grade.
func New(addr string, svc *runs.Service, store repository.Store, orch *batch.Orchestrator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{svc: svc, store: store, orch: orch, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/submissions/{id}/extract", h.extract)
		r.Get("/submissions/{id}/runs", h.listRuns)
		r.Post("/batch/grade", h.batchGrade)
	})

	return &Server{
		addr:   addr,
		logger: logger,
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the routed mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.addr)
	err := s.http.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.http.Shutdown(ctx)
}
