// Package api exposes the conversion pipeline over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/planbiir/trackconv/internal/metrics"
	"github.com/planbiir/trackconv/internal/pipeline"
)

// Server is the HTTP API server for trackconv.
type Server struct {
	router    chi.Router
	runner    *pipeline.Runner
	log       *slog.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	maxUpload int64
}

// NewServer creates and configures the HTTP server. gatherer may be nil to
// disable /metrics.
func NewServer(runner *pipeline.Runner, log *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer, maxUploadBytes int64) *Server {
	s := &Server{
		runner:    runner,
		log:       log,
		metrics:   m,
		gatherer:  gatherer,
		maxUpload: maxUploadBytes,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Post("/v1/convert", s.handleConvert)
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
