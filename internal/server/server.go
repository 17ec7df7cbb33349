// Package server provides the HTTP API for bookrec.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/bookrec/internal/config"
	"github.com/hyperjump/bookrec/internal/indexer"
	"github.com/hyperjump/bookrec/internal/search"
)

// Rebuilder rebuilds the index from the data path.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*indexer.BuildReport, error)
}

// Server is the HTTP server for the recommendation API.
type Server struct {
	engine    *search.Engine
	rebuilder Rebuilder
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server. rebuilder may be nil, which disables
// POST /api/v1/rebuild.
func NewServer(engine *search.Engine, rebuilder Rebuilder, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    engine,
		rebuilder: rebuilder,
		config:    cfg,
		logger:    logger,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommendations/{id}", s.handleRecommendations)
		r.Get("/recommendations/{id}/range", s.handleRange)
		r.Post("/query", s.handleQuery)
		r.Get("/books", s.handleFindBooks)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
