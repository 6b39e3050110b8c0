// Package server exposes question answering over HTTP with gin.
//
// Routes:
//
//	POST /api/query   answer a question from the indexed articles
//	GET  /api/stats   record counts per modality
//	GET  /healthz     liveness
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/newsrag/search"
	"github.com/poiesic/newsrag/storage"
)

const shutdownTimeout = 10 * time.Second

var (
	// ErrAnswererRequired is returned when a server is built without an answerer.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrStatsRequired is returned when a server is built without a stats source.
	ErrStatsRequired = errors.New("stats source required")
)

// StatsSource reports what the vector index holds.
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Server serves the query API.
type Server struct {
	answerer *search.Answerer
	stats    StatsSource
	grouped  bool
	logger   *slog.Logger
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithGrouped adds per-modality result groups to query responses.
func WithGrouped(grouped bool) Option {
	return func(s *Server) {
		s.grouped = grouped
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "server")
		}
	}
}

// New creates a server and registers its routes.
func New(answerer *search.Answerer, stats StatsSource, opts ...Option) (*Server, error) {
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	if stats == nil {
		return nil, ErrStatsRequired
	}

	s := &Server{
		answerer: answerer,
		stats:    stats,
		logger:   slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	s.registerRoutes(r)
	s.engine = r
	return s, nil
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api")
	api.POST("/query", s.handleQuery)
	api.GET("/stats", s.handleStats)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
