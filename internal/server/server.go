// Package server exposes the usage and stats layers as a JSON HTTP API.
// The dashboard rendering the data lives outside this service; handlers
// return data only, with display-side sorting and truncation applied at
// this boundary rather than inside the aggregation core.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/querypulse/querypulse/internal/events"
	"github.com/querypulse/querypulse/internal/stats"
	"github.com/querypulse/querypulse/internal/usage"
)

// Server is the HTTP API server.
type Server struct {
	store      events.Store
	aggregator *usage.Aggregator
	stats      *stats.Service
	logger     *slog.Logger
	port       int
	windowDays int
}

// Config holds configuration for the API server.
type Config struct {
	Store events.Store
	Port  int

	// WindowDays is the default usage lookback when the request does not
	// specify one. 0 means full history.
	WindowDays int

	// Workers is the aggregator's parallel shard count.
	Workers int

	Logger *slog.Logger
}

// New creates an API server. The stats layer is attached only when the
// store is Postgres-backed and exposes its raw handle; other stores get
// 501 responses on /api/stats routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		store:      cfg.Store,
		aggregator: usage.New(usage.Config{Logger: logger, Workers: cfg.Workers}),
		logger:     logger,
		port:       cfg.Port,
		windowDays: cfg.WindowDays,
	}

	if qs, ok := cfg.Store.(events.QueryableStore); ok && cfg.Store.Dialect() == events.DialectPostgres {
		s.stats = stats.New(qs.DB(), logger)
	}

	return s
}

// Routes builds the router. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/usage", s.handleUsage)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/visitors", s.handleVisitors)
			r.Get("/nps", s.handleNPS)
			r.Get("/top-users", s.handleTopUsers)
			r.Get("/engagement", s.handleEngagement)
			r.Get("/activity-by-hour", s.handleActivityByHour)
			r.Get("/conversations", s.handleConversations)
			r.Get("/retention", s.handleRetention)
			r.Get("/feedback-trend", s.handleFeedbackTrend)
			r.Get("/popular-questions", s.handlePopularQuestions)
		})

		r.Post("/events", s.handleLogEvent)

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", s.handleListFavorites)
			r.Post("/", s.handleSaveFavorite)
			r.Delete("/{id}", s.handleDeleteFavorite)
		})
	})

	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
