// Package api exposes the leaderboard over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"clicky-game/internal/config"
	"clicky-game/internal/metrics"
)

// NewRouter builds the HTTP routes:
//
//	GET  /api/leaderboard        list entries
//	GET  /api/leaderboard/entry/{name}
//	POST /api/leaderboard        submit a score (rate limited)
//	POST /api/leaderboard/reset  reseed the board (bearer token when configured)
//	GET  /healthz
//	GET  /metrics
func NewRouter(cfg config.ServerConfig, resetToken string, h *Handler, m *metrics.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(m))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	limit := RateLimit(rate.Limit(cfg.SubmitRate), cfg.SubmitBurst, m)
	r.Route("/api/leaderboard", func(r chi.Router) {
		r.Use(CORSMiddleware(cfg.AllowedOrigins))

		r.Get("/", h.GetLeaderboard)
		r.Get("/entry/{name}", h.GetEntry)
		r.With(limit).Post("/", h.SubmitScore)
		r.With(RequireBearer(resetToken)).Post("/reset", h.ResetLeaderboard)
	})

	return r
}

// Server runs the leaderboard HTTP service.
type Server struct {
	cfg    config.ServerConfig
	server *http.Server
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	log.Info().Msg("HTTP server stopped")
	return nil
}
