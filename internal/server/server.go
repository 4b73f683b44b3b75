// Package server exposes the script engines and the script store over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zenoscript/internal/app"
	"zenoscript/pkg/logger"
	"zenoscript/pkg/metrics"
	"zenoscript/pkg/middleware"
)

// maxBody caps request bodies on the API routes.
const maxBody = 1 << 20

type Server struct {
	app *app.App
	log *slog.Logger
}

func New(a *app.App) *Server {
	return &Server{app: a, log: a.Log.With("component", "server")}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() *chi.Mux {
	cfg := s.app.Config

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(logger.RequestLogger(s.log))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer(!cfg.IsProduction()))
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	if len(cfg.BlockedIPs) > 0 {
		r.Use(middleware.NewIPBlockList(cfg.BlockedIPs...).Middleware)
	}

	if cfg.RateRequests > 0 {
		r.Use(httprate.LimitByIP(cfg.RateRequests, cfg.RateWindow))
	} else {
		s.log.Info("rate limiting disabled (RATE_LIMIT_REQUESTS not set)")
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: origins[0] != "*",
		MaxAge:           300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(middleware.BearerAuth([]byte(cfg.JWTSecret)))
		}
		r.Use(limitBody)

		r.Get("/engines", s.engines)
		r.Post("/eval", s.eval)
		if s.app.Store != nil {
			r.Get("/scripts", s.listScripts)
			r.Route("/scripts/{name}", func(r chi.Router) {
				r.Get("/", s.getScript)
				r.Put("/", s.putScript)
				r.Delete("/", s.deleteScript)
				r.Post("/run", s.runScript)
				r.Post("/invoke/{fn}", s.invokeScript)
			})
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.app.Config.Port
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server ready", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		next.ServeHTTP(w, r)
	})
}
