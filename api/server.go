// Package api exposes scraper control, per-user persistence and collection
// filtering over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"melhor-casa/utils"
)

// Server is the REST API server.
type Server struct {
	httpServer *http.Server
	logger     *utils.Logger
}

// NewRouter wires every route onto a chi router.
func NewRouter(h *Handler, logger *utils.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Trace-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/scraper", func(r chi.Router) {
		r.Post("/start", h.StartScraper)
		r.Post("/stop", h.StopScraper)
		r.Get("/status", h.ScraperStatus)
		r.Post("/import", h.ImportScraped)
	})

	r.Route("/api/user/{userId}", func(r chi.Router) {
		r.Get("/data", h.GetUserData)
		r.Post("/data", h.SaveUserData)
		r.Post("/liked", h.AddLiked)
		r.Post("/disliked", h.AddDisliked)
		r.Post("/cofrinho", h.AddCofrinho)
	})

	r.Post("/api/properties/filter", h.FilterProperties)

	return r
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, handler http.Handler, logger *utils.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("[api] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: listen: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("[api] Shutting down")
	return s.httpServer.Shutdown(ctx)
}
