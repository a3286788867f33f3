package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/srakestraw/gravyty-enablement-sub006/internal/api/handlers"
	appMiddleware "github.com/srakestraw/gravyty-enablement-sub006/internal/api/middlewares"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/config"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/core"
	"github.com/srakestraw/gravyty-enablement-sub006/internal/pkg/logger"
)

// Server wraps the ops HTTP surface: health plus the document status API.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.DocumentStore, publisher handlers.ReindexPublisher, log *logger.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(store, publisher, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWT(cfg.JWTSecret))
			protected.Get("/documents/{id}", docHandler.GetDocument)
			protected.Post("/documents/{id}/reingest", docHandler.Reingest)
		})
	})

	return &Server{
		httpServer: &http.Server{Addr: ":" + cfg.Port, Handler: r},
		log:        log.With("component", "Server"),
	}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	s.log.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Fatal("server error", "error", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
