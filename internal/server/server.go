package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/config"
	"github.com/portfolify/shipd/internal/connectivity"
	"github.com/portfolify/shipd/internal/job"
	"github.com/portfolify/shipd/internal/logstream"
)

type Server struct {
	cfg       *config.Config
	service   *job.Service
	store     *job.Store
	hub       *logstream.Hub
	tester    connectivity.Tester
	httpSrv   *http.Server
	startTime time.Time
}

func New(cfg *config.Config, svc *job.Service, store *job.Store, hub *logstream.Hub, tester connectivity.Tester) *Server {
	return &Server{
		cfg:       cfg,
		service:   svc,
		store:     store,
		hub:       hub,
		tester:    tester,
		startTime: time.Now(),
	}
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware)

	// Unauthenticated
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.With(s.streamAuthMiddleware).Get("/deployments/{id}/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/deploy", s.handleProviders)
			r.Post("/deploy", s.handleDeploy)
			r.Put("/deploy", s.handleTestConnection)

			r.Get("/deployments", s.handleListDeployments)
			r.Post("/deployments", s.handleSubmit)
			r.Get("/deployments/{id}", s.handleGetDeployment)
			r.Delete("/deployments/{id}", s.handleCancel)

			r.Post("/download-portfolio", s.handleDownload)
		})
	})

	return r
}

func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:        s.cfg.Server.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Synchronous deploys hold the response open for the whole plan.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	zap.S().Infof("shipd listening on %s (dev=%v)", s.cfg.Server.Listen, s.cfg.Dev)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
