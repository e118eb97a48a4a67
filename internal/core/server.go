package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dealbase/internal/config"
)

// RouteMounter registers a group of routes on a chi router. Domain handler
// packages implement it so route registration stays with the handlers.
type RouteMounter interface {
	Mount(r chi.Router)
}

// Server bundles the chassis dependencies: configuration, logging,
// validation, and authentication. Domain handlers are mounted onto its
// router; the server itself knows nothing about billing semantics.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Authenticator Authenticator

	router     *chi.Mux
	closeHooks []func(context.Context) error
}

// NewServer creates the server chassis. Fails fast on missing dependencies.
func NewServer(cfg *config.Config, logger *slog.Logger, authenticator Authenticator) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator must not be nil")
	}

	return &Server{
		Config:        cfg,
		Logger:        logger,
		Validator:     NewValidator(logger),
		Authenticator: authenticator,
		router:        chi.NewRouter(),
	}, nil
}

// MountRoutes installs the middleware chain and registers route groups.
// authenticated routes run behind AuthMiddleware; public routes (webhook
// ingestion, health, admin with its own key check) do not.
func (s *Server) MountRoutes(public RouteMounter, authenticated RouteMounter) {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))

	s.router.Route("/v1", func(r chi.Router) {
		if public != nil {
			public.Mount(r)
		}
		if authenticated != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.AuthMiddleware)
				authenticated.Mount(r)
			})
		}
	})
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a hook to run during Shutdown, in registration order.
func (s *Server) OnShutdown(hook func(context.Context) error) {
	s.closeHooks = append(s.closeHooks, hook)
}

// Shutdown runs the registered close hooks. The first failure is returned
// but all hooks run regardless.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var firstErr error
	for _, hook := range s.closeHooks {
		if err := hook(ctx); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.Logger.Info("server shutdown complete")
	return firstErr
}
