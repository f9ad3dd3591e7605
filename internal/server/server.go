// Package server wires the HTTP surface: router, middleware, handlers
// and the dependency chain behind them. It is the composition root;
// main.go only loads config and calls Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/trustful/badge-registry/internal/auth"
	"github.com/trustful/badge-registry/internal/config"
	"github.com/trustful/badge-registry/internal/handler"
	"github.com/trustful/badge-registry/internal/middleware"
	sqliteRepo "github.com/trustful/badge-registry/internal/repository/sqlite"
	"github.com/trustful/badge-registry/internal/service"
)

// Server owns the router and the resources behind it. The database
// connection is closed last during shutdown, after in-flight requests
// have drained.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the whole dependency chain: database, code registry
// with the builtin contracts, services, token service, handlers,
// routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	challenges := auth.NewChallengeStore()

	codes := service.NewCodeRegistry()
	factoryCode, _ := service.RegisterBuiltin(codes)

	deployerService := service.NewDeployerService(s.db, codes, s.logger)
	factoryService := service.NewFactoryService(s.db, codes, deployerService, s.logger)
	scorerService := service.NewScorerService(s.db, codes, s.logger)
	eventService := service.NewEventService(s.db)

	authHandler := handler.NewAuthHandler(challenges, tokens, s.logger)
	deployHandler := handler.NewDeployHandler(deployerService, factoryCode, s.logger)
	factoryHandler := handler.NewFactoryHandler(factoryService, s.logger)
	scorerHandler := handler.NewScorerHandler(scorerService, s.logger)
	eventsHandler := handler.NewEventsHandler(eventService, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/challenge", authHandler.HandleChallenge)
		r.Post("/token", authHandler.HandleToken)
	})

	s.router.Route("/api", func(r chi.Router) {
		// Reads are public.
		r.Get("/factories/{addr}", factoryHandler.HandleGet)
		r.Get("/factories/{addr}/scorers", factoryHandler.HandleListScorers)
		r.Get("/factories/{addr}/managers/{manager}", factoryHandler.HandleIsManager)
		r.Get("/scorers/{addr}", scorerHandler.HandleGet)
		r.Get("/scorers/{addr}/badges", scorerHandler.HandleListBadges)
		r.Get("/scorers/{addr}/users", scorerHandler.HandleListUsers)
		r.Get("/instances/{addr}/events", eventsHandler.HandleList)

		// Mutations require an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller(tokens))

			r.Post("/deploy", deployHandler.HandleDeploy)
			r.Post("/factories", deployHandler.HandleCreateFactory)
			r.Post("/factories/{addr}/scorers", factoryHandler.HandleCreateScorer)
			r.Delete("/factories/{addr}/scorers/{scorer}", factoryHandler.HandleRemoveScorer)
			r.Post("/factories/{addr}/managers", factoryHandler.HandleAddManager)
			r.Delete("/factories/{addr}/managers/{manager}", factoryHandler.HandleRemoveManager)

			r.Post("/scorers/{addr}/badges", scorerHandler.HandleAddBadge)
			r.Delete("/scorers/{addr}/badges", scorerHandler.HandleRemoveBadge)
			r.Post("/scorers/{addr}/users", scorerHandler.HandleAddUser)
			r.Delete("/scorers/{addr}/users/{user}", scorerHandler.HandleRemoveUser)
			r.Post("/scorers/{addr}/managers", scorerHandler.HandleAddManager)
			r.Delete("/scorers/{addr}/managers/{manager}", scorerHandler.HandleRemoveManager)
			r.Post("/scorers/{addr}/upgrade", scorerHandler.HandleUpgrade)
		})
	})

	return nil
}

// Router exposes the assembled handler chain for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the server's resources without serving. Tests that
// only exercise the router use this instead of Start.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
