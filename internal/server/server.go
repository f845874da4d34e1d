// Package server wires the application together: router, middleware,
// handlers, and the background loops.
//
// This is the composition root. main creates the external collaborators
// (identity provider client, mail sender) and hands them to New; New owns
// everything internal — the database, the service layer, the dispatcher,
// the reconciler — and Start manages their lifecycle alongside the HTTP
// listener.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/dmejias/account-service/internal/auth"
	"github.com/dmejias/account-service/internal/config"
	"github.com/dmejias/account-service/internal/handler"
	"github.com/dmejias/account-service/internal/identity"
	"github.com/dmejias/account-service/internal/mail"
	"github.com/dmejias/account-service/internal/middleware"
	sqliteRepo "github.com/dmejias/account-service/internal/repository/sqlite"
	"github.com/dmejias/account-service/internal/service"
)

// Server holds the router, the database it owns, and the background loops
// it runs while serving.
type Server struct {
	router     *chi.Mux
	config     config.Config
	logger     *slog.Logger
	db         *sqliteRepo.DB
	dispatcher *mail.Dispatcher
	reconciler *service.Reconciler
}

// New assembles the full dependency chain:
//
//	sqlite.DB → ProfileRepository / OutboxRepository
//	          → AccountService (with the injected identity.Provider)
//	          → AccountHandler → routes
//	          → mail.Dispatcher (with the injected mail.Sender)
//	          → service.Reconciler
//
// The handler never touches the database; the service never touches HTTP.
func New(cfg config.Config, logger *slog.Logger, provider identity.Provider, sender mail.Sender) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// db implements both repository interfaces.
	accounts := service.NewAccountService(db, db, provider, auth.NewPasswordService(), logger)

	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		logger:     logger,
		db:         db,
		dispatcher: mail.NewDispatcher(db, sender, logger, cfg.OutboxInterval, cfg.OutboxBatchSize, cfg.OutboxMaxAttempts),
		reconciler: service.NewReconciler(db, provider, logger, cfg.ReconcileInterval, cfg.ReconcileGrace),
	}

	s.setupRoutes(accounts)
	return s, nil
}

// setupRoutes configures middleware and the API routes. Middleware order:
// RequestID, RealIP, Recoverer, request logging, CORS.
func (s *Server) setupRoutes(accounts *service.AccountService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	accountHandler := handler.NewAccountHandler(accounts, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", accountHandler.HandleRegister)
		r.Post("/login", accountHandler.HandleLogin)
		r.Get("/verify-email", accountHandler.HandleVerifyEmail)

		r.Route("/users/{externalID}", func(r chi.Router) {
			r.Get("/", accountHandler.HandleGetProfile)
			r.Put("/", accountHandler.HandleUpdateProfile)
			r.Delete("/", accountHandler.HandleDeleteAccount)
			r.Put("/phone", accountHandler.HandleUpdatePhone)
		})
	})
}

// Start runs the HTTP listener and the background loops until a shutdown
// signal arrives, then stops everything in order: listener first (in-flight
// requests get 30 seconds), then the background loops, then the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background loops share a context cancelled during shutdown.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.dispatcher.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		s.reconciler.Run(bgCtx)
	}()

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
	}

	stopBackground()
	wg.Wait()
	s.logger.Info("server stopped gracefully")

	return nil
}
