// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built in New and wired to
// routes in setupRoutes, so the rest of the code only ever sees interfaces
// and constructors.
//
// DEPENDENCY FLOW:
//
//	config → sqldb.DB → repositories → services → handlers → chi routes
//	                   realtime.Hub ↗ (message notifier)   ↘ /ws gateway
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/fineahban/marketplace/internal/auth"
	"github.com/fineahban/marketplace/internal/config"
	"github.com/fineahban/marketplace/internal/handler"
	"github.com/fineahban/marketplace/internal/imagestore"
	"github.com/fineahban/marketplace/internal/middleware"
	"github.com/fineahban/marketplace/internal/realtime"
	"github.com/fineahban/marketplace/internal/repository/sqldb"
	"github.com/fineahban/marketplace/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the database pool and the realtime hub; both are closed when
// Start returns.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db     *sqldb.DB
	hub    *realtime.Hub
	tokens *auth.TokenService
	images *imagestore.Store // nil when S3 is not configured
}

// New opens the database (running migrations) and assembles every layer.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN, cfg.DBQueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	var images *imagestore.Store
	if cfg.S3.Bucket != "" {
		images, err = imagestore.New(ctx, imagestore.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating image store: %w", err)
		}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		hub:    realtime.NewHub(logger),
		tokens: tokens,
		images: images,
	}
	s.setupRoutes()

	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                            → liveness + DB ping
// GET    /ws                                 → realtime upgrade (token required)
// GET    /auth/{provider}/login              → OAuth redirect
// GET    /auth/{provider}/callback           → OAuth completion
// POST   /auth/logout                        → clear session cookie
// POST   /api/social-login                   → resolve social profile
// GET    /api/user/{provider}/{socialId}     → user by external id
// GET    /api/user/{userId}                  → user by internal id
// GET    /api/me                             → current user (token required)
// GET    /api/posts                          → list posts
// POST   /api/posts                          → create post
// POST   /api/posts/image-upload-url         → presigned S3 PUT (token required, S3 only)
// POST   /api/messages                       → send message
// GET    /api/conversations/{userId}         → latest message per peer
// GET    /api/messages/{user1Id}/{user2Id}   → transcript
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, 2. RealIP, 3. Recoverer, 4. our Logger
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	identitySvc := service.NewIdentityService(s.db.Users(), s.tokens, s.logger)
	postSvc := service.NewPostService(s.db.Posts(), s.logger)
	messageSvc := service.NewMessageService(s.db.Messages(), s.hub, s.logger)

	var flows []handler.OAuthFlow
	if c := s.config.Google; c.Enabled() {
		flows = append(flows, auth.NewGoogleProvider(c.ClientID, c.ClientSecret, c.CallbackURL))
	}
	if c := s.config.Facebook; c.Enabled() {
		flows = append(flows, auth.NewFacebookProvider(c.ClientID, c.ClientSecret, c.CallbackURL))
	}

	identityHandler := handler.NewIdentityHandler(identitySvc, s.tokens.TTL(), s.logger)
	authHandler := handler.NewAuthHandler(identitySvc, s.tokens.TTL(), s.config.LoginRedirectURL, s.logger, flows...)
	postHandler := handler.NewPostHandler(postSvc, s.logger)
	messageHandler := handler.NewMessageHandler(messageSvc, s.logger)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/ws", realtime.NewGateway(s.hub, s.tokens, s.config.WSOriginPatterns, s.logger))

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	requireAuth := auth.RequireAuth(s.tokens)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/social-login", identityHandler.HandleSocialLogin)
		r.Get("/user/{provider}/{socialId}", identityHandler.HandleGetBySocialID)
		r.Get("/user/{userId}", identityHandler.HandleGetByID)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		if s.images != nil {
			uploadHandler := handler.NewUploadHandler(s.images, s.logger)
			r.With(requireAuth).Post("/posts/image-upload-url", uploadHandler.HandleImageUploadURL)
		}

		r.Post("/messages", messageHandler.HandleSend)
		r.Get("/conversations/{userId}", messageHandler.HandleConversations)
		r.Get("/messages/{user1Id}/{user2Id}", messageHandler.HandleTranscript)
	})

	s.logger.Info("routes configured",
		slog.Int("oauthProviders", len(flows)),
		slog.Bool("imageUploads", s.images != nil),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// Start serves HTTP until SIGINT/SIGTERM or a listener error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting connections and wait for in-flight requests (30s)
//  2. Close every realtime connection (Shutdown ignores hijacked conns)
//  3. Close the database pool
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("dbDriver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	s.Close()
	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}

// Close releases the hub and the database. Start calls it on the way out.
func (s *Server) Close() {
	s.hub.Close()
	if err := s.db.Close(); err != nil {
		s.logger.Error("closing database", slog.String("error", err.Error()))
	}
}
