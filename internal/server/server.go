// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it opens the pool and the session
// store, builds services and handlers on top of them, and mounts the
// handlers on a chi router. Nothing else in the module constructs
// dependencies.
//
//	config ──▶ sqlstore.DB ─┬─▶ UserService ──┬─▶ UserHandler
//	                        ├─▶ TweetService  │    TweetHandler
//	                        ├─▶ ScoreService  │    ScoreHandler
//	                        ├─▶ DeckService   │    DeckHandler
//	redisstore (optional) ──┴─▶ AuthService ◀─┘    AuthHandler
//	                                 │
//	                                 └──▶ auth.Authenticator (middleware)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/imitation/backend/internal/auth"
	"github.com/imitation/backend/internal/config"
	"github.com/imitation/backend/internal/handler"
	"github.com/imitation/backend/internal/middleware"
	"github.com/imitation/backend/internal/repository"
	"github.com/imitation/backend/internal/repository/redisstore"
	"github.com/imitation/backend/internal/repository/sqlstore"
	"github.com/imitation/backend/internal/service"
)

// Server owns the router and every resource opened for it. Close releases
// them; Start does so on shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger

	db    *sqlstore.DB
	redis *redisstore.Store // nil unless session.store is redis
}

// New opens the database (running pending migrations), connects the
// session store and wires the routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenDB(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	var sessions repository.SessionRepository = db
	if cfg.Session.Store == config.SessionStoreRedis {
		s.redis, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			db.Close()
			return nil, err
		}
		sessions = s.redis
	}

	if err := s.setupRoutes(sessions); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenDB opens the configured pool. The migrate command passes
// skipMigrate=true and calls Migrate itself so it can report what ran.
func OpenDB(ctx context.Context, cfg *config.Config, skipMigrate bool) (*sqlstore.DB, error) {
	db, err := sqlstore.New(ctx, sqlstore.Options{
		Driver:          sqlstore.Driver(cfg.Database.Driver),
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		SkipMigrate:     skipMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz
//	POST   /api/auth/signup | /login | /logout
//	GET    /api/auth/session
//	GET    /api/auth/github/login | /callback      (only when configured)
//	POST   /api/user
//	GET    /api/user/{userId}
//	GET    /api/home
//	GET    /api/tweet/{tweetId}
//	GET    /api/tweet/{tweetId}/comments
//	GET    /api/comments?tweetId=
//	POST   /api/create-tweet/user/{userId}         (auth)
//	GET    /api/asteroid-scores
//	POST   /api/asteroid-scores                    (auth)
//	GET    /api/color-game/scores?room=
//	POST   /api/color-game/scores
//	GET    /api/decks | POST /api/decks            (auth)
//	GET    /api/decks/{deckId} | PUT | DELETE      (auth)
//	GET    /api/decks/{deckId}/cards | POST        (auth)
//	GET    /api/decks/{deckId}/study?limit=        (auth)
//	GET    /api/decks/{deckId}/study-all           (auth)
//	PUT    /api/cards/{cardId} | DELETE            (auth)
//	POST   /api/cards/{cardId}/review              (auth)
//
// MIDDLEWARE ORDER MATTERS:
// CORS sits before Authenticate so a preflight never touches the database,
// and Authenticate runs on every route so public handlers can still see who
// is calling.
func (s *Server) setupRoutes(sessions repository.SessionRepository) error {
	var verifier *auth.IdentityVerifier
	if s.cfg.Auth.JWTSecret != "" {
		v, err := auth.NewIdentityVerifier(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTAudience)
		if err != nil {
			return err
		}
		verifier = v
	}

	userService := service.NewUserService(s.db, s.logger)
	tweetService := service.NewTweetService(s.db, s.logger)
	scoreService := service.NewScoreService(s.db, s.logger)
	deckService := service.NewDeckService(s.db, s.logger)
	authService := service.NewAuthService(
		s.db,
		sessions,
		userService,
		auth.NewPasswordService(),
		s.cfg.Session.TTL,
		s.logger,
	)

	var github *auth.GitHubProvider
	if s.cfg.GitHubEnabled() {
		callback := s.cfg.Auth.GitHubCallbackURL
		if callback == "" {
			callback = fmt.Sprintf("http://localhost:%d/api/auth/github/callback", s.cfg.Server.Port)
		}
		github = auth.NewGitHubProvider(s.cfg.Auth.GitHubClientID, s.cfg.Auth.GitHubClientSecret, callback)
	} else {
		s.logger.Info("GitHub OAuth not configured, login routes disabled")
	}

	pingers := map[string]handler.Pinger{"database": s.db}
	if s.redis != nil {
		pingers["redis"] = s.redis
	}

	authenticator := auth.NewAuthenticator(authService, verifier, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, s.cfg.Production(), s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	tweetHandler := handler.NewTweetHandler(tweetService, s.logger)
	scoreHandler := handler.NewScoreHandler(scoreService, s.logger)
	deckHandler := handler.NewDeckHandler(deckService, s.logger)
	healthHandler := handler.NewHealthHandler(pingers, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.cfg.CORS.AllowedOrigins))
	s.router.Use(authenticator.Authenticate)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteDetail(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/session", authHandler.HandleSession)
			if github != nil {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
			}
		})

		r.Post("/user", userHandler.HandleCreate)
		r.Get("/user/{userId}", userHandler.HandleGet)

		r.Get("/home", tweetHandler.HandleHome)
		r.Get("/tweet/{tweetId}", tweetHandler.HandleGet)
		r.Get("/tweet/{tweetId}/comments", tweetHandler.HandleComments)
		r.Get("/comments", tweetHandler.HandleCommentsQuery)

		r.Get("/asteroid-scores", scoreHandler.HandleLeaderboard)
		r.Get("/color-game/scores", scoreHandler.HandleStandings)
		r.Post("/color-game/scores", scoreHandler.HandleRecordColorRound)

		// === Protected Routes ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Post("/create-tweet/user/{userId}", tweetHandler.HandleCreate)
			r.Post("/asteroid-scores", scoreHandler.HandleSubmitAsteroid)

			r.Route("/decks", func(r chi.Router) {
				r.Get("/", deckHandler.HandleList)
				r.Post("/", deckHandler.HandleCreate)
				r.Route("/{deckId}", func(r chi.Router) {
					r.Get("/", deckHandler.HandleGet)
					r.Put("/", deckHandler.HandleUpdate)
					r.Delete("/", deckHandler.HandleDelete)
					r.Get("/cards", deckHandler.HandleCards)
					r.Post("/cards", deckHandler.HandleAddCard)
					r.Get("/study", deckHandler.HandleStudy)
					r.Get("/study-all", deckHandler.HandleStudyAll)
				})
			})
			r.Route("/cards/{cardId}", func(r chi.Router) {
				r.Put("/", deckHandler.HandleUpdateCard)
				r.Delete("/", deckHandler.HandleDeleteCard)
				r.Post("/review", deckHandler.HandleReview)
			})
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the pool and the Redis client.
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests (server.shutdown_timeout)
//  3. Close the pool and the session store
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.Database.Driver),
			slog.String("sessions", s.cfg.Session.Store),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
