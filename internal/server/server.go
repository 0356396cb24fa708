// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB → services (+ telemetry.Observer)
//	              → handlers → chi routes
//	              → worker.Locker (background)
//
// Every layer only receives what it needs: services get the repository
// interface, handlers get services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/sakif/prediction-league/internal/auth"
	"github.com/sakif/prediction-league/internal/config"
	"github.com/sakif/prediction-league/internal/groupcode"
	"github.com/sakif/prediction-league/internal/handler"
	"github.com/sakif/prediction-league/internal/middleware"
	sqliteRepo "github.com/sakif/prediction-league/internal/repository/sqlite"
	"github.com/sakif/prediction-league/internal/service"
	"github.com/sakif/prediction-league/internal/telemetry"
	"github.com/sakif/prediction-league/internal/worker"
)

const tracerName = "github.com/sakif/prediction-league"

// Server owns the database connection and the background locker; both are
// released by Close.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	locker   *worker.Locker

	auth        *service.AuthService
	groups      *service.GroupService
	predictions *service.PredictionService
	fixtures    *service.FixtureService
	leaderboard *service.LeaderboardService
}

// New opens the database and wires every component. The caller must Close
// the returned server (Start does so on shutdown).
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	if err := s.wire(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) wire() error {
	cfg := s.config

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := telemetry.NewObserver(otel.Tracer(tracerName), telemetry.NewMetrics(s.registry), s.logger)

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		callback := cfg.Auth.GitHub.CallbackURL
		if callback == "" {
			callback = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Server.Port)
		}
		github = auth.NewGitHubProvider(cfg.Auth.GitHub.ClientID, cfg.Auth.GitHub.ClientSecret, callback)
	} else {
		s.logger.Warn("GitHub client not configured, GitHub login disabled")
	}

	codes := groupcode.New(cfg.Groups.CodeLength, cfg.Groups.CodeMaxAttempts)

	s.auth = service.NewAuthService(s.db, tokens, auth.NewPasswordService(cfg.Auth.BcryptCost), s.logger)
	s.leaderboard = service.NewLeaderboardService(s.db, obs, s.logger)
	s.groups = service.NewGroupService(s.db, codes, s.leaderboard, obs, s.logger)
	s.predictions = service.NewPredictionService(s.db, obs, s.logger)
	s.fixtures = service.NewFixtureService(s.db, s.leaderboard, obs, s.logger)

	if cfg.Locker.Interval > 0 {
		s.locker = worker.NewLocker(s.predictions, cfg.Locker.Interval, s.logger)
	}

	s.setupRoutes(tokens, github)
	return nil
}

// setupRoutes mounts every route. Middleware order: request ID, real IP,
// panic recovery, request log, rate limit.
func (s *Server) setupRoutes(tokens *auth.TokenService, github *auth.GitHubProvider) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	if rl := s.config.RateLimit; rl.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(rate.Limit(rl.RequestsPerSecond), rl.Burst)))
	}

	r.Get("/healthz", s.handleHealth)
	if s.config.Metrics.Enabled {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	authHandler := handler.NewAuthHandler(s.auth, github, tokens.TTL(), s.logger)
	groupHandler := handler.NewGroupHandler(s.groups, s.logger)
	predictionHandler := handler.NewPredictionHandler(s.predictions, s.logger)
	fixtureHandler := handler.NewFixtureHandler(s.fixtures, s.logger)
	leaderboardHandler := handler.NewLeaderboardHandler(s.leaderboard, s.logger)
	adminHandler := handler.NewAdminHandler(s.fixtures, s.leaderboard, s.logger)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Get("/me/stats", leaderboardHandler.HandleStats)

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", groupHandler.HandleCreate)
			r.Post("/join", groupHandler.HandleJoin)
			r.Get("/me", groupHandler.HandleListMine)
			r.Get("/code/{code}", groupHandler.HandleGetByCode)
			r.Get("/{id}", groupHandler.HandleGet)
			r.Get("/{id}/members", groupHandler.HandleMembers)
			r.Delete("/{id}/leave", groupHandler.HandleLeave)
			r.Delete("/{id}", groupHandler.HandleDelete)
		})

		r.Route("/predictions", func(r chi.Router) {
			r.Post("/", predictionHandler.HandleCreate)
			r.Put("/", predictionHandler.HandleUpdate)
			r.Delete("/", predictionHandler.HandleDelete)
			r.Get("/me", predictionHandler.HandleListMine)
			r.Get("/fixture/{fixtureID}", predictionHandler.HandleListFixture)
			r.Get("/{id}", predictionHandler.HandleGet)
		})

		r.Route("/fixtures", func(r chi.Router) {
			r.Get("/next", fixtureHandler.HandleNext)
			r.Get("/upcoming", fixtureHandler.HandleUpcoming)
			r.Get("/past", fixtureHandler.HandlePast)
			r.Get("/{id}", fixtureHandler.HandleGet)
		})

		r.Route("/leaderboard/{groupID}", func(r chi.Router) {
			r.Get("/", leaderboardHandler.HandleGet)
			r.Get("/me", leaderboardHandler.HandleMine)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(s.auth.IsAdmin))

			r.Put("/fixtures/{id}/scores", adminHandler.HandleRecordResult)
			r.Post("/fixtures/{id}/complete", adminHandler.HandleComplete)
			r.Post("/fixtures/{id}/correct", adminHandler.HandleCorrect)
			r.Post("/recalculate", adminHandler.HandleRecalculate)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops the locker and closes the database.
func (s *Server) Close() error {
	if s.locker != nil {
		s.locker.Stop()
	}
	return s.db.Close()
}

// Start serves HTTP until SIGINT/SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the server.
func (s *Server) Start() error {
	defer s.Close()

	if s.locker != nil {
		s.locker.Start()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
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
			slog.Int("port", s.config.Server.Port),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
