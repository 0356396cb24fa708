package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"

	"github.com/sakif/prediction-league/internal/auth"
	"github.com/sakif/prediction-league/internal/config"
	"github.com/sakif/prediction-league/internal/groupcode"
	sqliteRepo "github.com/sakif/prediction-league/internal/repository/sqlite"
	"github.com/sakif/prediction-league/internal/service"
	"github.com/sakif/prediction-league/internal/telemetry"
)

type resultFunc func(ctx context.Context, fixtureID int64, home, away int) (*service.CompletionResult, error)

// app holds the services a command needs. Metrics go to a private registry
// that nothing scrapes.
type app struct {
	db       *sqliteRepo.DB
	auth     *service.AuthService
	groups   *service.GroupService
	fixtures *service.FixtureService
	board    *service.LeaderboardService
}

func openApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newApp(db, cfg, logger), nil
}

func newApp(db *sqliteRepo.DB, cfg *config.Config, logger *slog.Logger) *app {
	obs := telemetry.NewObserver(otel.Tracer("predictctl"), telemetry.NewMetrics(prometheus.NewRegistry()), logger)
	board := service.NewLeaderboardService(db, obs, logger)
	// The CLI never issues tokens.
	return &app{
		db:       db,
		auth:     service.NewAuthService(db, nil, auth.NewPasswordService(cfg.Auth.BcryptCost), logger),
		groups:   service.NewGroupService(db, groupcode.New(cfg.Groups.CodeLength, cfg.Groups.CodeMaxAttempts), board, obs, logger),
		fixtures: service.NewFixtureService(db, board, obs, logger),
		board:    board,
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
