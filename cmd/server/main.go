// Package main is the entry point for the prediction league API server.
//
// The main package stays minimal: it loads the configuration, builds the
// logger and hands both to internal/server, which owns everything else.
//
// Configuration is read from the YAML file named by -config (or CONFIG_PATH),
// with environment variables overriding file values. See internal/config.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/prediction-league/internal/config"
	"github.com/sakif/prediction-league/internal/server"
)

func main() {
	defaultPath := "config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		defaultPath = p
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate already rejected unknown levels.
	level, _ := config.ParseLevel(cfg.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
