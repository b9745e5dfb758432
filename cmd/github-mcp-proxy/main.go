package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adamcfield/github-mcp-proxy/internal/auth"
	"github.com/adamcfield/github-mcp-proxy/internal/config"
	httpsvr "github.com/adamcfield/github-mcp-proxy/internal/http"
	"github.com/adamcfield/github-mcp-proxy/internal/tools"
	"github.com/adamcfield/github-mcp-proxy/internal/upstream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	var tokens auth.TokenSource
	switch {
	case cfg.UseApp():
		app, err := auth.NewApp(cfg.AppID, cfg.InstallationID, cfg.PrivateKeyPath, cfg.APIBaseURL)
		if err != nil {
			logger.Error("github app auth init failed", "err", err)
			os.Exit(1)
		}
		tokens = app
		logger.Info("using github app credentials", "app_id", cfg.AppID)
	default:
		if cfg.Token == "" {
			// Observed baseline: an empty credential degrades into
			// upstream 401s at call time rather than failing startup.
			logger.Warn("GITHUB_TOKEN is empty; upstream calls will be unauthenticated")
		}
		tokens = auth.Static(cfg.Token)
	}

	client := upstream.NewClient(cfg.APIBaseURL, tokens)
	registry := tools.NewRegistry(logger)
	gh := tools.NewGitHub(client, cfg.RepoOwner, cfg.RepoName)
	if err := gh.Register(registry); err != nil {
		logger.Error("tool registration failed", "err", err)
		os.Exit(1)
	}

	logger.Info("effective config",
		"listen", cfg.Listen,
		"repo", cfg.RepoOwner+"/"+cfg.RepoName,
		"api_base", cfg.APIBaseURL,
	)

	server := httpsvr.NewServer(cfg.Listen, registry, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	server.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
}
