// nl2sql serves the conversational NL→SQL pipeline over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/queryhub/nl2sql/pkg/api"
	"github.com/queryhub/nl2sql/pkg/bootstrap"
	"github.com/queryhub/nl2sql/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		logger.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		logger.Info("loaded environment file", "path", envPath)
	}

	httpAddr := ":" + getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	app.Deps.Sessions.StartSweep(ctx, cfg.Limits.SessionSweepEvery)
	defer app.Deps.Sessions.StopSweep()

	server := api.NewServer(cfg, app.Deps)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := server.Start(httpAddr); err != nil {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Limits.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if err := app.Deps.Adapter.Close(); err != nil {
		logger.Error("failed to close database pool", "error", err)
	}
	if err := app.Store.Close(); err != nil {
		logger.Error("failed to close internal store", "error", err)
	}

	logger.Info("shutdown complete")
}
