// Package main runs the summarization worker: the consumer loop that drains
// the Redis job queue into the ML service, and the HTTP control surface that
// reports its health and wakes it up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"Run a database migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("Worker configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.Bool("autostart", cfg.Consumer.Autostart))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return handleMigrations(ctx, cfg, migrateCmd, log)
	}

	db, err := setupAppDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}

	rdb, err := setupQueueClient(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(ctx, cfg, log, db, rdb)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.serve(ctx, app.setupRouter())
}
