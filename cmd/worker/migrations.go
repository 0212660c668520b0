package main

import (
	"context"
	"log/slog"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/platform/postgres"
)

// handleMigrations runs a single goose command and closes the pool.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	logger.Info("Executing migrations", slog.String("command", command))

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return postgres.Migrate(ctx, db, command, logger)
}
