package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/platform/postgres"
	"github.com/blogapp/summarizer/internal/platform/redis"
	"github.com/blogapp/summarizer/internal/redact"
	goredis "github.com/redis/go-redis/v9"
)

// queueConnectTimeout bounds the initial PING to Redis.
const queueConnectTimeout = 5 * time.Second

func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	return postgres.Open(ctx, cfg.Database.URL, logger)
}

// setupQueueClient connects to the Redis instance that holds the job list.
func setupQueueClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*goredis.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, queueConnectTimeout)
	defer cancel()

	client, err := redis.Connect(connectCtx, cfg.Queue.URL, cfg.Queue.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %s", redact.Error(err))
	}

	logger.Info("Queue connection established",
		slog.String("url", redis.MaskURL(cfg.Queue.URL)),
		slog.String("key", cfg.Queue.Key))
	return client, nil
}
