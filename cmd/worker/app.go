package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/blogapp/summarizer/internal/api"
	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/platform/mlservice"
	"github.com/blogapp/summarizer/internal/platform/postgres"
	"github.com/blogapp/summarizer/internal/platform/redis"
	"github.com/blogapp/summarizer/internal/queue"
	"github.com/blogapp/summarizer/internal/store"
	"github.com/blogapp/summarizer/internal/summarization"
	"github.com/blogapp/summarizer/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

// application holds the worker's shared dependencies so they can be closed
// together on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db  *sql.DB
	rdb *goredis.Client

	postStore store.PostStore
	queue     queue.JobQueue
	gateway   summarization.Gateway

	consumer *task.Consumer
	control  *api.ControlHandler
}

// newApplication wires the consumer and its control surface on top of an
// open database pool and queue client. ctx bounds the lifetime of every
// loop the application starts.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	rdb *goredis.Client,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
	}

	app.postStore = postgres.NewPostgresPostStore(db, logger)
	app.queue = redis.NewJobQueue(rdb, cfg.Queue.Key, logger)

	ml, err := mlservice.NewClient(cfg.ML, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ML client: %w", err)
	}
	app.gateway = ml

	app.consumer, err = task.NewConsumer(
		app.queue,
		app.gateway,
		app.postStore,
		task.ConsumerConfigFrom(cfg.Consumer),
		nil,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize consumer: %w", err)
	}

	app.control = api.NewControlHandler(ctx, app.consumer, cfg.Wakeup.Secret, logger)

	if cfg.Wakeup.Secret == "" {
		logger.Warn("wakeup secret not configured, /wakeup accepts any caller")
	}

	if cfg.Consumer.Autostart {
		if app.consumer.Start(ctx) {
			logger.Info("consumer loop started at boot")
		}
	}

	return app, nil
}

// cleanup stops the consumer and releases connections. It is safe to call
// with a nil database or queue client.
func (app *application) cleanup(ctx context.Context) {
	if app.consumer != nil {
		if err := app.consumer.Shutdown(ctx); err != nil {
			app.logger.Error("consumer shutdown incomplete", slog.String("error", err.Error()))
		}
	}

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("failed to close queue connection", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", slog.String("error", err.Error()))
		} else {
			app.logger.Info("Database connection closed")
		}
	}
}
