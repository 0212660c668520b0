package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogapp/summarizer/internal/config"
	"github.com/blogapp/summarizer/internal/events"
	"github.com/blogapp/summarizer/internal/platform/logger"
	"github.com/blogapp/summarizer/internal/platform/postgres"
	"github.com/blogapp/summarizer/internal/platform/redis"
	"github.com/blogapp/summarizer/internal/producer"
	"github.com/blogapp/summarizer/internal/queue"
	"github.com/blogapp/summarizer/internal/redact"
	"github.com/blogapp/summarizer/internal/service"
	"github.com/blogapp/summarizer/internal/store"
)

// pipeline is everything a command needs to queue work.
type pipeline struct {
	service  service.PostService
	posts    store.PostStore
	queue    queue.JobQueue
	queueKey string
	enqueuer *producer.Enqueuer
	logger   *slog.Logger

	closers []func() error
}

// opener builds a pipeline. Tests substitute an in-memory one.
type opener func(ctx context.Context) (*pipeline, error)

// close waits for outstanding wakeups and releases connections in reverse
// order of acquisition.
func (p *pipeline) close() {
	if p.enqueuer != nil {
		p.enqueuer.Wait()
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Warn("failed to release resource", slog.String("error", redact.Error(err)))
		}
	}
}

// openPipeline wires the production pipeline from the environment.
func openPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	p := &pipeline{queueKey: cfg.Queue.Key, logger: log}

	db, err := postgres.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, db.Close)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := redis.Connect(connectCtx, cfg.Queue.URL, cfg.Queue.Token)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("failed to connect to queue: %s", redact.Error(err))
	}
	p.closers = append(p.closers, rdb.Close)

	p.posts = postgres.NewPostgresPostStore(db, log)
	p.queue = redis.NewJobQueue(rdb, cfg.Queue.Key, log)

	waker := producer.NewWaker(cfg.Wakeup, nil, log)
	if !waker.Enabled() {
		log.Warn("wakeup URL not configured, the worker will only see jobs once it is running")
	}
	p.enqueuer = producer.NewEnqueuer(p.queue, waker, log)

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(p.enqueuer)

	p.service, err = service.NewPostService(db, p.posts, emitter, log)
	if err != nil {
		p.close()
		return nil, fmt.Errorf("failed to initialize post service: %w", err)
	}

	return p, nil
}
