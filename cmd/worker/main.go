// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"recipe-ingest-service/internal/app"
	"recipe-ingest-service/internal/config"
	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	// A worker only makes sense behind the queue.
	cfg.Dispatch.Mode = config.DispatchQueue
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := config.ParseLevel(cfg.Logging.Level)
	logger, closeLog := config.SetupLogger(cfg.Logging.File, level)
	defer closeLog()
	slog.SetDefault(logger)

	m := metrics.New()
	a, err := app.New(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Redis == nil {
		return errors.New("worker requires redis")
	}

	queue := a.Queue()
	// No backlog option: the listener waits for a free worker before claiming more.
	pool, err := worker.NewPool(cfg.Worker.Concurrency)
	if err != nil {
		return err
	}
	processor := worker.NewProcessor(a.Jobs, a.Executor, a.EventBus())
	listener := worker.NewListener(queue, processor, pool)
	reaper := worker.NewReaper(queue, a.Jobs, cfg.Pipeline.StaleAfter, m)

	slog.Info("worker starting",
		"workers", cfg.Worker.Concurrency,
		"redis_addr", cfg.Redis.Addr,
		"queue_key", cfg.Redis.QueueKey,
		"processing_key", cfg.Redis.ProcessingKey,
		"postgres_dsn", config.RedactDSN(cfg.Postgres.DSN),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		listener.Run(gctx)
		return nil
	})
	g.Go(func() error {
		reaper.Run(gctx, cfg.Worker.ReapInterval)
		return nil
	})
	err = g.Wait()

	if relErr := pool.Release(cfg.Worker.DrainTimeout); relErr != nil {
		slog.Warn("jobs still running at shutdown; the reaper will fail them", "error", relErr)
	}
	slog.Info("worker stopped")
	return err
}
