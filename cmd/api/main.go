// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"recipe-ingest-service/internal/app"
	"recipe-ingest-service/internal/config"
	"recipe-ingest-service/internal/metrics"
	"recipe-ingest-service/internal/service"
	httptransport "recipe-ingest-service/internal/transport/http"
	"recipe-ingest-service/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
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

	var (
		dispatcher service.Dispatcher
		queue      service.Queue
		pool       *worker.Pool
	)
	switch cfg.Dispatch.Mode {
	case config.DispatchQueue:
		queue = a.Queue()
		dispatcher = service.NewQueueDispatcher(queue, a.EventBus(), cfg.Dispatch.MaxRelay)
	default:
		pool, err = worker.NewPool(cfg.Worker.Concurrency, worker.WithMaxPending(cfg.Worker.MaxPending))
		if err != nil {
			return err
		}
		dispatcher = service.NewInlineDispatcher(pool, a.Executor)
	}

	ingest := service.NewIngestService(a.Registry, a.Jobs, a.Recipes, dispatcher)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.Routes(httptransport.NewHandler(ingest, a.Search), m),
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
	}

	reaper := worker.NewReaper(queue, a.Jobs, cfg.Pipeline.StaleAfter, m)

	slog.Info("api starting",
		"addr", cfg.HTTP.Addr,
		"dispatch", cfg.Dispatch.Mode,
		"workers", cfg.Worker.Concurrency,
		"postgres_dsn", config.RedactDSN(cfg.Postgres.DSN),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reaper.Run(gctx, cfg.Worker.ReapInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if pool != nil {
		if relErr := pool.Release(cfg.Worker.DrainTimeout); relErr != nil {
			slog.Warn("jobs still running at shutdown; the reaper will fail them", "error", relErr)
		}
	}
	slog.Info("api stopped")
	return err
}
