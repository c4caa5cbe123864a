package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/engagement-dashboard/api/controllers"
	"github.com/angelmondragon/engagement-dashboard/api/routes"
	"github.com/angelmondragon/engagement-dashboard/internal/engagements"
	"github.com/angelmondragon/engagement-dashboard/pkg/config"
	"github.com/angelmondragon/engagement-dashboard/pkg/db"
	"github.com/angelmondragon/engagement-dashboard/pkg/logger"
	"github.com/angelmondragon/engagement-dashboard/pkg/metrics"
	"github.com/angelmondragon/engagement-dashboard/pkg/migrate"
	"github.com/angelmondragon/engagement-dashboard/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checks := map[string]controllers.Pinger{}
	var closers []func() error

	params := engagements.ServiceParams{
		Store:         engagements.NewWorkingSet(),
		Generator:     engagements.NewGenerator(uint64(time.Now().UnixNano()), time.Now),
		Logger:        logg,
		Metrics:       metrics.NewIngestMetrics(reg),
		BatchSize:     cfg.Data.MockBatchSize,
		LiveFetchSize: cfg.Data.LiveFetchSize,
	}

	if cfg.DB.Enabled() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		requireResource(ctx, logg, "database", err)
		closers = append(closers, dbClient.Close)

		err = migrate.MaybeRun(ctx, cfg, logg, dbClient)
		requireResource(ctx, logg, "migrations", err)

		params.Live = engagements.NewRepository(dbClient.DB())
		checks["database"] = dbClient
	} else {
		logg.Info(ctx, "no database dsn configured, live source disabled")
	}

	// Left as a nil interface when redis is off so the router skips throttling.
	var limiter redis.RateLimiter
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis)
		requireResource(ctx, logg, "redis", err)
		closers = append(closers, redisClient.Close)

		limiter = redisClient
		checks["redis"] = redisClient
	} else {
		logg.Info(ctx, "no redis configured, upload rate limiting disabled")
	}

	svc, err := engagements.NewService(params)
	requireResource(ctx, logg, "engagement service", err)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, svc, limiter, checks, metrics.NewHTTPMetrics(reg), reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			closeAll(ctx, logg, closers)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	closeAll(ctx, logg, closers)
	logg.Info(ctx, "api server shut down gracefully")
}

func closeAll(ctx context.Context, logg *logger.Logger, closers []func() error) {
	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, closers[i]())
	}
	if errs != nil {
		logg.Error(ctx, "error closing resources", errs)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
