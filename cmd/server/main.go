// Command server starts the screening gate HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/screening-gate/internal/adapter/httpserver"
	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/adapter/queue/redpanda"
	"github.com/fairyhunter13/screening-gate/internal/app"
	"github.com/fairyhunter13/screening-gate/internal/config"
	"github.com/fairyhunter13/screening-gate/internal/domain"
	"github.com/fairyhunter13/screening-gate/internal/seed"
	"github.com/fairyhunter13/screening-gate/internal/service/ratelimiter"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStorage(ctx, cfg, cfg.MigrateOnStart)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if _, err := seed.Apply(ctx, st.Jobs, st.Questionnaires, f); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	var (
		events      domain.EventPublisher = redpanda.Noop{}
		eventsCheck app.Pinger
	)
	if cfg.EventsEnabled() {
		producer, err := redpanda.NewProducer(ctx, cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			return fmt.Errorf("event producer: %w", err)
		}
		defer producer.Close()
		events, eventsCheck = producer, producer
		slog.Info("event publishing enabled", slog.String("topic", cfg.EventsTopic))
	}

	var (
		limiter  ratelimiter.Limiter
		rdbCheck app.RedisClient
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		bucket := ratelimiter.NewBucketConfigFromPerMinute(cfg.CandidateRateLimitPerMin)
		limiter = ratelimiter.NewRedisLuaLimiter(rdb, map[string]ratelimiter.BucketConfig{
			httpserver.ScopeEvaluate: bucket,
			httpserver.ScopeOneClick: bucket,
		})
		rdbCheck = rdb
	}

	svc := app.BuildServices(cfg, st, events)
	srv := httpserver.NewServer(cfg, st.Jobs, st.Questionnaires, svc.Sessions, svc.OneClick, svc.Sweep, limiter)
	srv.DBCheck, srv.RedisCheck, srv.KafkaCheck = app.BuildReadinessChecks(st.Pinger(), rdbCheck, eventsCheck)

	sweeper := app.NewAbandonmentSweeper(svc.Sweep, cfg.SweepInterval)
	go sweeper.Run(ctx)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.BuildRouter(cfg, srv),
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
		errCh <- srvHTTP.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	return srvHTTP.Shutdown(shutdownCtx)
}
