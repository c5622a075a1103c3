package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/execution-hub/execution-tracker/internal/api/http"
	"github.com/execution-hub/execution-tracker/internal/application/tracking"
	"github.com/execution-hub/execution-tracker/internal/config"
	"github.com/execution-hub/execution-tracker/internal/domain/execution"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/clock"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/memory"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/postgres"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/redisstream"
	"github.com/execution-hub/execution-tracker/internal/infrastructure/sse"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sinks
	sseHub := sse.NewHub(cfg.SSEClientBuffer)
	sinks := []execution.EventSink{sseHub}

	if cfg.RedisURL != "" {
		pub, err := redisstream.NewPublisher(ctx, cfg.RedisURL, cfg.RedisStreamPrefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis error")
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Info().Str("prefix", cfg.RedisStreamPrefix).Msg("redis stream sink enabled")
	}

	if cfg.ArchiveDatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		sinks = append(sinks, postgres.NewEventArchive(pool))
		logger.Info().Msg("postgres event archive enabled")
	}

	// core
	dispatcher := tracking.NewDispatcher(cfg.EventBufferSize, logger, sinks...)
	store := memory.NewStore(clock.NewSystem(), memory.WithObserver(dispatcher.Observe))
	svc := tracking.NewService(store, logger)

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		dispatcher.Run(dispatchCtx)
	}()

	// API server
	apiServer := httpapi.NewServer(svc, sseHub, httpapi.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}
	// Shutdown closes the listeners first; open streams end when the hub stops.
	httpServer.RegisterOnShutdown(sseHub.Stop)

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)

	cancelDispatch()
	<-dispatchDone
	if dropped := dispatcher.Dropped(); dropped > 0 {
		logger.Warn().Int64("dropped", dropped).Msg("events dropped during run")
	}
}
