package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"post-lab/cache"
	"post-lab/contract"
	"post-lab/domain/event"
	"post-lab/internal"
	"post-lab/repositories"
	"post-lab/runtime"
	"post-lab/runtime/workers"
	"post-lab/services"
	"post-lab/sink"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only responsibility
	// is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages their lifecycle, and
// centralizes error reporting, so every defer (database close, worker
// drain) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := newLogger(config.LogLevel)

	// 2. Database (BadgerDB): source of truth for posts and the durable
	// backing of the job queue.
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	postRepo, err := repositories.NewPostRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = postRepo.Close()
	}()

	jobRepo := repositories.NewJobRepository(db, logger, repositories.QueueOptions{
		MaxAttempts:   config.MaxAttempts,
		BackoffBase:   config.BackoffBase,
		BackoffCap:    config.BackoffCap,
		LeaseDuration: config.LeaseDuration,
	})

	// 3. Cache: Redis when configured, otherwise the in-process TTL map.
	// Either way it is advisory; the service degrades to the store when
	// the cache misbehaves.
	var cacheLayer contract.ICache
	var janitor contract.Worker
	if config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		defer func() {
			_ = client.Close()
		}()
		cacheLayer = cache.NewRedis(client)
		logger.Info("Using Redis cache", "addr", config.RedisAddr)
	} else {
		memCache := cache.NewMemory(logger, config.CacheSweepInterval)
		cacheLayer = memCache
		janitor = memCache
	}

	// 4. Broadcast gateway and event bus wiring. Both subscribers are
	// fire-and-forget relative to the write path: one hands off to the
	// durable queue, the other to non-blocking client sinks.
	registry := runtime.NewRegistry()
	gateway := runtime.NewGateway(registry, logger)

	bus := runtime.NewBus(logger)
	notificationSink := sink.NewNotificationSink(jobRepo, logger)
	broadcastSink := sink.NewBroadcastSink(gateway, logger)
	bus.Subscribe(event.PostCreated, notificationSink.Handle)
	bus.Subscribe(event.PostCreated, broadcastSink.Handle)
	bus.Subscribe(event.PostUpdated, broadcastSink.Handle)
	bus.Subscribe(event.PostDeleted, broadcastSink.Handle)

	postService := services.NewPostService(postRepo, cacheLayer, bus, logger, config.CacheTTL)
	// The HTTP front consumes postService and gateway; it lives outside
	// this core. TODO: mount the API server here once it lands.
	_ = postService

	// 5. Worker pool: N queue workers plus the lease sweeper, all under
	// one supervisor so a panicking handler never takes the pool down.
	notifier := services.NewNotifier(services.NewSimulatedSender(logger, config.NotificationLatency), logger)
	handlers := workers.Handlers{
		services.JobTypePostCreated: notifier.HandlePostCreated,
	}

	supervisor := workers.NewSupervisor(logger)
	for i := 0; i < config.NumberOfWorkers; i++ {
		supervisor.Add(workers.NewQueueWorker(jobRepo, handlers, logger, config.PollInterval, config.HandlerTimeout))
	}
	supervisor.Add(workers.NewLeaseSweeper(jobRepo, logger, config.LeaseSweepInterval))
	if janitor != nil {
		supervisor.Add(janitor)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(done)
	}()

	logger.Info("post-lab server running",
		"workers", config.NumberOfWorkers, "badger", config.BadgerFilepath)

	<-ctx.Done()
	logger.Info("Shutdown requested, draining workers...")
	supervisor.Stop()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("Workers did not drain in time")
	}
	return exitOK, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
