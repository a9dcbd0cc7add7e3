// Package main is the entry point for the docquery-service API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/internal/catalog"
	"docquery-service/internal/config"
	"docquery-service/internal/domain"
	"docquery-service/internal/infra/feed"
	"docquery-service/internal/infra/memstore"
	"docquery-service/internal/infra/postgres"
	rediscache "docquery-service/internal/infra/redis"
	"docquery-service/internal/job"
	"docquery-service/internal/logger"
	"docquery-service/internal/transport/httpserver"
	"docquery-service/internal/transport/httpserver/handler"
	"docquery-service/internal/transport/httpserver/middleware"
	"docquery-service/internal/validator"
	"docquery-service/pkg/locker"
)

// documentStore is what the API needs from a store driver.
type documentStore interface {
	domain.DocumentStore
	domain.DocumentWriter
	handler.CollectionCounter
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(cfg.Logger, cfg.Sentry)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting docquery-service",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	descriptors, err := catalog.Load(cfg.Search.DescriptorsDir)
	if err != nil {
		log.Fatal("failed to load entity descriptors", zap.Error(err))
	}
	log.Info("entity descriptors loaded", zap.Int("count", len(descriptors.Entities())))

	ctx := context.Background()

	var (
		store     documentStore
		readiness []middleware.ReadinessCheck
	)
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pgStore, db, err := postgres.Open(postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Name:         cfg.Database.Name,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  cfg.Database.MaxLifetime,
		}, log.Logger)
		if err != nil {
			log.Fatal("failed to open postgres store", zap.Error(err))
		}
		defer func() { _ = postgres.Close(db) }()
		log.Info("database migrations completed")

		store = pgStore
		readiness = append(readiness, func(ctx context.Context) error {
			return postgres.HealthCheck(ctx, db)
		})
	default:
		store = memstore.New()
	}

	if cfg.Store.SeedFile != "" {
		if err := memstore.SeedFile(ctx, store, cfg.Store.SeedFile); err != nil {
			log.Fatal("failed to seed store", zap.Error(err), zap.String("file", cfg.Store.SeedFile))
		}
		log.Info("store seeded", zap.String("file", cfg.Store.SeedFile))
	}

	feeds := make([]domain.Feed, 0, len(cfg.Ingest.Feeds))
	for _, fc := range cfg.Ingest.Feeds {
		fc = config.FeedDefaults(fc)
		feeds = append(feeds, feed.New(feed.Config{
			Name:          fc.Name,
			Collection:    fc.Collection,
			Path:          fc.Path,
			DocumentsPath: fc.DocumentsPath,
			Client: feed.ClientConfig{
				BaseURL: fc.BaseURL,
				Timeout: fc.Timeout,
				Retry: feed.RetryConfig{
					MaxAttempts: fc.Retry.MaxAttempts,
					WaitTime:    fc.Retry.WaitTime,
					MaxWaitTime: fc.Retry.MaxWaitTime,
				},
				CB: feed.CBConfig{
					MaxRequests:  fc.CB.MaxRequests,
					Interval:     fc.CB.Interval,
					Timeout:      fc.CB.Timeout,
					FailureRatio: fc.CB.FailureRatio,
				},
			},
		}, log.Logger))
	}

	searchSvc := service.NewSearchService(store, descriptors, log.Logger)
	ingestSvc := service.NewIngestService(store, feeds, log.Logger)

	var distLocker locker.DistributedLocker = locker.NewLocalLocker()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))

		distLocker = locker.NewRedisLocker(redisClient, cfg.Redis.Namespace, log.Logger)
		readiness = append(readiness, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		if cfg.Redis.CountCacheTTL > 0 {
			counts := rediscache.NewCountCache(redisClient, log.Logger, cfg.Redis.Namespace, cfg.Redis.CountCacheTTL)
			searchSvc.WithCountCache(counts)
			ingestSvc.WithCountCache(counts)
			log.Info("count cache enabled", zap.Duration("ttl", cfg.Redis.CountCacheTTL))
		}
	}

	server, err := httpserver.NewServer(
		httpserver.ServerConfig{
			Port:            cfg.App.Port,
			BodyLimit:       1024 * 1024, // 1MB
			DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
			SearchTimeout:   cfg.Search.Timeout,
			MetricsEnabled:  cfg.Metrics.Enabled,
			MetricsPath:     cfg.Metrics.Path,
		},
		httpserver.Dependencies{
			Search:    searchSvc,
			Ingest:    ingestSvc,
			Catalog:   descriptors,
			Counter:   store,
			Validator: validator.New(),
			Readiness: readiness,
		},
		log.Logger,
	)
	if err != nil {
		log.Fatal("failed to create HTTP server", zap.Error(err))
	}

	var scheduler *job.IngestScheduler
	if cfg.Ingest.Enabled && len(feeds) > 0 {
		scheduler = job.NewIngestScheduler(
			ingestSvc,
			job.IngestConfig{
				Interval:  cfg.Ingest.Interval,
				Timeout:   cfg.Ingest.Timeout,
				OnStartup: cfg.Ingest.OnStartup,
			},
			log.Logger,
			distLocker,
		)
		scheduler.Start(cfg.Ingest.OnStartup)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
