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

	"github.com/linksmith/linksmith/config"
	appmodel "github.com/linksmith/linksmith/internal/app/model"
	apprepository "github.com/linksmith/linksmith/internal/app/repository"
	appserver "github.com/linksmith/linksmith/internal/app/server"
	appservice "github.com/linksmith/linksmith/internal/app/service"
	"github.com/linksmith/linksmith/internal/infra/logger"
	infraNATS "github.com/linksmith/linksmith/internal/infra/nats"
	infraPostgres "github.com/linksmith/linksmith/internal/infra/postgres"
	infraPrometheus "github.com/linksmith/linksmith/internal/infra/prometheus"
	infraRedis "github.com/linksmith/linksmith/internal/infra/redis"
	"github.com/linksmith/linksmith/internal/shortid"
	"go.uber.org/zap"
)

const (
	cacheTTL            = 24 * time.Hour
	indexReloadInterval = 10 * time.Minute
	shutdownGracePeriod = 30 * time.Second
)

func main() {
	ctx := context.Background()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
		Service:     "linksmith",
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.Int("id_length", cfg.Shortener.IDLength),
		zap.Int("max_attempts", cfg.Shortener.MaxAttempts),
		zap.Bool("permanent_redirects", cfg.Shortener.PermanentRedirects),
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("nats_host", cfg.NATS.Host),
	)

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB, &appmodel.Link{}); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("Connected to Redis successfully")

	natsConn, js, err := infraNATS.Connect(cfg.NATS)
	if err != nil {
		log.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Drain()
	log.Info("Connected to NATS successfully")

	if !isDev {
		promServer := infraPrometheus.NewServer(cfg.Prometheus)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	} else {
		log.Info("Skipping Prometheus metrics server in development mode")
	}

	generator, err := shortid.New(cfg.Shortener.IDLength)
	if err != nil {
		log.Fatal("Failed to build short id generator", zap.Error(err))
	}

	linkRepo := apprepository.NewLinkRepository(gormDB)
	linkCache := apprepository.NewLinkCache(redisClient, cacheTTL)

	index := apprepository.NewShortIDIndex(pool)
	if err := index.Reload(ctx); err != nil {
		log.Fatal("Failed to seed short id index", zap.Error(err))
	}
	log.Info("Seeded short id index from Postgres")

	refresher := appservice.NewIndexRefresher(log, index, indexReloadInterval)
	refresher.Start()
	defer refresher.Stop()

	warmer := appservice.NewCacheWarmer(js, log, linkCache, index)
	if err := warmer.Start(); err != nil {
		log.Fatal("Failed to start cache warmer", zap.Error(err))
	}

	linkService := appservice.NewLinkService(appservice.Options{
		Logger:      log,
		Repo:        linkRepo,
		Generator:   generator,
		Cache:       linkCache,
		Index:       index,
		Events:      appservice.NewLinkPublisher(js),
		IDLength:    cfg.Shortener.IDLength,
		MaxAttempts: cfg.Shortener.MaxAttempts,
	})

	srv := appserver.New(appserver.Dependencies{
		Logger:      log,
		LinkService: linkService,
		BaseURL:     cfg.Server.BaseURL,
		Permanent:   cfg.Shortener.PermanentRedirects,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.Listen(addr); err != nil {
			log.Fatal("Fiber server exited", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server forced to shutdown", zap.Error(err))
	}
}
